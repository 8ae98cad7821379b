package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/common"
	"github.com/suPer8Hu/ai-prime/internal/production"
)

func (h *Handler) CreateJob(c *gin.Context) {
	var job production.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json", "errors.invalidJob")
		return
	}
	created, err := h.Jobs.Add(c.Request.Context(), &job)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Created(c, created)
}

type batchReq struct {
	Jobs []*production.Job `json:"jobs"`
}

func (h *Handler) CreateJobBatch(c *gin.Context) {
	var req batchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json", "errors.invalidJob")
		return
	}
	jobs, err := h.Jobs.AddBatch(c.Request.Context(), req.Jobs)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.Created(c, gin.H{"jobs": jobs})
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	status := production.Status(strings.ToLower(strings.TrimSpace(c.Query("status"))))

	jobs, err := h.Jobs.List(c.Request.Context(), status, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if jobs == nil {
		jobs = []production.Job{}
	}
	common.OK(c, gin.H{"jobs": jobs})
}

func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, job)
}

func (h *Handler) UpdateJob(c *gin.Context) {
	var job production.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json", "errors.invalidJob")
		return
	}
	id := c.Param("id")
	if job.ID != "" && job.ID != id {
		common.Fail(c, http.StatusBadRequest, "id in body does not match path", "errors.invalidJob")
		return
	}
	job.ID = id

	updated, err := h.Jobs.Update(c.Request.Context(), &job)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, updated)
}

func (h *Handler) DeleteJob(c *gin.Context) {
	if err := h.Jobs.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type scheduleReq struct {
	ScheduledDay string `json:"scheduledDay"`
	Platform     string `json:"platform"`
}

func (h *Handler) ScheduleJob(c *gin.Context) {
	var req scheduleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "invalid json", "errors.invalidJob")
		return
	}
	job, err := h.Jobs.Schedule(c.Request.Context(), c.Param("id"), req.ScheduledDay, req.Platform)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, job)
}

type jobMetadataReq struct {
	Platform string `json:"platform"`
}

// GenerateJobMetadata builds an upload package for a job and stores it.
func (h *Handler) GenerateJobMetadata(c *gin.Context) {
	var req jobMetadataReq
	_ = c.ShouldBindJSON(&req) // allow empty body

	ctx := c.Request.Context()
	job, err := h.Jobs.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	platform := req.Platform
	if platform == "" {
		platform = job.Platform
	}
	md, err := h.Metadata.Generate(ctx, ai.MetadataRequest{Prompt: job.Prompt, Language: job.Language, Platform: platform})
	if err != nil {
		h.fail(c, err)
		return
	}
	updated, err := h.Jobs.AttachMetadata(ctx, job.ID, md)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, updated)
}
