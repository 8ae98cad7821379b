package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/common"
	"github.com/suPer8Hu/ai-prime/internal/production"
)

type enhanceReq struct {
	Prompt      string `json:"prompt" binding:"required"`
	Language    string `json:"language"`
	AspectRatio string `json:"aspectRatio"`
	Is8K        bool   `json:"is8K"`
}

func (h *Handler) EnhancePrompt(c *gin.Context) {
	var req enhanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "prompt is required", "errors.invalidJob")
		return
	}
	enhanced, err := h.Enhancer.Enhance(c.Request.Context(), ai.EnhanceRequest{
		Prompt:      req.Prompt,
		Language:    req.Language,
		AspectRatio: aspectOrDefault(req.AspectRatio),
		HighQuality: req.Is8K,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"enhancedPrompt": enhanced})
}

// GenerateVideo runs the whole remote call synchronously and returns the
// video body. The enhanced prompt travels in X-Enhanced-Prompt.
func (h *Handler) GenerateVideo(c *gin.Context) {
	var req enhanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "prompt is required", "errors.invalidJob")
		return
	}
	aspect := aspectOrDefault(req.AspectRatio)
	if aspect != production.AspectLandscape && aspect != production.AspectPortrait {
		common.Fail(c, http.StatusBadRequest, "aspectRatio must be 16:9 or 9:16", "errors.invalidJob")
		return
	}

	ctx := c.Request.Context()
	enhanced, data, contentType, err := h.Producer.Produce(ctx, production.RenderRequest{
		Prompt:      req.Prompt,
		AspectRatio: aspect,
		HighQuality: req.Is8K,
		Language:    req.Language,
	}, nil)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("X-Enhanced-Prompt", strings.ReplaceAll(enhanced, "\n", " "))
	c.Data(http.StatusOK, contentType, data)
}

type metadataReq struct {
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language"`
	Platform string `json:"platform"`
}

func (h *Handler) GenerateMetadata(c *gin.Context) {
	var req metadataReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "prompt is required", "errors.invalidJob")
		return
	}
	md, err := h.Metadata.Generate(c.Request.Context(), ai.MetadataRequest{
		Prompt:   req.Prompt,
		Language: req.Language,
		Platform: req.Platform,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, md)
}

func aspectOrDefault(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return production.AspectLandscape
	}
	return a
}
