package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/common"
	"github.com/suPer8Hu/ai-prime/internal/httpapi/handlers"
	"github.com/suPer8Hu/ai-prime/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(h.Log))
	r.Use(middleware.Recovery(h.Log))
	r.Use(middleware.CORS(h.Cfg.CORSOrigins))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, "route not found", "")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, "method not allowed", "")
	})

	r.GET("/ping", h.Ping)
	r.POST("/login", h.Login)
	r.GET("/media/*key", h.ServeMedia)

	api := r.Group("/api")
	if h.Cfg.AuthEnabled() {
		api.Use(middleware.AuthRequired(h.Cfg.JWTSecret))
	}

	// job store
	api.POST("/jobs", h.CreateJob)
	api.POST("/jobs/batch", h.CreateJobBatch)
	api.GET("/jobs", h.ListJobs)
	api.GET("/jobs/:id", h.GetJob)
	api.PUT("/jobs/:id", h.UpdateJob)
	api.DELETE("/jobs/:id", h.DeleteJob)
	api.POST("/jobs/:id/schedule", h.ScheduleJob)
	api.POST("/jobs/:id/metadata", h.GenerateJobMetadata)

	api.GET("/backup", h.ExportBackup)
	api.POST("/backup", h.RestoreBackup)
	api.GET("/events", h.JobEvents)

	// direct AI calls
	api.POST("/enhance-prompt", h.EnhancePrompt)
	api.POST("/generate-video", h.GenerateVideo)
	api.POST("/generate-metadata", h.GenerateMetadata)
	return r
}
