package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/suPer8Hu/ai-prime/internal/ai"
	"github.com/suPer8Hu/ai-prime/internal/blob"
	"github.com/suPer8Hu/ai-prime/internal/common"
	"github.com/suPer8Hu/ai-prime/internal/config"
	"github.com/suPer8Hu/ai-prime/internal/events"
	"github.com/suPer8Hu/ai-prime/internal/httpapi/middleware"
	"github.com/suPer8Hu/ai-prime/internal/production"
	"gorm.io/gorm"
)

// VideoProducer runs the remote render and hands back the bytes.
type VideoProducer interface {
	Produce(ctx context.Context, req production.RenderRequest, progress production.ProgressFunc) (string, []byte, string, error)
}

type Handler struct {
	Cfg      config.Config
	Jobs     *production.Service
	Producer VideoProducer
	Enhancer production.PromptEnhancer
	Metadata production.MetadataSource
	Blobs    blob.Store
	Bus      events.Bus
	Log      zerolog.Logger
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// fail maps service and AI errors onto the error payload.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, "job not found", "errors.notFound")
	case errors.Is(err, production.ErrInvalidJob):
		common.Fail(c, http.StatusBadRequest, err.Error(), "errors.invalidJob")
	case errors.Is(err, production.ErrMalformedBackup):
		common.Fail(c, http.StatusBadRequest, err.Error(), "errors.invalidBackup")
	case errors.Is(err, production.ErrDuplicateJob):
		common.Fail(c, http.StatusConflict, err.Error(), "errors.duplicateJob")
	case errors.Is(err, production.ErrInvalidTransition):
		common.Fail(c, http.StatusConflict, err.Error(), "errors.invalidTransition")
	default:
		kind := ai.Classify(err)
		h.Log.Error().Err(err).
			Str("kind", kind.String()).
			Str("path", c.FullPath()).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Msg("request failed")
		common.Fail(c, kind.HTTPStatus(), err.Error(), kind.MessageKey())
	}
}
