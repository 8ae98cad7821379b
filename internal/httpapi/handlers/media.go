package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/blob"
	"github.com/suPer8Hu/ai-prime/internal/common"
)

// ServeMedia streams a stored video.
func (h *Handler) ServeMedia(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		common.Fail(c, http.StatusNotFound, "media not found", "")
		return
	}

	rc, contentType, err := h.Blobs.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, "media not found", "")
			return
		}
		h.fail(c, err)
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "public, max-age=86400")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}
