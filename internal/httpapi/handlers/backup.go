package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/common"
)

func (h *Handler) ExportBackup(c *gin.Context) {
	b, err := h.Jobs.Export(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	name := fmt.Sprintf("ai-prime-backup-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	common.OK(c, b)
}

func (h *Handler) RestoreBackup(c *gin.Context) {
	b, err := h.Jobs.Restore(c.Request.Context(), c.Request.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"restored": len(b.Jobs)})
}
