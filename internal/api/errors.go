package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"telegram-diet-diary/internal/report"
)

// fail maps report error classes onto status codes. Storage details are
// logged, not returned.
func fail(c *gin.Context, err error) {
	switch {
	case report.ErrInvalidInput.Has(err):
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
	case report.ErrNotFound.Has(err):
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
	default:
		log.Error().Err(err).
			Str("request_id", c.GetString("requestID")).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "storage unavailable"})
	}
}
