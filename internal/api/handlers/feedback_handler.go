package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepmate/prepmate/internal/services"
)

// FeedbackHandler exposes the Postgres analytics mirror to admins.
type FeedbackHandler struct {
	svc services.ArchiveService
}

func NewFeedbackHandler(svc services.ArchiveService) *FeedbackHandler {
	return &FeedbackHandler{svc: svc}
}

func (h *FeedbackHandler) ListRecent(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	limit := 100
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.svc.ListFeedback(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": rows})
}

// SessionTranscript returns the archived transcript rows for one session,
// scoped by the owning user passed as a query param.
func (h *FeedbackHandler) SessionTranscript(c *gin.Context) {
	if _, ok := requireUserID(c); !ok {
		return
	}

	limit := 200
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	rows, err := h.svc.ListTranscript(c.Request.Context(), c.Query("user_id"), c.Param("session_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": rows})
}
