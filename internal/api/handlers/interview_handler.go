package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/services"
	"github.com/prepmate/prepmate/internal/utils"
)

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type StartInterviewRequest struct {
	Type          string `json:"type" binding:"required"`
	Difficulty    string `json:"difficulty"`
	ResumeContent string `json:"resume_content"`
	ResumeRef     string `json:"resume_ref"`
}

func (h *InterviewHandler) Start(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req StartInterviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Start", "invalid request body", err))
		return
	}

	res, err := h.svc.Start(c.Request.Context(), userID, c.Param("plan_id"), services.StartSessionInput{
		Type:          req.Type,
		Difficulty:    req.Difficulty,
		ResumeContent: req.ResumeContent,
		ResumeRef:     req.ResumeRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// TranscriptPayload is the client's whole-transcript replacement for
// next/warning/end.
type TranscriptPayload struct {
	Transcript []TranscriptEntryPayload `json:"transcript"`
}

type TranscriptEntryPayload struct {
	Speaker   string    `json:"speaker" binding:"required"`
	Content   string    `json:"content" binding:"required"`
	Timestamp time.Time `json:"timestamp"`
}

func (p TranscriptPayload) toModel() []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, 0, len(p.Transcript))
	for _, e := range p.Transcript {
		out = append(out, models.TranscriptEntry{
			Speaker:   e.Speaker,
			Content:   e.Content,
			Timestamp: e.Timestamp,
		})
	}
	return out
}

func (h *InterviewHandler) Next(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req TranscriptPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Next", "invalid request body", err))
		return
	}

	question, err := h.svc.Next(c.Request.Context(), userID, c.Param("plan_id"), c.Param("session_id"), req.toModel())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next_question": question})
}

func (h *InterviewHandler) Warning(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req TranscriptPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Warning", "invalid request body", err))
		return
	}

	warning, err := h.svc.Warning(c.Request.Context(), userID, c.Param("plan_id"), c.Param("session_id"), req.toModel())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"warning": warning})
}

func (h *InterviewHandler) End(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req TranscriptPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.End", "invalid request body", err))
		return
	}

	res, err := h.svc.End(c.Request.Context(), userID, c.Param("plan_id"), c.Param("session_id"), req.toModel())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *InterviewHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sess, err := h.svc.GetSession(c.Request.Context(), userID, c.Param("plan_id"), c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}
