package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/services"
	"github.com/prepmate/prepmate/internal/utils"
)

type PlanHandler struct {
	svc services.PlanService
}

func NewPlanHandler(svc services.PlanService) *PlanHandler {
	return &PlanHandler{svc: svc}
}

type CreatePlanRequest struct {
	Title           string `json:"title" binding:"required"`
	Role            string `json:"role" binding:"required"`
	Company         string `json:"company" binding:"required"`
	Level           string `json:"level"`
	ExperienceLevel string `json:"experience_level"`
}

func (h *PlanHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PlanHandler.Create", "invalid request body", err))
		return
	}

	plan, err := h.svc.Create(c.Request.Context(), userID, services.CreatePlanInput{
		Title: req.Title,
		Target: models.PlanTarget{
			Role:    req.Role,
			Company: req.Company,
			Level:   req.Level,
		},
		ExperienceLevel: req.ExperienceLevel,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	plan, err := h.svc.Get(c.Request.Context(), userID, c.Param("plan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	plans, err := h.svc.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

func (h *PlanHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), userID, c.Param("plan_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *PlanHandler) SetStatus(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PlanHandler.SetStatus", "invalid request body", err))
		return
	}

	if err := h.svc.SetStatus(c.Request.Context(), userID, c.Param("plan_id"), models.PlanStatus(req.Status)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": req.Status})
}

type PinTopicRequest struct {
	Pinned bool `json:"pinned"`
}

func (h *PlanHandler) PinTopic(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req PinTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PlanHandler.PinTopic", "invalid request body", err))
		return
	}

	if err := h.svc.SetTopicPinned(c.Request.Context(), userID, c.Param("plan_id"), c.Param("topic_id"), req.Pinned); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pinned": req.Pinned})
}

type RateQuestionRequest struct {
	Rating *int `json:"rating" binding:"required"`
}

func (h *PlanHandler) RateQuestion(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req RateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating == nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PlanHandler.RateQuestion", "invalid request body", err))
		return
	}

	if err := h.svc.SetQuestionRating(c.Request.Context(), userID, c.Param("plan_id"), c.Param("question_id"), *req.Rating); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": *req.Rating})
}

func (h *PlanHandler) GenerateLearning(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	plan, err := h.svc.GenerateLearning(c.Request.Context(), userID, c.Param("plan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) GeneratePractice(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	plan, err := h.svc.GeneratePractice(c.Request.Context(), userID, c.Param("plan_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}
