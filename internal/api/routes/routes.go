package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prepmate/prepmate/internal/api/handlers"
	"github.com/prepmate/prepmate/internal/api/middleware"
)

type Deps struct {
	Plan      *handlers.PlanHandler
	Interview *handlers.InterviewHandler
	Resume    *handlers.ResumeHandler
	Live      *handlers.LiveHandler
	Feedback  *handlers.FeedbackHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/plans", d.Plan.Create)
	auth.GET("/plans", d.Plan.List)
	auth.GET("/plans/:plan_id", d.Plan.Get)
	auth.DELETE("/plans/:plan_id", d.Plan.Delete)
	auth.PATCH("/plans/:plan_id/status", d.Plan.SetStatus)
	auth.PATCH("/plans/:plan_id/topics/:topic_id/pin", d.Plan.PinTopic)
	auth.PATCH("/plans/:plan_id/questions/:question_id/rating", d.Plan.RateQuestion)
	auth.POST("/plans/:plan_id/learning/generate", d.Plan.GenerateLearning)
	auth.POST("/plans/:plan_id/practice/generate", d.Plan.GeneratePractice)

	auth.POST("/plans/:plan_id/assessment/upload-resume", d.Resume.Upload)
	auth.POST("/plans/:plan_id/assessment/start", d.Interview.Start)
	auth.POST("/plans/:plan_id/assessment/:session_id/next", d.Interview.Next)
	auth.POST("/plans/:plan_id/assessment/:session_id/warning", d.Interview.Warning)
	auth.POST("/plans/:plan_id/assessment/:session_id/end", d.Interview.End)
	auth.GET("/plans/:plan_id/assessment/:session_id", d.Interview.Get)

	// WebSocket
	auth.GET("/ws/plans/:plan_id/assessment", d.Live.SessionWS)

	// Admin analytics
	admin := r.Group("/admin")
	admin.Use(middleware.JWTAuth(), middleware.RequireAdmin())
	admin.GET("/feedback", d.Feedback.ListRecent)
	admin.GET("/sessions/:session_id/transcript", d.Feedback.SessionTranscript)
}
