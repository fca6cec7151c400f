package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/prepmate/prepmate/config"
	"github.com/prepmate/prepmate/internal/ai"
	"github.com/prepmate/prepmate/internal/api/handlers"
	"github.com/prepmate/prepmate/internal/api/middleware"
	"github.com/prepmate/prepmate/internal/api/routes"
	"github.com/prepmate/prepmate/internal/cache"
	"github.com/prepmate/prepmate/internal/logger"
	"github.com/prepmate/prepmate/internal/providers/llm"
	"github.com/prepmate/prepmate/internal/providers/stt"
	mongorepo "github.com/prepmate/prepmate/internal/repositories/mongo"
	pgrepo "github.com/prepmate/prepmate/internal/repositories/postgres"
	"github.com/prepmate/prepmate/internal/services"
	"github.com/prepmate/prepmate/internal/storage"
	"github.com/prepmate/prepmate/internal/workers"
)

func main() {
	_ = godotenv.Load()

	l := logger.New()
	ctx := context.Background()

	// Init MongoDB
	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	l.Info("MongoDB connected")

	// Init PostgreSQL
	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	l.Info("PostgreSQL connected")

	// Init Redis
	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	l.Info("Redis connected")

	// Model provider
	provider, err := llm.NewVertexGemini(ctx,
		os.Getenv("VERTEX_PROJECT_ID"),
		getenv("VERTEX_LOCATION", "us-central1"),
		getenv("VERTEX_MODEL", "gemini-1.5-pro"),
	)
	if err != nil {
		log.Fatalf("Vertex init error: %v", err)
	}
	defer provider.Close()
	model := ai.NewClient(provider, l)

	// Resume storage
	uploader, err := storage.NewGCSUploader(ctx, os.Getenv("GCS_BUCKET"))
	if err != nil {
		log.Fatalf("GCS init error: %v", err)
	}

	// Speech-to-text is optional; without it live sessions accept text events only.
	var sttProvider stt.Provider
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		sp, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.Fatalf("Speech init error: %v", err)
		}
		sttProvider = sp
	}

	// Repositories
	plans := mongorepo.NewPlanRepo(config.MongoDatabase())
	resumes := pgrepo.NewResumeFileRepo(config.PostgresDB)
	transcripts := pgrepo.NewTranscriptArchiveRepo(config.PostgresDB)
	feedbackRecords := pgrepo.NewFeedbackRecordRepo(config.PostgresDB)

	c := cache.NewRedisCache(config.RedisClient)

	// Services
	archiveSvc := services.NewArchiveService(plans, transcripts, feedbackRecords, nil, l)
	enqueuer := &workers.ArchiveEnqueuer{Redis: config.RedisClient}

	planSvc := services.NewPlanService(plans, model, c, l)
	interviewSvc := services.NewInterviewService(plans, resumes, model, enqueuer, l)
	resumeSvc := services.NewResumeService(resumes, uploader, l)

	// Archive workers
	pool := &workers.ArchiveWorkerPool{
		Redis:   config.RedisClient,
		Archive: archiveSvc,
		Logger:  l,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("archive worker start error: %v", err)
	}

	// HTTP
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(l))

	routes.RegisterRoutes(r, routes.Deps{
		Plan:      handlers.NewPlanHandler(planSvc),
		Interview: handlers.NewInterviewHandler(interviewSvc),
		Resume:    handlers.NewResumeHandler(resumeSvc),
		Live:      handlers.NewLiveHandler(interviewSvc, sttProvider, c, config.RedisClient, l),
		Feedback:  handlers.NewFeedbackHandler(archiveSvc),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
