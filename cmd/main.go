package main

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/adapta-backend/internal/db"
	"github.com/yungbote/adapta-backend/internal/handlers"
	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/middleware"
	"github.com/yungbote/adapta-backend/internal/repos"
	"github.com/yungbote/adapta-backend/internal/server"
	"github.com/yungbote/adapta-backend/internal/services"
	"github.com/yungbote/adapta-backend/internal/utils"
)

func main() {
	log, err := logger.New(utils.GetEnv(nil, "APP_ENV", "dev"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	gormDB, err := openDB(log)
	if err != nil {
		log.Fatal("Failed to open database", "error", err)
	}

	userRepo := repos.NewUserRepo(gormDB, log)
	tokenRepo := repos.NewUserTokenRepo(gormDB, log)
	studentRepo := repos.NewStudentRepo(gormDB, log)
	activityRepo := repos.NewActivityRepo(gormDB, log)
	pageRepo := repos.NewActivityPageRepo(gormDB, log)
	ocrRepo := repos.NewOcrExtractionRepo(gormDB, log)
	embeddingRepo := repos.NewEmbeddingRepo(gormDB, log)
	runRepo := repos.NewAdaptationRunRepo(gormDB, log)

	storage, err := services.NewStorageFromEnv(log)
	if err != nil {
		log.Fatal("Failed to init storage", "error", err)
	}
	ocrProvider, err := services.NewOcrProviderFromEnv(log)
	if err != nil {
		log.Fatal("Failed to init OCR provider", "error", err)
	}
	knowledgeStore, err := services.NewKnowledgeStoreFromEnv(log)
	if err != nil {
		log.Fatal("Failed to load knowledge corpus", "error", err)
	}

	openAIClient := services.NewOpenAIClient(log)
	embedder := services.NewEmbedderFromEnv(log, openAIClient)
	embeddingService := services.NewEmbeddingService(embeddingRepo, embedder, log)
	retriever := services.NewRetriever(embeddingRepo, embedder, knowledgeStore, log)
	generator := services.NewPlanGeneratorFromEnv(log, openAIClient)
	renderer := services.NewRenderer(log)

	ctx := context.Background()
	if err := embeddingService.ReindexKnowledge(ctx, knowledgeStore); err != nil {
		log.Fatal("Failed to index knowledge corpus", "error", err)
	}

	adaptationService := services.NewAdaptationService(services.AdaptationDeps{
		DB:           gormDB,
		RunRepo:      runRepo,
		ActivityRepo: activityRepo,
		StudentRepo:  studentRepo,
		PageRepo:     pageRepo,
		OcrRepo:      ocrRepo,
		Storage:      storage,
		Rasterizer:   services.NewRasterizer(log),
		Ocr:          ocrProvider,
		Embeddings:   embeddingService,
		Retriever:    retriever,
		Generator:    generator,
		Renderer:     renderer,
		Log:          log,
	})
	adaptationService.StartWorker(ctx)

	authService := services.NewAuthService(userRepo, tokenRepo, log)
	studentService := services.NewStudentService(studentRepo, log)
	activityService := services.NewActivityService(activityRepo, pageRepo, studentService, storage, adaptationService, log)
	statusService := services.NewStatusService(runRepo, activityRepo, studentRepo, storage,
		services.NewStatusCacheFromEnv(log), log)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     handlers.NewAuthHandler(authService, log),
		StudentHandler:  handlers.NewStudentHandler(studentService, log),
		ActivityHandler: handlers.NewActivityHandler(activityService, statusService, log),
		AuthMiddleware:  middleware.NewAuthMiddleware(authService, log),
		Log:             log,
		AllowOrigins:    splitOrigins(utils.GetEnv(log, "CORS_ALLOW_ORIGINS", "")),
	})

	port := utils.GetEnv(log, "PORT", "8080")
	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}

func openDB(log *logger.Logger) (*gorm.DB, error) {
	if strings.EqualFold(utils.GetEnv(log, "DB_DRIVER", "postgres"), "sqlite") {
		return db.NewSqliteDB(log, utils.GetEnv(log, "SQLITE_PATH", "./data/adapta.db"))
	}
	pg, err := db.NewPostgresService(log)
	if err != nil {
		return nil, err
	}
	return pg.DB(), nil
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var origins []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
