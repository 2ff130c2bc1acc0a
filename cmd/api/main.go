package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/Yonsn76/cv-clasification-sub000/internal/config"
	"github.com/Yonsn76/cv-clasification-sub000/internal/handlers"
	"github.com/Yonsn76/cv-clasification-sub000/internal/modelstore"
	"github.com/Yonsn76/cv-clasification-sub000/internal/repositories"
	"github.com/Yonsn76/cv-clasification-sub000/internal/services"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Println("✅ Config loaded successfully")

	// Initialize database
	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize repositories
	appRepo := repositories.NewApplicationRepository(db)
	log.Println("✅ Repositories initialized successfully")

	// Initialize model store
	store, err := modelstore.New(cfg.ModelsDir(), cfg.DeepModelsDir())
	if err != nil {
		log.Fatalf("❌ Failed to initialize model store: %v", err)
	}
	log.Println("✅ Model store initialized successfully")

	// Initialize services
	pdfParser := services.NewPDFParserService()
	corpusBuilder := services.NewCorpusBuilder(pdfParser)
	classifier := services.NewClassifierService(store, appRepo, pdfParser)
	trainer := services.NewTrainerService(corpusBuilder, store, cfg.BertCacheDir(), cfg.Worker.QueueSize)
	log.Println("✅ Services initialized successfully")

	// Start training worker
	ctx := context.Background()
	trainer.Start(ctx)

	// Initialize handlers
	appHandler := handlers.NewApplicationHandler(appRepo, classifier, cfg.Storage.MaxFileSize)
	trainHandler := handlers.NewTrainHandler(trainer)
	modelHandler := handlers.NewModelHandler(store, classifier, cfg.CacheDir())
	log.Println("✅ Handlers initialized")

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "CV Classification API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		BodyLimit:    int(cfg.Storage.MaxFileSize) * 2,
		ErrorHandler: customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	// Routes
	api := app.Group("/api/v1")

	// Health check
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	// Applications
	api.Post("/applications", appHandler.HandleCreate)
	api.Get("/applications", appHandler.HandleList)
	api.Get("/applications/:id", appHandler.HandleGet)
	api.Post("/applications/:id/classify", appHandler.HandleClassify)

	// Training
	api.Post("/train", trainHandler.HandleTrain)
	api.Get("/train/:id", trainHandler.HandleJobStatus)
	api.Post("/train/:id/cancel", trainHandler.HandleCancel)

	// Models
	api.Get("/models", modelHandler.HandleList)
	api.Get("/models/current", modelHandler.HandleCurrent)
	api.Post("/models/import", modelHandler.HandleImport)
	api.Get("/models/:slug", modelHandler.HandleGet)
	api.Delete("/models/:slug", modelHandler.HandleDelete)
	api.Get("/models/:slug/export", modelHandler.HandleExport)
	api.Post("/models/:slug/select", modelHandler.HandleSelect)

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "CV Classification API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/applications",
				"POST /api/v1/applications/:id/classify",
				"POST /api/v1/train",
				"GET /api/v1/train/:id",
				"GET /api/v1/models",
				"POST /api/v1/models/:slug/select",
				"GET /api/v1/models/:slug/export",
				"POST /api/v1/models/import",
			},
		})
	})

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("\n🛑 Shutting down server...")
		trainer.Stop()
		if err := app.Shutdown(); err != nil {
			log.Printf("❌ Server forced to shutdown: %v", err)
		}
	}()

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
		"code":  code,
	})
}
