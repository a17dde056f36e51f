package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/etag"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/tutordesk/backend/internal/config"
	"github.com/tutordesk/backend/internal/database"
	"github.com/tutordesk/backend/internal/jobs"
	"github.com/tutordesk/backend/internal/logger"
	"github.com/tutordesk/backend/internal/middleware"
	"github.com/tutordesk/backend/internal/notify"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/routes"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(cfg.AppEnv)
	defer func() { _ = appLog.Sync() }()
	zap.ReplaceGlobals(appLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		appLog.Fatal("DB_URL is required")
	}
	db, err := database.Connect(ctx, cfg.DBUrl, cfg.DBMaxConns(), appLog)
	if err != nil {
		appLog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// 3. Realtime hub, notifications and background jobs
	hub := realtime.NewHub(appLog)
	go hub.Run(ctx)

	if cfg.TelegramToken != "" {
		sender, err := notify.NewBotSender(cfg.TelegramToken)
		if err != nil {
			appLog.Fatal("Failed to create telegram bot", zap.Error(err))
		}
		events, unsubscribe := hub.Subscribe(128)
		defer unsubscribe()
		go notify.NewNotifier(sender, repository.NewUserRepository(db), appLog).Run(ctx, events)
	} else {
		appLog.Info("TELEGRAM_TOKEN not set, chat notifications are disabled")
	}

	scheduler := jobs.NewScheduler(appLog)
	completion := jobs.NewClassCompletion(repository.NewClassRepository(db), hub, appLog)
	if err := scheduler.AddClassCompletion(cfg.ClassCompletionCron, completion); err != nil {
		appLog.Fatal("Failed to schedule class completion", zap.Error(err))
	}
	scheduler.Start()

	// 4. Setup Fiber
	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		BodyLimit:             12 * 1024 * 1024,
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           90 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(appLog))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: cfg.CORSOrigins != "*",
	}))
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	app.Use(etag.New())

	// Routes
	if err := routes.RegisterRoutes(app, cfg, db, hub, appLog); err != nil {
		appLog.Fatal("Failed to register routes", zap.Error(err))
	}

	// 5. Start Server
	go func() {
		appLog.Info("Server starting", zap.String("port", cfg.Port), zap.String("env", cfg.AppEnv))
		if err := app.Listen(":" + cfg.Port); err != nil {
			appLog.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLog.Warn("Server shutdown", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
}
