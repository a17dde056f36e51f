package routes

import (
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tutordesk/backend/internal/config"
	"github.com/tutordesk/backend/internal/handlers"
	"github.com/tutordesk/backend/internal/metrics"
	"github.com/tutordesk/backend/internal/middleware"
	"github.com/tutordesk/backend/internal/models"
	"github.com/tutordesk/backend/internal/realtime"
	"github.com/tutordesk/backend/internal/repository"
	"github.com/tutordesk/backend/internal/services"
	"go.uber.org/zap"
)

const (
	authRateLimit       = 10
	subscribeRateLimit  = 5
	notifyRateLimit     = 3
	publicRateLimitSpan = time.Minute
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool, hub *realtime.Hub, log *zap.Logger) error {
	location := cfg.Location()

	userRepo := repository.NewUserRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	classRepo := repository.NewClassRepository(db)
	classRequestRepo := repository.NewClassRequestRepository(db)
	paymentRepo := repository.NewPaymentNotificationRepository(db)
	homeworkRepo := repository.NewHomeworkRepository(db)
	blogRepo := repository.NewBlogPostRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)
	conversationRepo := repository.NewConversationRepository(db)

	var storageService services.StorageService
	if cfg.StorageEnabled() {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	} else {
		log.Warn("Supabase storage is not configured, uploads are disabled")
	}
	var emailSender services.EmailSender
	if cfg.EmailEnabled() {
		emailSender = services.NewSendgridEmailSender(cfg.SendgridAPIKey, cfg.EmailFromName, cfg.EmailFromAddress)
	} else {
		log.Warn("SendGrid is not configured, newsletter emails are disabled")
	}

	authHandler := handlers.NewAuthHandler(services.NewAuthService(userRepo, cfg), cfg.SiteURL, cfg.AppEnv == "production")
	profileHandler := handlers.NewProfileHandler(services.NewProfileService(userRepo, storageService))
	settingsHandler := handlers.NewSettingsHandler(services.NewSettingsService(settingsRepo, hub))
	availabilityHandler := handlers.NewAvailabilityHandler(
		services.NewAvailabilityService(availabilityRepo, classRepo, userRepo, settingsRepo, hub, location),
	)
	classRequestHandler := handlers.NewClassRequestHandler(
		services.NewClassRequestService(db, classRequestRepo, classRepo, userRepo, settingsRepo, hub, location, log),
	)
	classHandler := handlers.NewClassHandler(
		services.NewClassService(db, classRepo, userRepo, settingsRepo, hub, location, log),
		location,
	)
	paymentHandler := handlers.NewPaymentHandler(services.NewPaymentService(db, paymentRepo, storageService, hub, log))
	homeworkHandler := handlers.NewHomeworkHandler(
		services.NewHomeworkService(homeworkRepo, classRepo, userRepo, storageService, hub),
		location,
	)
	blogHandler := handlers.NewBlogHandler(services.NewBlogService(blogRepo, storageService, hub))
	newsletterHandler := handlers.NewNewsletterHandler(
		services.NewNewsletterService(subscriberRepo, emailSender, cfg.SiteURL, log),
	)
	chatHandler := handlers.NewChatHandler(services.NewChatService(db, conversationRepo, userRepo, hub))
	realtimeHandler := handlers.NewRealtimeHandler(hub, cfg.JWTSecret)

	requireAuth := middleware.AuthRequired(cfg.JWTSecret)
	staffOnly := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.EnableMetrics {
		app.Get("/metrics", metrics.Handler())
	}

	oauth := app.Group("/auth")
	oauth.Get("/login", authHandler.OAuthLogin)
	oauth.Get("/callback", authHandler.OAuthCallback)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", middleware.RateLimit(authRateLimit, publicRateLimitSpan), authHandler.Register)
	auth.Post("/login", middleware.RateLimit(authRateLimit, publicRateLimitSpan), authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)

	blog := api.Group("/blog")
	blog.Get("/posts", blogHandler.ListPublished)
	blog.Get("/posts/:slug", blogHandler.GetPublished)
	blog.Post("/subscribe", middleware.RateLimit(subscribeRateLimit, publicRateLimitSpan), newsletterHandler.Subscribe)
	blog.Get("/unsubscribe", newsletterHandler.Unsubscribe)
	blog.Post("/notify-subscribers",
		middleware.RateLimit(notifyRateLimit, publicRateLimitSpan),
		requireAuth,
		staffOnly,
		newsletterHandler.NotifySubscribers,
	)

	api.Use("/v1/ws", realtimeHandler.Upgrade)
	api.Get("/v1/ws", websocket.New(realtimeHandler.Serve))

	v1 := api.Group("/v1", requireAuth)

	users := v1.Group("/users")
	users.Get("/profile", profileHandler.GetProfile)
	users.Put("/profile", profileHandler.UpdateProfile)
	users.Post("/profile/avatar", profileHandler.UploadAvatar)
	v1.Get("/teachers", profileHandler.ListTeachers)
	v1.Get("/students", staffOnly, profileHandler.ListStudents)

	posts := v1.Group("/blog/posts", staffOnly)
	posts.Get("", blogHandler.List)
	posts.Post("", blogHandler.Create)
	posts.Get("/:id", blogHandler.Get)
	posts.Put("/:id", blogHandler.Update)
	posts.Delete("/:id", blogHandler.Delete)
	posts.Post("/:id/publish", blogHandler.Publish)
	posts.Post("/:id/cover", blogHandler.UploadCover)

	classRequests := v1.Group("/class-requests")
	classRequests.Post("", classRequestHandler.Create)
	classRequests.Get("", classRequestHandler.List)
	classRequests.Get("/:id", classRequestHandler.Get)
	classRequests.Post("/:id/approve", classRequestHandler.Approve)
	classRequests.Post("/:id/reject", classRequestHandler.Reject)
	classRequests.Post("/:id/edit", classRequestHandler.Edit)
	classRequests.Post("/:id/respond", classRequestHandler.Respond)

	classes := v1.Group("/classes")
	classes.Post("", classHandler.Create)
	classes.Get("", classHandler.List)
	classes.Get("/:id", classHandler.Get)
	classes.Put("/:id", classHandler.Update)
	classes.Put("/:id/status", classHandler.UpdateStatus)
	classes.Delete("/:id", classHandler.Delete)

	availability := v1.Group("/availability")
	availability.Get("", availabilityHandler.List)
	availability.Get("/check", availabilityHandler.Check)
	availability.Post("", availabilityHandler.Create)
	availability.Put("/:id", availabilityHandler.Update)
	availability.Delete("/:id", availabilityHandler.Delete)
	v1.Get("/schedule/day", availabilityHandler.Day)

	payments := v1.Group("/payment-notifications")
	payments.Post("", paymentHandler.Submit)
	payments.Get("", paymentHandler.List)
	payments.Post("/:id/confirm", paymentHandler.Confirm)
	payments.Post("/:id/reject", paymentHandler.Reject)
	payments.Get("/:id/receipt", paymentHandler.Receipt)

	homework := v1.Group("/homework")
	homework.Post("", homeworkHandler.Assign)
	homework.Get("", homeworkHandler.List)
	homework.Get("/:id", homeworkHandler.Get)
	homework.Post("/:id/submit", homeworkHandler.Submit)
	homework.Post("/:id/review", homeworkHandler.Review)
	homework.Post("/:id/complete", homeworkHandler.Complete)
	homework.Delete("/:id", homeworkHandler.Delete)
	homework.Get("/:id/attachment", homeworkHandler.Attachment)

	v1.Get("/settings", settingsHandler.Get)
	v1.Put("/settings", settingsHandler.Update)

	conversations := v1.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)

	return nil
}
