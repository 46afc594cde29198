package router

import (
	"fmt"
	"log/slog"

	"github.com/anonto42/agara/backend/internal/database"
	"github.com/anonto42/agara/backend/internal/handlers"
	"github.com/anonto42/agara/backend/internal/middleware"
	"github.com/anonto42/agara/backend/internal/models"
	"github.com/anonto42/agara/backend/internal/notifier"
	"github.com/anonto42/agara/backend/internal/push"
	"github.com/anonto42/agara/backend/internal/realtime"
	"github.com/anonto42/agara/backend/internal/repositories"
	"github.com/anonto42/agara/backend/internal/scheduler"
	"github.com/anonto42/agara/backend/pkg/config"
	"github.com/anonto42/agara/backend/pkg/firebase"
	"github.com/labstack/echo/v4"
)

// Deps are the connections and clients the routes are built from.
type Deps struct {
	Config   *config.Config
	DB       *config.DB
	Firebase *firebase.App // nil when FIREBASE_CREDENTIALS_PATH is unset
	Logger   *slog.Logger
}

// Background holds the long-running parts main has to start and stop.
type Background struct {
	Notifier *notifier.Writer
	Listener *realtime.PostgresListener
	Sweeper  *scheduler.StorySweeper
}

// SetupRoutes migrates the schema, builds every component and registers all routes.
func SetupRoutes(e *echo.Echo, d Deps) (*Background, error) {
	cfg, logger := d.Config, d.Logger
	pgdb := d.DB.Postgres

	err := pgdb.AutoMigrate(
		&models.Profile{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.StoryView{},
		&models.Notification{},
		&models.PushSubscription{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	sqlDB, err := pgdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	// Goose owns idx_push_user_endpoint and de-duplicates rows before building it.
	if err := database.Migrate(sqlDB); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("PostgreSQL migrations completed")

	e.GET("/health", handlers.HealthCheck)

	// --- Repositories ---
	mongoDB := d.DB.Mongo.Database(cfg.MongoDatabase)
	profileRepo := repositories.NewPostgresProfileRepository(pgdb)
	postRepo := repositories.NewMongoPostRepository(mongoDB)
	commentRepo := repositories.NewPostgresCommentRepository(pgdb)
	likeRepo := repositories.NewPostgresLikeRepository(pgdb)
	followRepo := repositories.NewPostgresFollowRepository(pgdb)
	storyRepo := repositories.NewStoryRepository(mongoDB, pgdb)
	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	subscriptionRepo := repositories.NewPostgresPushSubscriptionRepository(pgdb)

	// --- Push delivery ---
	var pushOpts []push.Option
	if d.Firebase != nil && d.Firebase.MessagingClient != nil {
		pushOpts = append(pushOpts, push.WithNativeSender(push.NewFCMSender(d.Firebase.MessagingClient)))
	}
	pushService := push.NewService(subscriptionRepo, logger, pushOpts...)
	pushService.Init(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subject:         cfg.VAPIDSubject,
		Timeout:         cfg.PushTimeout,
		Concurrency:     cfg.PushConcurrency,
	})

	var dispatcher push.Dispatcher = pushService
	if cfg.PushSendURL != "" {
		dispatcher = push.NewHTTPDispatcher(cfg.PushSendURL, cfg.ServiceKey, cfg.PushTimeout)
		logger.Info("push dispatch over HTTP", "url", cfg.PushSendURL)
	}
	writer := notifier.New(notificationRepo, profileRepo, dispatcher, logger)

	// --- Realtime ---
	hub := realtime.NewHub(logger, cfg.CORSOrigins...)
	listener := realtime.NewPostgresListener(cfg.PostgresConnStr, realtime.DefaultChannel, hub, logger)

	// --- Service-to-service delivery endpoint ---
	pushHandler := handlers.NewPushHandler(pushService, subscriptionRepo, cfg.VAPIDPublicKey, logger)
	pushGroup := e.Group("/api/push")
	pushGroup.Use(middleware.ServiceKeyMiddleware(cfg.ServiceKey))
	pushHandler.RegisterSendRoute(pushGroup)

	// --- Protected routes ---
	auth, err := authMiddleware(d)
	if err != nil {
		return nil, err
	}
	api := e.Group("/api/v1")
	api.Use(auth)
	logger.Info("authentication middleware applied", "provider", cfg.AuthProvider)

	handlers.NewUserHandler(profileRepo).RegisterProfileRoutes(api)
	handlers.NewPostHandler(postRepo, profileRepo, writer, logger).RegisterPostRoutes(api)
	handlers.NewFollowHandler(followRepo, profileRepo, writer, logger).RegisterFollowRoutes(api)
	handlers.NewCommentHandler(commentRepo, postRepo, profileRepo, writer, logger).RegisterCommentRoutes(api)
	handlers.NewLikeHandler(likeRepo, postRepo, profileRepo, writer, logger).RegisterLikeRoutes(api)
	handlers.NewStoryHandler(storyRepo, profileRepo, logger).RegisterStoryRoutes(api)
	handlers.NewNotificationHandler(notificationRepo, profileRepo).RegisterNotificationRoutes(api)
	pushHandler.RegisterSubscriptionRoutes(api)
	handlers.NewRealtimeHandler(hub, logger).RegisterRealtimeRoutes(api)

	logger.Info("all routes configured", "routes", len(e.Routes()))

	return &Background{
		Notifier: writer,
		Listener: listener,
		Sweeper:  scheduler.NewStorySweeper(storyRepo, cfg.StorySweepInterval, logger),
	}, nil
}

func authMiddleware(d Deps) (echo.MiddlewareFunc, error) {
	switch d.Config.AuthProvider {
	case config.AuthProviderFirebase:
		if d.Firebase == nil || d.Firebase.AuthClient == nil {
			return nil, fmt.Errorf("AUTH_PROVIDER=firebase requires FIREBASE_CREDENTIALS_PATH")
		}
		return middleware.FirebaseAuthMiddleware(d.Firebase.AuthClient), nil
	case config.AuthProviderJWT:
		if d.Config.JWTSecret == "" {
			return nil, fmt.Errorf("AUTH_PROVIDER=jwt requires JWT_SECRET")
		}
		return middleware.JWTAuthMiddleware(d.Config.JWTSecret), nil
	default:
		return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", d.Config.AuthProvider)
	}
}
