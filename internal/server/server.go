// Package server contains the HTTP and WebSocket handlers for the askbox API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	_ "askbox/docs" // swagger docs
	"askbox/internal/bootstrap"
	"askbox/internal/cache"
	"askbox/internal/config"
	"askbox/internal/events"
	"askbox/internal/middleware"
	"askbox/internal/models"
	"askbox/internal/notifications"
	"askbox/internal/repository"
	"askbox/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	profileRepo  repository.ProfileRepository
	postRepo     repository.PostRepository
	questionRepo repository.QuestionRepository

	publisher events.Publisher
	feedHub   *notifications.Hub

	userService     *service.UserService
	profileService  *service.ProfileService
	postService     *service.PostService
	questionService *service.QuestionService
}

// NewServer connects the database, Redis and the event bus from cfg and
// builds a server on them.
func NewServer(cfg *config.Config) (*Server, error) {
	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{SeedDemo: cfg.SeedDemoData})
	if err != nil {
		return nil, err
	}

	// A nil client means the app runs without cache, rate limits or revocation.
	publisher, err := events.New(cfg, redisClient)
	if err != nil {
		return nil, fmt.Errorf("event bus connection failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, publisher)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// publisher may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, publisher events.Publisher) (*Server, error) {
	if publisher == nil {
		publisher = events.Noop{}
	}
	store := cache.New(redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("askbox-api"),
		userRepo:       repository.NewUserRepository(db),
		profileRepo:    repository.NewProfileRepository(db, store),
		postRepo:       repository.NewPostRepository(db, store),
		questionRepo:   repository.NewQuestionRepository(db),
		publisher:      publisher,
	}

	server.userService = service.NewUserService(server.userRepo, server.profileRepo)
	server.profileService = service.NewProfileService(server.profileRepo, server.postRepo, server.userRepo, publisher)
	server.postService = service.NewPostService(server.postRepo, server.profileRepo, server.questionRepo, publisher)
	server.questionService = service.NewQuestionService(server.questionRepo, server.profileRepo, publisher)

	// Feeds only carry what arrives over Redis pub/sub.
	if _, ok := publisher.(notifications.Subscriber); ok {
		server.feedHub = notifications.NewHub()
	}

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Copies request and trace ids into the context the logger reads.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "X-Next-Cursor, X-Request-ID, X-Trace-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "askbox API Metrics",
	}))

	api.Get("/swagger/*", swagger.HandlerDefault)

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", s.AuthRequired(), s.Logout)

	// Public reads. Every route here must be registered before the protected
	// group below, whose auth middleware covers everything under /api after it.
	publicProfiles := api.Group("/profiles")
	publicProfiles.Get("/:id/followers", s.GetFollowers)
	publicProfiles.Get("/:id/following", s.GetFollowing)
	publicProfiles.Get("/:id", s.GetProfile)

	api.Get("/posts/:id", s.GetPost)
	api.Get("/questions/:id", s.GetQuestion)

	publicUsers := api.Group("/users")
	publicUsers.Get("/self", s.AuthRequired(), s.GetSelf)
	publicUsers.Get("/:id", s.GetUser)

	protected := api.Group("", s.AuthRequired())

	followLimit := middleware.RateLimit(s.redis, s.config.FollowRateLimitPerMinute, time.Minute, "follow")
	profiles := protected.Group("/profiles")
	profiles.Post("/", s.CreateProfile)
	profiles.Get("/:id/timeline", s.GetTimeline)
	profiles.Get("/:id/questions/asked", s.GetAskedQuestions)
	profiles.Get("/:id/questions", s.GetReceivedQuestions)
	profiles.Put("/:id/followers/:follower", followLimit, s.Follow)
	profiles.Delete("/:id/followers/:follower", followLimit, s.Unfollow)
	profiles.Patch("/:id", s.UpdateProfile)
	profiles.Delete("/:id", s.DeleteProfile)

	posts := protected.Group("/posts")
	posts.Post("/", s.CreatePost)
	posts.Put("/:id/likes/:profile", s.LikePost)
	posts.Delete("/:id/likes/:profile", s.UnlikePost)
	posts.Delete("/:id", s.DeletePost)

	questions := protected.Group("/questions")
	questions.Post("/", middleware.RateLimit(
		s.redis, s.config.QuestionRateLimitPerMinute, time.Minute, "ask"), s.CreateQuestion)
	questions.Delete("/:id", s.DeleteQuestion)

	users := protected.Group("/users")
	users.Put("/:id/profiles/:profileId", s.AddUserProfile)
	users.Delete("/:id/profiles/:profileId", s.RemoveUserProfile)
	users.Delete("/:id", s.DeleteUser)

	ws := protected.Group("/ws")
	ws.Post("/ticket", s.IssueWSTicket)
	ws.Get("/profiles/:id", s.ProfileFeedHandler())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database, Redis and event bus health.
// Redis is optional: without it the API serves uncached.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	} else if redisStatus != "healthy" {
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"events":   s.publisher.Backend(),
		},
		"time": time.Now(),
	})
}

// AuthRequired validates the bearer token, or a single-use ticket on /api/ws
// routes, and stores the user id in locals and the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Nested groups may run this twice; a ticket can only be consumed once.
		if _, ok := c.Locals("userID").(uint); ok {
			return c.Next()
		}

		if isWSPath(c.Path()) {
			userID, err := s.consumeWSTicket(c.UserContext(), c.Query("ticket"))
			if err != nil {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Invalid or expired WebSocket ticket"))
			}
			if userID != 0 {
				return s.authenticated(c, userID)
			}
		}

		token, err := middleware.BearerToken(c)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}

		claims, err := middleware.ParseToken(s.config.JWTSecret, token)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Invalid or expired token"))
		}

		if claims.JTI != "" && s.redis != nil {
			revoked, err := s.redis.Exists(c.UserContext(), middleware.BlacklistKey(claims.JTI)).Result()
			if err == nil && revoked > 0 {
				return models.RespondWithError(c, fiber.StatusUnauthorized,
					models.NewUnauthorizedError("Token has been revoked"))
			}
		}

		c.Locals("jti", claims.JTI)
		c.Locals("tokenExpiresAt", claims.ExpiresAt)
		return s.authenticated(c, claims.UserID)
	}
}

func (s *Server) authenticated(c *fiber.Ctx, userID uint) error {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), middleware.UserIDKey, userID)
	c.SetUserContext(ctx)
	return c.Next()
}

// optionalUserID extracts the user id from a valid bearer token without enforcing one.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid, true
	}
	token, err := middleware.BearerToken(c)
	if err != nil {
		return 0, false
	}
	claims, err := middleware.ParseToken(s.config.JWTSecret, token)
	if err != nil {
		return 0, false
	}
	if claims.JTI != "" && s.redis != nil {
		if n, err := s.redis.Exists(c.UserContext(), middleware.BlacklistKey(claims.JTI)).Result(); err == nil && n > 0 {
			return 0, false
		}
	}
	return claims.UserID, true
}

// App builds the Fiber app with middleware and routes but does not listen.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "askbox API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			middleware.Logger.ErrorContext(c.UserContext(), "Unhandled error",
				slog.String("path", c.Path()), slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start starts the server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.feedHub != nil {
		if sub, ok := s.publisher.(notifications.Subscriber); ok {
			if err := s.feedHub.StartWiring(s.shutdownCtx, sub); err != nil {
				middleware.Logger.Error("Failed to start profile feed wiring", slog.String("error", err.Error()))
			}
		}
	}

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.feedHub != nil {
		if err := s.feedHub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("Error shutting down feed hub", slog.String("error", err.Error()))
		}
	}

	if err := s.publisher.Close(); err != nil {
		middleware.Logger.Error("Error closing event publisher", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("Error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("Error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}

func formatUserID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
