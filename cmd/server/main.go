package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptolearn-backend/internal/cache"
	"cryptolearn-backend/internal/config"
	"cryptolearn-backend/internal/database"
	"cryptolearn-backend/internal/handler"
	"cryptolearn-backend/internal/logging"
	"cryptolearn-backend/internal/mail"
	"cryptolearn-backend/internal/metrics"
	"cryptolearn-backend/internal/middleware"
	"cryptolearn-backend/internal/repository"
	"cryptolearn-backend/internal/service"
	"cryptolearn-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// 1. Load configuration
	cfg := config.LoadConfig()
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "gin_mode", cfg.Server.GinMode, "cache_backend", cfg.Cache.Backend)

	// 2. Initialize JWT codec
	codec, err := utils.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.Issuer, log)
	if err != nil {
		log.Error("failed to initialize token codec", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Initialize database connection
	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		log.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	// 4. Initialize repositories
	userRepo := repository.NewUserRepo(db)
	roleRepo := repository.NewRoleRepo(db)
	refreshRepo := repository.NewRefreshTokenRepo(db)
	resetRepo := repository.NewResetTokenRepo(db)
	auditRepo := repository.NewAuditRepo(db)

	// 5. Answer cache, mailer and metrics
	answers, closeAnswers, err := newAnswerStore(ctx, cfg.Cache, log)
	if err != nil {
		log.Error("failed to initialize answer cache", "error", err)
		os.Exit(1)
	}
	defer closeAnswers()

	mailer, err := mail.NewSender(cfg.Mail, log)
	if err != nil {
		log.Error("failed to initialize mailer", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// 6. Initialize services
	authService := service.NewAuthService(userRepo, roleRepo, refreshRepo, auditRepo, codec, cfg.JWT, m, log)
	resetService := service.NewPasswordResetService(
		userRepo, resetRepo, auditRepo, mailer,
		cfg.PasswordReset.TokenExpiry, cfg.Mail.FrontendBaseURL, m, log,
	)
	userService := service.NewUserService(userRepo, roleRepo, auditRepo, log)
	cipherService := service.NewCipherService(log)
	taskService := service.NewTaskService(cipherService, answers, m, log)
	cleanupService := service.NewCleanupService(refreshRepo, resetRepo, answers, cfg.Server.CleanupInterval, m, log)

	// 7. Start background worker in goroutine
	go cleanupService.Start(ctx)

	// 8. Setup Gin router
	gin.SetMode(cfg.Server.GinMode)
	handler.RegisterValidators()

	r := gin.New()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.CORS(cfg.CORS))

	auth := middleware.NewAuthenticator(codec, userRepo, log)

	registerRoutes(r, routeDeps{
		auth:    auth,
		authH:   handler.NewAuthHandler(authService, resetService, log),
		userH:   handler.NewUserHandler(userService, authService, log),
		taskH:   handler.NewTaskHandler(taskService, log),
		cipherH: handler.NewCipherHandler(cipherService, log),
		metrics: m,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 9. Setup graceful shutdown
	go func() {
		log.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Stop the cleanup worker
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	// Let queued reset emails go out
	resetService.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server exited")
}

type routeDeps struct {
	auth    *middleware.Authenticator
	authH   *handler.AuthHandler
	userH   *handler.UserHandler
	taskH   *handler.TaskHandler
	cipherH *handler.CipherHandler
	metrics *metrics.Metrics
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		utils.SuccessResponse(c, gin.H{
			"status":  "healthy",
			"service": "cryptolearn-backend",
		})
	})
	r.GET("/metrics", gin.WrapH(d.metrics.Handler()))

	api := r.Group("/api")

	// Auth routes (public except logout)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", d.authH.Register)
		authGroup.POST("/login", d.authH.Login)
		authGroup.POST("/refresh", d.authH.Refresh)
		authGroup.POST("/logout", d.auth.RequireAuth(), d.authH.Logout)
		authGroup.POST("/request-password-reset", d.authH.RequestPasswordReset)
		authGroup.GET("/reset-password/validate", d.authH.ValidateResetToken)
		authGroup.POST("/reset-password", d.authH.ResetPassword)
	}

	users := api.Group("/users/me")
	users.Use(d.auth.RequireAuth())
	{
		users.GET("", d.userH.GetMe)
		users.PUT("", d.userH.UpdateMe)
		users.DELETE("", d.userH.DeleteMe)
		users.POST("/change-password", d.userH.ChangePassword)
	}

	// Admin-only routes
	admin := api.Group("/admin")
	admin.Use(d.auth.RequireAuth(), middleware.RequireAdmin())
	{
		admin.GET("/users", d.userH.ListUsers)
		admin.PUT("/users/:userId", d.userH.UpdateUser)
		admin.DELETE("/users/:userId", d.userH.DeleteUser)
	}

	tasks := api.Group("/tasks/caesar")
	tasks.Use(d.auth.RequireAuth())
	{
		tasks.POST("/generate/:taskType", d.taskH.Generate)
		tasks.POST("/verify/:taskType", d.taskH.Verify)
	}

	api.POST("/cipher/visualize", d.cipherH.Visualize)
}

// newAnswerStore picks the answer cache backend. The returned func releases it.
func newAnswerStore(ctx context.Context, cfg config.CacheConfig, log *slog.Logger) (cache.AnswerStore, func(), error) {
	if cfg.Backend == "redis" {
		store, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.AnswerTTL)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis answer cache", "addr", cfg.RedisAddr, "ttl", cfg.AnswerTTL)
		return store, func() { _ = store.Close() }, nil
	}

	log.Info("using in-memory answer cache", "ttl", cfg.AnswerTTL)
	return cache.NewMemoryStore(cfg.AnswerTTL), func() {}, nil
}
