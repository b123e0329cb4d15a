package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/agrisetu/agrisetu-api/api/swagger"
	"github.com/agrisetu/agrisetu-api/internal/handler"
	"github.com/agrisetu/agrisetu-api/internal/middleware"
	"github.com/agrisetu/agrisetu-api/internal/models"
	"github.com/agrisetu/agrisetu-api/internal/repository"
	"github.com/agrisetu/agrisetu-api/internal/service"
	"github.com/agrisetu/agrisetu-api/pkg/cache"
	"github.com/agrisetu/agrisetu-api/pkg/config"
	"github.com/agrisetu/agrisetu-api/pkg/database"
	"github.com/agrisetu/agrisetu-api/pkg/export"
	"github.com/agrisetu/agrisetu-api/pkg/logger"
	corsmiddleware "github.com/agrisetu/agrisetu-api/pkg/middleware/cors"
	reqidmiddleware "github.com/agrisetu/agrisetu-api/pkg/middleware/requestid"
	"github.com/agrisetu/agrisetu-api/pkg/payu"
	"github.com/agrisetu/agrisetu-api/pkg/storage"
)

// @title AgriSetu API
// @version 1.0.0
// @description Farming education marketplace: courses, consultations and payments
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	mediaStore, err := storage.NewMediaStore(cfg.Storage.MediaDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare media storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)

	validate := validator.New()
	metricsService := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	consultationRepo := repository.NewConsultationRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	ticketRepo := repository.NewTicketRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	var cacheService *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheService = service.NewCacheService(cacheRepo, metricsService, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled)
	} else {
		cacheService = service.NewCacheService(nil, metricsService, cfg.Catalog.CacheTTL, logr, false)
	}

	// Services.
	authService := service.NewAuthService(userRepo, instructorRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "agrisetu-api",
	})
	calendarService := service.NewCalendarService(credentialRepo, cfg.Google, logr)
	consultationService := service.NewConsultationService(consultationRepo, instructorRepo, userRepo, calendarService, validate, logr)
	instructorService := service.NewInstructorService(instructorRepo, cacheService, cfg.Catalog.CacheTTL, validate, logr)
	translationService := service.NewTranslationService(courseRepo, cfg.Translate, logr)
	courseService := service.NewCourseService(courseRepo, instructorRepo, userRepo, mediaStore, signer, translationService, cacheService, cfg.Catalog.CacheTTL, cfg.APIPrefix+"/media", validate, logr)
	receiptExporter := export.NewReceiptExporter("AgriSetu")
	paymentService := service.NewPaymentService(paymentRepo, courseRepo, consultationRepo, userRepo, receiptExporter, validate, logr, service.PaymentConfig{
		Gateway: payu.Config{
			MerchantKey:  cfg.PayU.MerchantKey,
			MerchantSalt: cfg.PayU.MerchantSalt,
			BaseURL:      cfg.PayU.BaseURL,
		},
		SuccessURL: cfg.BaseURL + cfg.APIPrefix + "/payments/callback/success",
		FailureURL: cfg.BaseURL + cfg.APIPrefix + "/payments/callback/failure",
	})
	ticketService := service.NewTicketService(ticketRepo, validate, logr)
	dashboardService := service.NewDashboardService(userRepo, courseRepo, consultationRepo, paymentRepo, ticketRepo, instructorRepo, credentialRepo, metricsService, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	translationService.Start(ctx)
	defer translationService.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authService, calendarService)
	instructorHandler := handler.NewInstructorHandler(instructorService)
	consultationHandler := handler.NewConsultationHandler(consultationService)
	courseHandler := handler.NewCourseHandler(courseService)
	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.FrontendURL)
	ticketHandler := handler.NewTicketHandler(ticketService)
	dashboardHandler := handler.NewDashboardHandler(dashboardService)
	mediaHandler := handler.NewMediaHandler(mediaStore, signer)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))
	r.MaxMultipartMemory = cfg.Storage.MaxUploadBytes

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metricsService.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.GET("/google/callback", authHandler.GoogleCallback)

		authed := auth.Group("", middleware.JWT(authService))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/google", middleware.RequireRoles(models.RoleInstructor), authHandler.GoogleConsent)
	}

	api.GET("/media/*path", mediaHandler.Download)

	courses := api.Group("/courses")
	{
		authed := courses.Group("", middleware.JWT(authService))
		authed.GET("", courseHandler.List)
		authed.POST("", middleware.RequireRoles(models.RoleInstructor), courseHandler.Upload)
		authed.GET("/:id/content", courseHandler.Access)
		authed.POST("/:id/rate", middleware.RequireRoles(models.RoleUser), courseHandler.Rate)
	}

	instructors := api.Group("/instructors")
	{
		instructors.GET("", instructorHandler.Catalog)
		instructors.GET("/:id", instructorHandler.Detail)

		authed := instructors.Group("", middleware.JWT(authService), middleware.RequireRoles(models.RoleInstructor))
		authed.PUT("/profile", instructorHandler.UpdateProfile)
		authed.PUT("/availability", instructorHandler.ReplaceAvailability)
		authed.GET("/free-resources", instructorHandler.FreeResources)
		authed.POST("/free-resources", instructorHandler.ShareFreeResource)
	}

	consultations := api.Group("/consultations", middleware.JWT(authService))
	{
		consultations.POST("", middleware.RequireRoles(models.RoleUser), consultationHandler.Book)
		consultations.GET("", consultationHandler.ListMine)
		consultations.GET("/instructor", middleware.RequireRoles(models.RoleInstructor), consultationHandler.ListForInstructor)
		consultations.POST("/:id/approve", middleware.RequireRoles(models.RoleInstructor), consultationHandler.Approve)
		consultations.POST("/:id/reject", middleware.RequireRoles(models.RoleInstructor), consultationHandler.Reject)
		consultations.POST("/:id/start", middleware.RequireRoles(models.RoleUser), consultationHandler.Start)
	}

	payments := api.Group("/payments")
	{
		// Gateway callbacks are browser form posts signed by hash, not JWT.
		payments.POST("/callback/success", paymentHandler.SuccessCallback)
		payments.POST("/callback/failure", paymentHandler.FailureCallback)

		authed := payments.Group("", middleware.JWT(authService))
		authed.POST("", paymentHandler.Initiate)
		authed.GET("", paymentHandler.Records)
		authed.GET("/:id/receipt", paymentHandler.Receipt)
	}

	tickets := api.Group("/tickets", middleware.JWT(authService))
	{
		tickets.POST("", ticketHandler.Create)
		tickets.GET("", ticketHandler.ListMine)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(authService))
	{
		dashboard.GET("/user", dashboardHandler.User)
		dashboard.GET("/instructor", middleware.RequireRoles(models.RoleInstructor), dashboardHandler.Instructor)
		dashboard.GET("/admin", middleware.RequireRoles(models.RoleAdmin), dashboardHandler.Admin)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", dashboardHandler.ListUsers)
		admin.POST("/users", dashboardHandler.CreateUser)
		admin.GET("/tickets", ticketHandler.ListAll)
		admin.PUT("/tickets/:id", ticketHandler.UpdateStatus)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
