package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/attendly/attendly-api/api/swagger"
	"github.com/attendly/attendly-api/internal/handler"
	"github.com/attendly/attendly-api/internal/middleware"
	"github.com/attendly/attendly-api/internal/models"
	"github.com/attendly/attendly-api/internal/repository"
	"github.com/attendly/attendly-api/internal/service"
	"github.com/attendly/attendly-api/pkg/cache"
	"github.com/attendly/attendly-api/pkg/config"
	"github.com/attendly/attendly-api/pkg/database"
	"github.com/attendly/attendly-api/pkg/logger"
	"github.com/attendly/attendly-api/pkg/mail"
	corsmiddleware "github.com/attendly/attendly-api/pkg/middleware/cors"
	reqidmiddleware "github.com/attendly/attendly-api/pkg/middleware/requestid"
	"github.com/attendly/attendly-api/pkg/recognition"
	"github.com/attendly/attendly-api/pkg/storage"
)

// @title Attendly API
// @version 1.0.0
// @description School attendance service with roster ingestion and face-recognition marking
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, summaries will not be cached", zap.Error(err))
		redisClient = nil
	}

	assetStore, err := storage.NewCloudinaryStore(cfg.Cloudinary)
	if err != nil {
		logr.Fatal("failed to init asset store", zap.Error(err))
	}

	recognitionClient := recognition.New(cfg.Recognition)

	var sender mail.Sender
	if cfg.Mail.SendgridAPIKey != "" {
		sender = mail.NewSendgridSender(cfg.Mail)
	} else {
		logr.Warn("no sendgrid key configured, credential emails go to the log")
		sender = mail.NewConsoleSender(logr)
	}

	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	classRepo := repository.NewClassRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "attendly-api",
	})
	userSvc := service.NewUserService(userRepo, sender, nil, logr)
	schoolSvc := service.NewSchoolService(schoolRepo, nil, logr)
	classSvc := service.NewClassService(classRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, assetStore, recognitionClient, nil, logr)
	ingestionSvc := service.NewIngestionService(studentRepo, classRepo, assetStore, metricsSvc, logr, service.IngestionConfig{
		UploadConcurrency: cfg.Ingestion.UploadConcurrency,
		UploadTimeout:     cfg.Ingestion.UploadTimeout,
	})
	attendanceSvc := service.NewAttendanceService(attendanceRepo, studentRepo, recognitionClient, redisClient, cfg.Attendance.SummaryCacheTTL, nil, logr)
	reportSvc := service.NewReportService(attendanceRepo, studentRepo, logr, nil, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	schoolHandler := handler.NewSchoolHandler(schoolSvc)
	classHandler := handler.NewClassHandler(classSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	ingestionHandler := handler.NewIngestionHandler(ingestionSvc, cfg.Ingestion)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

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
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	protected := api.Group("", middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RolePrincipal, models.RoleTeacher)

	schools := protected.Group("/schools", adminOnly)
	{
		schools.GET("", schoolHandler.List)
		schools.GET("/:id", schoolHandler.Get)
		schools.POST("", schoolHandler.Create)
		schools.PUT("/:id", schoolHandler.Update)
		schools.DELETE("/:id", schoolHandler.Delete)
	}

	users := protected.Group("/users")
	{
		users.GET("", staff, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RolePrincipal), "SELF"), userHandler.Get)
		users.POST("", staff, userHandler.Create)
		users.PUT("/:id", staff, userHandler.Update)
		users.DELETE("/:id", adminOnly, userHandler.Delete)
	}

	classes := protected.Group("/classes")
	{
		classes.GET("", anyRole, classHandler.List)
		classes.GET("/:id", anyRole, classHandler.Get)
		classes.POST("", staff, classHandler.Create)
		classes.PUT("/:id", staff, classHandler.Update)
		classes.DELETE("/:id", staff, classHandler.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", anyRole, studentHandler.List)
		students.GET("/:id", anyRole, studentHandler.Get)
		students.POST("", anyRole, studentHandler.Create)
		students.PUT("/:id", anyRole, studentHandler.Update)
		students.DELETE("/:id", staff, studentHandler.Delete)
		students.POST("/:id/photo", anyRole, studentHandler.SetPhoto)
		students.POST("/bulk-upload", anyRole, ingestionHandler.BulkRoster)
		students.POST("/bulk-photo-upload", anyRole, ingestionHandler.BulkPhotos)
	}

	attendance := protected.Group("/attendance", anyRole)
	{
		attendance.POST("/sessions", attendanceHandler.CreateSession)
		attendance.GET("/sessions", attendanceHandler.ListSessions)
		attendance.GET("/sessions/:id", attendanceHandler.GetSession)
		attendance.POST("/sessions/:id/mark", attendanceHandler.Mark)
		attendance.POST("/sessions/:id/recognize", attendanceHandler.Recognize)
		attendance.POST("/sessions/:id/finalize", attendanceHandler.Finalize)
		attendance.GET("/summary/:classId", attendanceHandler.Summary)
	}

	reports := protected.Group("/reports", anyRole)
	{
		reports.GET("/attendance/:classId", reportHandler.Attendance)
		reports.GET("/summary/:classId", reportHandler.Summary)
	}

	protected.GET("/metrics/snapshot", adminOnly, metricsHandler.Snapshot)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
