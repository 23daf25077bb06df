package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/santiagoarielv98/sistema-gestion-academica/api/swagger"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/handler"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/middleware"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/models"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/repository"
	"github.com/santiagoarielv98/sistema-gestion-academica/internal/service"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/cache"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/config"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/database"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/export"
	"github.com/santiagoarielv98/sistema-gestion-academica/pkg/logger"
	corsmiddleware "github.com/santiagoarielv98/sistema-gestion-academica/pkg/middleware/cors"
	reqidmiddleware "github.com/santiagoarielv98/sistema-gestion-academica/pkg/middleware/requestid"
)

// @title Sistema de Gestión Académica API
// @version 1.0.0
// @description Administration of programs, courses, students and enrollments.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}

	metricsSvc := service.NewMetricsService()

	// Repositories
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	userRepo := repository.NewUserRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled)
	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		TokenSecret: cfg.JWT.Secret,
		TokenExpiry: cfg.JWT.Expiration,
		Issuer:      cfg.JWT.Issuer,
	})
	programSvc := service.NewProgramService(programRepo, courseRepo, nil, logr)
	courseSvc := service.NewCourseService(courseRepo, programRepo, enrollmentRepo, nil, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, programRepo, enrollmentRepo, nil, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, cacheRepo, nil, logr)
	userSvc := service.NewUserService(userRepo, nil, logr)
	reportSvc := service.NewReportService(reportRepo, cacheSvc,
		export.NewCSVExporter(), export.NewPDFExporter(cfg.Exports.Author), logr)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc, studentSvc, metricsSvc)
	userHandler := handler.NewUserHandler(userSvc)
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

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
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
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	}

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staffRoles := middleware.RequireRoles(models.RoleAdministrator, models.RoleTeacher, models.RoleProctor)
	adminProctor := middleware.RequireRoles(models.RoleAdministrator, models.RoleProctor)
	adminOnly := middleware.RequireRoles(models.RoleAdministrator)

	programs := protected.Group("/programs")
	{
		programs.GET("", programHandler.List)
		programs.GET("/:id", programHandler.Get)
		programs.GET("/:id/courses", programHandler.ListCourses)
		programs.GET("/:id/students", staffRoles, studentHandler.ListByProgram)
		programs.POST("", adminOnly, programHandler.Create)
		programs.DELETE("/:id", adminOnly, programHandler.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", courseHandler.List)
		courses.GET("/available", courseHandler.ListAvailable)
		courses.GET("/:id", courseHandler.Get)
		courses.GET("/:id/enrollments", staffRoles, courseHandler.ListEnrollments)
		courses.POST("", adminOnly, courseHandler.Create)
		courses.DELETE("/:id", adminOnly, courseHandler.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", adminProctor, studentHandler.List)
		students.GET("/me", studentHandler.Me)
		students.GET("/:id", studentHandler.Get)
		students.GET("/:id/enrollments", studentHandler.ListEnrollments)
		students.POST("", adminProctor, studentHandler.Create)
		students.POST("/repair-missing-users", adminOnly, studentHandler.RepairMissingUsers)
		students.DELETE("/:id", adminOnly, studentHandler.Deactivate)
	}

	enrollments := protected.Group("/enrollments")
	{
		enrollments.GET("", enrollmentHandler.List)
		enrollments.GET("/:id", enrollmentHandler.Get)
		enrollments.POST("", middleware.RequireRoles(models.RoleAdministrator, models.RoleProctor, models.RoleStudent), enrollmentHandler.Enroll)
		enrollments.DELETE("/:id", adminProctor, enrollmentHandler.Withdraw)
	}

	users := protected.Group("/users")
	{
		users.GET("", adminOnly, userHandler.List)
		users.GET("/:id", middleware.RBAC(string(models.RoleAdministrator), middleware.RoleSelf), userHandler.Get)
		users.POST("", adminOnly, userHandler.Create)
		users.DELETE("/:id", adminOnly, userHandler.Deactivate)
	}

	reports := protected.Group("/reports")
	reports.Use(adminOnly)
	{
		reports.GET("/general", reportHandler.General)
		reports.GET("/general/export", reportHandler.Export)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
