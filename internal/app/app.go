package app

import (
	"context"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/controller"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/service"
	"course_lms_backend/pkg/configwatcher"
	"course_lms_backend/pkg/database"
	"course_lms_backend/pkg/logger"
	"course_lms_backend/pkg/monitoring"
	"course_lms_backend/pkg/security"
	"course_lms_backend/pkg/tracing"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user        *repository.UserRepository
	course      *repository.CourseRepository
	category    *repository.CategoryRepository
	review      *repository.ReviewRepository
	entitlement *repository.EntitlementRepository
	progress    *repository.ProgressRepository
	quiz        *repository.QuizRepository
	certificate *repository.CertificateRepository
	payment     *repository.PaymentRepository
}

type services struct {
	auth        *service.AuthService
	storage     *service.StorageService
	access      *service.AccessService
	completion  *service.CompletionService
	progress    *service.ProgressService
	quiz        *service.QuizService
	catalog     *service.CatalogService
	review      *service.ReviewService
	entitlement *service.EntitlementService
	payment     *service.PaymentService
	certificate *service.CertificateService
	watch       *service.WatchSessionServer
}

type controllers struct {
	auth        *controller.AuthController
	course      *controller.CourseController
	video       *controller.VideoController
	quiz        *controller.QuizController
	certificate *controller.CertificateController
	payment     *controller.PaymentController
	health      *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client) *repositories {
	return &repositories{
		user:        repository.NewUserRepository(db),
		course:      repository.NewCourseRepository(db),
		category:    repository.NewCategoryRepository(db),
		review:      repository.NewReviewRepository(db),
		entitlement: repository.NewEntitlementRepository(db, rdb),
		progress:    repository.NewProgressRepository(db),
		quiz:        repository.NewQuizRepository(db),
		certificate: repository.NewCertificateRepository(db),
		payment:     repository.NewPaymentRepository(db),
	}
}

// certificateRenderer 字体加载失败时退回默认字体
func certificateRenderer(cfg config.CertificateConfig) service.CertificateRenderer {
	renderer, err := service.NewPNGCertificateRenderer(cfg)
	if err == nil {
		return renderer
	}
	logger.Log.Warn("certificate font unavailable, using default face",
		zap.String("font", cfg.FontPath), zap.Error(err))
	cfg.FontPath = ""
	renderer, _ = service.NewPNGCertificateRenderer(cfg)
	return renderer
}

func (a *App) initServices(repos *repositories, cfg *config.Config, db *gorm.DB, gateway service.PaymentGateway) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.access = service.NewAccessService(repos.course, repos.entitlement)
	s.certificate = service.NewCertificateService(repos.certificate, repos.user, repos.course, certificateRenderer(cfg.Certificate), s.storage)
	s.completion = service.NewCompletionService(db, repos.course, repos.progress, repos.quiz, repos.certificate, s.certificate)
	s.progress = service.NewProgressService(db, repos.progress, repos.course, s.access, s.completion)
	s.quiz = service.NewQuizService(db, repos.quiz, repos.progress, repos.entitlement, s.completion)
	s.catalog = service.NewCatalogService(repos.course, repos.category, repos.progress, repos.quiz, s.access)
	s.review = service.NewReviewService(repos.review, repos.course, repos.entitlement)
	s.entitlement = service.NewEntitlementService(repos.entitlement, repos.course, repos.progress)
	s.payment = service.NewPaymentService(db, repos.payment, repos.entitlement, repos.course, repos.user, s.entitlement, gateway, cfg.Payment)
	s.watch = service.NewWatchSessionServer(s.progress, cfg.CORS.AllowedOrigins)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		auth:        controller.NewAuthController(s.auth),
		course:      controller.NewCourseController(s.catalog, s.progress, s.entitlement, s.payment, s.quiz, s.certificate, s.review),
		video:       controller.NewVideoController(s.catalog, s.access, s.progress, s.watch),
		quiz:        controller.NewQuizController(s.quiz),
		certificate: controller.NewCertificateController(s.certificate),
		payment:     controller.NewPaymentController(s.payment),
		health:      controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// build 组装依赖与路由，数据库与缓存由调用方提供
func build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, gateway service.PaymentGateway) *App {
	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db, rdb)
	services := app.initServices(repos, cfg, db, gateway)
	controllers := app.initControllers(services, db, rdb)

	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(logger.ApplyConfig)
	return app
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存仅用于加速授权查询，不可用时直接查库
		logger.Log.Warn("Redis unavailable, entitlement cache disabled", zap.Error(err))
		rdb = nil
	}

	app := build(cfg, db, rdb, service.NewMidtransGateway(cfg.Payment))

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(tracing.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	return app
}

func (a *App) watchConfig(ctx context.Context) {
	if a.Config.FilePath == "" {
		return
	}
	go func() {
		err := configwatcher.WatchConfig(ctx, a.Config.FilePath, func(cfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(cfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	a.watchConfig(ctx)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
