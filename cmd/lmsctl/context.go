package main

import (
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/database"
	"course_lms_backend/pkg/logger"
	"sync"

	"gorm.io/gorm"
)

// commandContext 懒加载配置与数据库，测试可直接注入
type commandContext struct {
	configDir string

	once sync.Once
	err  error
	cfg  *config.Config
	db   *gorm.DB

	probe func(path string) (*util.VideoInfo, error)
}

func newCommandContext() *commandContext {
	return &commandContext{probe: util.GetVideoInfo}
}

func (c *commandContext) ensure() error {
	c.once.Do(func() {
		if c.db != nil {
			return
		}
		cfg, err := config.LoadConfig(c.configDir)
		if err != nil {
			c.err = err
			return
		}
		logger.InitLogger(cfg)

		db, err := database.InitDB(&cfg.Database, false)
		if err != nil {
			c.err = err
			return
		}
		c.cfg = cfg
		c.db = db
	})
	return c.err
}

type toolkit struct {
	courses      *repository.CourseRepository
	progressRepo *repository.ProgressRepository
	certRepo     *repository.CertificateRepository
	progress     *service.ProgressService
	certificates *service.CertificateService
}

// services 运维命令不经过缓存，直接读库
func (c *commandContext) services() (*toolkit, error) {
	if err := c.ensure(); err != nil {
		return nil, err
	}
	cfg := c.cfg
	if cfg == nil {
		cfg = &config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: "uploads"}}
	}

	courseRepo := repository.NewCourseRepository(c.db)
	progressRepo := repository.NewProgressRepository(c.db)
	quizRepo := repository.NewQuizRepository(c.db)
	certRepo := repository.NewCertificateRepository(c.db)
	userRepo := repository.NewUserRepository(c.db)
	entitlementRepo := repository.NewEntitlementRepository(c.db, nil)

	renderer, err := service.NewPNGCertificateRenderer(cfg.Certificate)
	if err != nil {
		return nil, err
	}
	certificates := service.NewCertificateService(certRepo, userRepo, courseRepo, renderer, service.NewStorageService(cfg))
	access := service.NewAccessService(courseRepo, entitlementRepo)
	completion := service.NewCompletionService(c.db, courseRepo, progressRepo, quizRepo, certRepo, certificates)

	return &toolkit{
		courses:      courseRepo,
		progressRepo: progressRepo,
		certRepo:     certRepo,
		progress:     service.NewProgressService(c.db, progressRepo, courseRepo, access, completion),
		certificates: certificates,
	}, nil
}
