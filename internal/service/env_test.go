package service

import (
	"context"
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/testutil"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

// fakePublisher 记录证书发布调用
type fakePublisher struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (p *fakePublisher) Publish(ctx context.Context, cert *model.Certificate) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, cert.Code)
	if p.err != nil {
		return "", p.err
	}
	return "/uploads/certificates/" + cert.Code + ".png", nil
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.codes)
}

type fakeGateway struct {
	requests []CheckoutRequest
	err      error
}

func (g *fakeGateway) CreateTransaction(ctx context.Context, req CheckoutRequest) (string, string, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return "", "", g.err
	}
	return "snap-token-" + req.OrderID, "https://pay.example/" + req.OrderID, nil
}

// memoryCache 进程内的授权缓存，记录清理次数
type memoryCache struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{keys: make(map[string]struct{})}
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.keys[key]
	return ok, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = struct{}{}
	return nil
}

func (c *memoryCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	c.deletes++
	return nil
}

func (c *memoryCache) stats() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys), c.deletes
}

type testEnv struct {
	db              *gorm.DB
	cache           *memoryCache
	entitlementRepo *repository.EntitlementRepository
	publisher       *fakePublisher
	gateway         *fakeGateway
	access          *AccessService
	progress        *ProgressService
	quiz            *QuizService
	completion      *CompletionService
	catalog         *CatalogService
	reviews         *ReviewService
	entitlements    *EntitlementService
	payments        *PaymentService
	certificates    *CertificateService
	auth            *AuthService
}

const testServerKey = "SB-Mid-server-test-key"

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.DB(t)

	courseRepo := repository.NewCourseRepository(db)
	cache := newMemoryCache()
	entitlementRepo := repository.NewEntitlementRepositoryWithCache(db, cache)
	progressRepo := repository.NewProgressRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	userRepo := repository.NewUserRepository(db)

	cfg := &config.Config{
		JWT:     config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour},
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		Payment: config.PaymentConfig{ServerKey: testServerKey, Currency: "INR", TaxRate: 0.18},
	}

	env := &testEnv{db: db, cache: cache, entitlementRepo: entitlementRepo, publisher: &fakePublisher{}, gateway: &fakeGateway{}}
	env.access = NewAccessService(courseRepo, entitlementRepo)
	env.completion = NewCompletionService(db, courseRepo, progressRepo, quizRepo, certRepo, env.publisher)
	env.progress = NewProgressService(db, progressRepo, courseRepo, env.access, env.completion)
	env.quiz = NewQuizService(db, quizRepo, progressRepo, entitlementRepo, env.completion)
	env.catalog = NewCatalogService(courseRepo, repository.NewCategoryRepository(db), progressRepo, quizRepo, env.access)
	env.reviews = NewReviewService(repository.NewReviewRepository(db), courseRepo, entitlementRepo)
	env.entitlements = NewEntitlementService(entitlementRepo, courseRepo, progressRepo)
	env.payments = NewPaymentService(db, paymentRepo, entitlementRepo, courseRepo, userRepo, env.entitlements, env.gateway, cfg.Payment)
	env.auth = NewAuthService(userRepo, cfg)

	renderer, err := NewPNGCertificateRenderer(config.CertificateConfig{IssuerName: "Test Academy"})
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	env.certificates = NewCertificateService(certRepo, userRepo, courseRepo, renderer, NewStorageService(cfg))
	return env
}

// twoDayCourse 第一天免费一个视频，第二天一个付费视频
func twoDayCourse(t *testing.T, db *gorm.DB, slug string) *model.Course {
	return testutil.CreateCourse(t, db, slug, 499,
		testutil.DaySpec{DayNumber: 1, IsFree: true, Videos: []testutil.VideoSpec{{Duration: 600}}},
		testutil.DaySpec{DayNumber: 2, Videos: []testutil.VideoSpec{{Duration: 300}}},
	)
}

func (e *testEnv) courseProgress(t *testing.T, userID, courseID uint) *model.CourseProgress {
	t.Helper()
	var cp model.CourseProgress
	if err := e.db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&cp).Error; err != nil {
		t.Fatalf("load course progress: %v", err)
	}
	return &cp
}

func (e *testEnv) countCertificates(t *testing.T, userID, courseID uint) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(&model.Certificate{}).Where("user_id = ? AND course_id = ?", userID, courseID).Count(&n).Error; err != nil {
		t.Fatalf("count certificates: %v", err)
	}
	return n
}

// singleConnection 内存 SQLite 共享缓存下并发写会直接报表锁，测试并发时改为单连接排队
func (e *testEnv) singleConnection(t *testing.T) {
	t.Helper()
	sqlDB, err := e.db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
