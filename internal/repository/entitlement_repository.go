package repository

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/pkg/logger"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entitlementCacheTTL = 5 * time.Minute

// EntitlementCache 只保存正向的授权判断
type EntitlementCache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisEntitlementCache struct {
	rdb *redis.Client
}

func (c redisEntitlementCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

func (c redisEntitlementCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, "1", ttl).Err()
}

func (c redisEntitlementCache) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// EntitlementRepository 读写购买/报名记录；Cache 为 nil 时不使用缓存。
// 写操作不清理缓存，调用方在事务提交后调用 Invalidate
type EntitlementRepository struct {
	DB    *gorm.DB
	Cache EntitlementCache
	now   func() time.Time
}

func NewEntitlementRepository(db *gorm.DB, rdb *redis.Client) *EntitlementRepository {
	var cache EntitlementCache
	if rdb != nil {
		cache = redisEntitlementCache{rdb: rdb}
	}
	return NewEntitlementRepositoryWithCache(db, cache)
}

func NewEntitlementRepositoryWithCache(db *gorm.DB, cache EntitlementCache) *EntitlementRepository {
	return &EntitlementRepository{DB: db, Cache: cache, now: time.Now}
}

func (r *EntitlementRepository) WithTx(tx *gorm.DB) *EntitlementRepository {
	return &EntitlementRepository{DB: tx, Cache: r.Cache, now: r.now}
}

func entitlementCacheKey(userID, courseID uint) string {
	return fmt.Sprintf("lms:entitlement:%d:%d", userID, courseID)
}

func (r *EntitlementRepository) Find(ctx context.Context, userID, courseID uint) (*model.Entitlement, error) {
	var e model.Entitlement
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	return &e, err
}

// HasActive 是否存在已完成且未过期的记录，只缓存正向结果
func (r *EntitlementRepository) HasActive(ctx context.Context, userID, courseID uint) (bool, error) {
	if userID == 0 || courseID == 0 {
		return false, nil
	}

	key := entitlementCacheKey(userID, courseID)
	if r.Cache != nil {
		if hit, err := r.Cache.Exists(ctx, key); err == nil && hit {
			return true, nil
		} else if err != nil {
			logger.Log.Warn("entitlement cache read failed", zap.Error(err))
		}
	}

	e, err := r.Find(ctx, userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	now := r.now()
	if !e.Active(now) {
		return false, nil
	}

	if r.Cache != nil {
		ttl := entitlementCacheTTL
		if e.ExpiresAt != nil && e.ExpiresAt.Sub(now) < ttl {
			ttl = e.ExpiresAt.Sub(now)
		}
		if err := r.Cache.Set(ctx, key, ttl); err != nil {
			logger.Log.Warn("entitlement cache write failed", zap.Error(err))
		}
	}
	return true, nil
}

// Upsert 以 (user, course) 为键写入，已有记录时覆盖状态相关字段
func (r *EntitlementRepository) Upsert(ctx context.Context, e *model.Entitlement) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"source", "status", "amount_paid", "transaction_id", "granted_at", "expires_at", "updated_at", "deleted_at",
		}),
	}).Create(e).Error
}

func (r *EntitlementRepository) UpdateStatus(ctx context.Context, userID, courseID uint, status model.EntitlementStatus) error {
	return r.DB.WithContext(ctx).Model(&model.Entitlement{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Update("status", status).Error
}

func (r *EntitlementRepository) Invalidate(ctx context.Context, userID, courseID uint) {
	if r.Cache == nil {
		return
	}
	if err := r.Cache.Del(ctx, entitlementCacheKey(userID, courseID)); err != nil {
		logger.Log.Warn("entitlement cache invalidate failed", zap.Error(err))
	}
}

// ListActiveByUser 按授予时间倒序，包含课程信息
func (r *EntitlementRepository) ListActiveByUser(ctx context.Context, userID uint) ([]model.Entitlement, error) {
	var rows []model.Entitlement
	err := r.DB.WithContext(ctx).
		Preload("Course").
		Where("user_id = ? AND status = ?", userID, model.EntitlementCompleted).
		Where("expires_at IS NULL OR expires_at > ?", r.now()).
		Order("granted_at desc, id desc").
		Find(&rows).Error
	return rows, err
}
