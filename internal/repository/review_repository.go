package repository

import (
	"context"
	"course_lms_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewStats 课程评分汇总
type ReviewStats struct {
	Count   int64
	Average float64
}

type ReviewRepository struct {
	DB *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{DB: db}
}

// Upsert 同一用户对同一课程再次评价时覆盖评分与内容
func (r *ReviewRepository) Upsert(ctx context.Context, review *model.CourseReview) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at", "deleted_at"}),
	}).Create(review).Error
}

func (r *ReviewRepository) Find(ctx context.Context, userID, courseID uint) (*model.CourseReview, error) {
	var review model.CourseReview
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&review).Error
	return &review, err
}

// ListApproved 最新的评价在前
func (r *ReviewRepository) ListApproved(ctx context.Context, courseID uint, limit int) ([]model.CourseReview, error) {
	var reviews []model.CourseReview
	err := r.DB.WithContext(ctx).
		Preload("User").
		Where("course_id = ? AND is_approved = ?", courseID, true).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepository) Stats(ctx context.Context, courseID uint) (ReviewStats, error) {
	var stats ReviewStats
	err := r.DB.WithContext(ctx).Model(&model.CourseReview{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS average").
		Where("course_id = ? AND is_approved = ?", courseID, true).
		Scan(&stats).Error
	return stats, err
}
