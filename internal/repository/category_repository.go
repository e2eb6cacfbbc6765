package repository

import (
	"context"
	"course_lms_backend/internal/model"

	"gorm.io/gorm"
)

type CategoryRepository struct {
	DB *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{DB: db}
}

func (r *CategoryRepository) ListActive(ctx context.Context) ([]model.CourseCategory, error) {
	var categories []model.CourseCategory
	err := r.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_order asc, name asc").
		Find(&categories).Error
	return categories, err
}

func (r *CategoryRepository) FindActiveBySlug(ctx context.Context, slug string) (*model.CourseCategory, error) {
	var category model.CourseCategory
	err := r.DB.WithContext(ctx).
		Where("slug = ? AND is_active = ?", slug, true).
		First(&category).Error
	return &category, err
}

// CountActiveCourses 每个分类下上架课程数，一次分组查询
func (r *CategoryRepository) CountActiveCourses(ctx context.Context) (map[uint]int64, error) {
	var rows []struct {
		CategoryID uint
		N          int64
	}
	err := r.DB.WithContext(ctx).Model(&model.Course{}).
		Select("category_id, COUNT(*) AS n").
		Where("is_active = ? AND category_id IS NOT NULL", true).
		Group("category_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CategoryID] = row.N
	}
	return counts, nil
}
