package repository

import (
	"context"
	"course_lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func orderedDays(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc, day_number asc")
}

func orderedVideos(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc, id asc")
}

// ListActive 推荐课程优先；categoryID 为 0 时不按分类过滤
func (r *CourseRepository) ListActive(ctx context.Context, categoryID uint) ([]model.Course, error) {
	var courses []model.Course
	query := r.DB.WithContext(ctx).Preload("Category").Where("is_active = ?", true)
	if categoryID != 0 {
		query = query.Where("category_id = ?", categoryID)
	}
	err := query.Order("is_featured desc, created_at desc").Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Course{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

func (r *CourseRepository) FindByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindBySlug(ctx context.Context, slug string) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&course).Error
	return &course, err
}

// FindWithCurriculum 预加载有序的天数与视频
func (r *CourseRepository) FindWithCurriculum(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).
		Preload("Days", orderedDays).
		Preload("Days.Videos", orderedVideos).
		First(&course, id).Error
	return &course, err
}

// FindVideo 预加载所属天数，供访问控制使用
func (r *CourseRepository) FindVideo(ctx context.Context, id uint) (*model.Video, error) {
	var video model.Video
	err := r.DB.WithContext(ctx).Preload("CurriculumDay").First(&video, id).Error
	return &video, err
}

func (r *CourseRepository) courseVideos(ctx context.Context, courseID uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.Video{}).
		Joins("JOIN curriculum_days ON curriculum_days.id = videos.curriculum_day_id AND curriculum_days.deleted_at IS NULL").
		Where("curriculum_days.course_id = ?", courseID)
}

// ListVideoIDs 课程当前所有视频 ID
func (r *CourseRepository) ListVideoIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.courseVideos(ctx, courseID).Pluck("videos.id", &ids).Error
	return ids, err
}

type courseCount struct {
	CourseID uint
	N        int64
}

func countsByCourse(rows []courseCount) map[uint]int64 {
	counts := make(map[uint]int64, len(rows))
	for _, row := range rows {
		counts[row.CourseID] = row.N
	}
	return counts
}

// CountVideosByCourse 多门课程的视频数，一次分组查询
func (r *CourseRepository) CountVideosByCourse(ctx context.Context, courseIDs []uint) (map[uint]int64, error) {
	if len(courseIDs) == 0 {
		return map[uint]int64{}, nil
	}
	var rows []courseCount
	err := r.DB.WithContext(ctx).Model(&model.Video{}).
		Select("curriculum_days.course_id AS course_id, COUNT(videos.id) AS n").
		Joins("JOIN curriculum_days ON curriculum_days.id = videos.curriculum_day_id AND curriculum_days.deleted_at IS NULL").
		Where("curriculum_days.course_id IN ?", courseIDs).
		Group("curriculum_days.course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return countsByCourse(rows), nil
}

func (r *CourseRepository) UpdateVideoDuration(ctx context.Context, videoID uint, seconds int) error {
	res := r.DB.WithContext(ctx).Model(&model.Video{}).
		Where("id = ?", videoID).
		Update("duration_seconds", seconds)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FirstVideoID 按大纲顺序的第一个视频，课程没有视频时返回 0
func (r *CourseRepository) FirstVideoID(ctx context.Context, courseID uint) (uint, error) {
	var ids []uint
	err := r.courseVideos(ctx, courseID).
		Order("curriculum_days.sort_order asc, curriculum_days.day_number asc, videos.sort_order asc, videos.id asc").
		Limit(1).
		Pluck("videos.id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

func (r *CourseRepository) CountDaysByCourse(ctx context.Context, courseIDs []uint) (map[uint]int64, error) {
	if len(courseIDs) == 0 {
		return map[uint]int64{}, nil
	}
	var rows []courseCount
	err := r.DB.WithContext(ctx).Model(&model.CurriculumDay{}).
		Select("course_id, COUNT(*) AS n").
		Where("course_id IN ?", courseIDs).
		Group("course_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return countsByCourse(rows), nil
}
