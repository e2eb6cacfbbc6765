package repository

import (
	"context"
	"course_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) WithTx(tx *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: tx}
}

// EnsureVideoProgress 不存在则插入空记录，随后读取，唯一索引保证并发安全
func (r *ProgressRepository) EnsureVideoProgress(ctx context.Context, userID, videoID uint) (*model.VideoProgress, error) {
	row := &model.VideoProgress{UserID: userID, VideoID: videoID, LastWatched: time.Now()}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}
	return r.FindVideoProgress(ctx, userID, videoID)
}

func (r *ProgressRepository) FindVideoProgress(ctx context.Context, userID, videoID uint) (*model.VideoProgress, error) {
	var vp model.VideoProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&vp).Error
	return &vp, err
}

// UpdateWatchState 只更新观看数据，不触碰完成标记
func (r *ProgressRepository) UpdateWatchState(ctx context.Context, vp *model.VideoProgress) error {
	return r.DB.WithContext(ctx).Model(&model.VideoProgress{}).
		Where("id = ?", vp.ID).
		Updates(map[string]interface{}{
			"watched_duration":   vp.WatchedDuration,
			"watched_percentage": vp.WatchedPercentage,
			"last_watched":       vp.LastWatched,
		}).Error
}

// MarkVideoCompleted 条件更新 is_completed=false -> true，返回是否为首次完成
func (r *ProgressRepository) MarkVideoCompleted(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.VideoProgress{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListVideoProgress 以视频 ID 为键
func (r *ProgressRepository) ListVideoProgress(ctx context.Context, userID uint, videoIDs []uint) (map[uint]model.VideoProgress, error) {
	result := make(map[uint]model.VideoProgress)
	if userID == 0 || len(videoIDs) == 0 {
		return result, nil
	}

	var rows []model.VideoProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND video_id IN ?", userID, videoIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.VideoID] = row
	}
	return result, nil
}

func (r *ProgressRepository) CompletedVideoIDs(ctx context.Context, userID uint, videoIDs []uint) ([]uint, error) {
	var ids []uint
	if len(videoIDs) == 0 {
		return ids, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.VideoProgress{}).
		Where("user_id = ? AND is_completed = ? AND video_id IN ?", userID, true, videoIDs).
		Pluck("video_id", &ids).Error
	return ids, err
}

// EnsureCourseProgress 课程进度按需创建
func (r *ProgressRepository) EnsureCourseProgress(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error) {
	row := &model.CourseProgress{UserID: userID, CourseID: courseID}
	if err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}
	return r.FindCourseProgress(ctx, userID, courseID)
}

func (r *ProgressRepository) FindCourseProgress(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error) {
	var cp model.CourseProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cp).Error
	return &cp, err
}

// AddCompletedVideos 幂等写入已完成视频集合
func (r *ProgressRepository) AddCompletedVideos(ctx context.Context, courseProgressID uint, videoIDs []uint) error {
	if len(videoIDs) == 0 {
		return nil
	}
	rows := make([]model.CourseProgressVideo, 0, len(videoIDs))
	for _, id := range videoIDs {
		rows = append(rows, model.CourseProgressVideo{CourseProgressID: courseProgressID, VideoID: id})
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// CountCompletedVideos 只统计仍属于课程的视频
func (r *ProgressRepository) CountCompletedVideos(ctx context.Context, courseProgressID uint, videoIDs []uint) (int64, error) {
	var count int64
	if len(videoIDs) == 0 {
		return 0, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.CourseProgressVideo{}).
		Where("course_progress_id = ? AND video_id IN ?", courseProgressID, videoIDs).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) UpdatePercentage(ctx context.Context, id uint, percentage float64) error {
	return r.DB.WithContext(ctx).Model(&model.CourseProgress{}).
		Where("id = ?", id).
		Update("progress_percentage", percentage).Error
}

// SetQuizPassed 只会由 false 置为 true
func (r *ProgressRepository) SetQuizPassed(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&model.CourseProgress{}).
		Where("id = ? AND quiz_passed = ?", id, false).
		Update("quiz_passed", true).Error
}

func (r *ProgressRepository) MarkCourseCompleted(ctx context.Context, id uint, at time.Time) error {
	return r.DB.WithContext(ctx).Model(&model.CourseProgress{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
		}).Error
}

func (r *ProgressRepository) ListCourseProgressByUser(ctx context.Context, userID uint) ([]model.CourseProgress, error) {
	var rows []model.CourseProgress
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error
	return rows, err
}

func (r *ProgressRepository) ListCourseProgressByCourse(ctx context.Context, courseID uint) ([]model.CourseProgress, error) {
	var rows []model.CourseProgress
	err := r.DB.WithContext(ctx).Where("course_id = ?", courseID).Order("progress_percentage desc").Find(&rows).Error
	return rows, err
}
