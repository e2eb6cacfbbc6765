package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"
	"course_lms_backend/pkg/monitoring"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WatchResult 一次观看上报的处理结果
type WatchResult struct {
	Progress        *model.VideoProgress  `json:"progress"`
	CourseProgress  *model.CourseProgress `json:"courseProgress,omitempty"`
	FirstCompletion bool                  `json:"firstCompletion"`
	CourseCompleted bool                  `json:"courseCompleted"`
}

type ProgressService struct {
	DB           *gorm.DB
	ProgressRepo *repository.ProgressRepository
	CourseRepo   *repository.CourseRepository
	Access       *AccessService
	Completion   *CompletionService
	now          func() time.Time
}

func NewProgressService(
	db *gorm.DB,
	progressRepo *repository.ProgressRepository,
	courseRepo *repository.CourseRepository,
	access *AccessService,
	completion *CompletionService,
) *ProgressService {
	return &ProgressService{
		DB:           db,
		ProgressRepo: progressRepo,
		CourseRepo:   courseRepo,
		Access:       access,
		Completion:   completion,
		now:          time.Now,
	}
}

// RecordWatch 上报观看进度；watchedSeconds 为已观看秒数，percentage 仅在视频时长未知时使用
func (s *ProgressService) RecordWatch(ctx context.Context, id Identity, videoID uint, watchedSeconds int, percentage float64) (*WatchResult, error) {
	return s.applyWatch(ctx, id, videoID, func(v *model.Video) (int, float64) {
		return watchedSeconds, percentage
	})
}

// MarkComplete 等同于看完整个视频
func (s *ProgressService) MarkComplete(ctx context.Context, id Identity, videoID uint) (*WatchResult, error) {
	return s.applyWatch(ctx, id, videoID, func(v *model.Video) (int, float64) {
		return v.DurationSeconds, 100
	})
}

// watchPercentage 有时长时由秒数计算，否则使用上报的百分比，结果限制在 [0,100]
func watchPercentage(durationSeconds, watchedSeconds int, reported float64) float64 {
	if durationSeconds > 0 {
		return math.Min(100, math.Max(0, float64(watchedSeconds)*100/float64(durationSeconds)))
	}
	return util.Clamp(reported, 0, 100)
}

func (s *ProgressService) applyWatch(ctx context.Context, id Identity, videoID uint, input func(*model.Video) (int, float64)) (*WatchResult, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}

	video, ok, err := s.Access.CanAccessVideo(ctx, id, videoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, util.ErrNotEnrolled
	}

	watched, reported := input(video)
	if watched < 0 {
		watched = 0
	}
	percentage := watchPercentage(video.DurationSeconds, watched, reported)
	now := s.now()

	result := &WatchResult{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ProgressRepo.WithTx(tx)

		vp, err := repo.EnsureVideoProgress(ctx, id.UserID, video.ID)
		if err != nil {
			return wrap(err, "load video progress")
		}

		// 观看进度只增不减
		if watched > vp.WatchedDuration {
			vp.WatchedDuration = watched
		}
		if percentage > vp.WatchedPercentage {
			vp.WatchedPercentage = percentage
		}
		vp.LastWatched = now
		if err := repo.UpdateWatchState(ctx, vp); err != nil {
			return wrap(err, "save video progress")
		}
		result.Progress = vp

		if vp.WatchedPercentage < model.VideoCompletionThreshold {
			return nil
		}

		first, err := repo.MarkVideoCompleted(ctx, vp.ID, now)
		if err != nil {
			return wrap(err, "complete video")
		}
		if !vp.IsCompleted {
			vp.IsCompleted = true
			vp.CompletedAt = &now
		}
		if !first {
			return nil
		}
		result.FirstCompletion = true

		cp, err := repo.EnsureCourseProgress(ctx, id.UserID, video.CourseID())
		if err != nil {
			return wrap(err, "load course progress")
		}
		if err := s.Completion.UpdateProgress(ctx, tx, cp); err != nil {
			return err
		}
		result.CourseProgress = cp
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.FirstCompletion {
		monitoring.VideoCompletions.Inc()
		result.CourseCompleted = s.checkCompletion(ctx, result.CourseProgress)
	}
	return result, nil
}

// checkCompletion 在事务提交后执行，失败留待下次事件重试
func (s *ProgressService) checkCompletion(ctx context.Context, cp *model.CourseProgress) bool {
	done, err := s.Completion.CheckCompletion(ctx, cp)
	if err != nil {
		logger.Log.Warn("course completion check failed",
			zap.Uint("userID", cp.UserID),
			zap.Uint("courseID", cp.CourseID),
			zap.Error(err))
		return false
	}
	return done
}

// GetVideoProgress 没有记录时返回零值进度
func (s *ProgressService) GetVideoProgress(ctx context.Context, id Identity, videoID uint) (*model.VideoProgress, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	vp, err := s.ProgressRepo.FindVideoProgress(ctx, id.UserID, videoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.VideoProgress{UserID: id.UserID, VideoID: videoID}, nil
	}
	if err != nil {
		return nil, wrap(err, "load video progress")
	}
	return vp, nil
}

// GetCourseProgress 没有记录时返回零值进度
func (s *ProgressService) GetCourseProgress(ctx context.Context, id Identity, courseID uint) (*model.CourseProgress, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	cp, err := s.ProgressRepo.FindCourseProgress(ctx, id.UserID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CourseProgress{UserID: id.UserID, CourseID: courseID}, nil
	}
	if err != nil {
		return nil, wrap(err, "load course progress")
	}
	return cp, nil
}

// RecomputeCourseProgress 由视频进度重建课程进度并补做完成检查，可重复执行
func (s *ProgressService) RecomputeCourseProgress(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error) {
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, notFound(err, "load course")
	}

	var cp *model.CourseProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cp, err = s.ProgressRepo.WithTx(tx).EnsureCourseProgress(ctx, userID, courseID)
		if err != nil {
			return wrap(err, "load course progress")
		}
		return s.Completion.UpdateProgress(ctx, tx, cp)
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.Completion.CheckCompletion(ctx, cp); err != nil {
		return nil, err
	}
	return cp, nil
}
