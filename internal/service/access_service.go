package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
)

// EntitlementChecker 查询用户是否拥有课程的有效授权
type EntitlementChecker interface {
	HasActive(ctx context.Context, userID, courseID uint) (bool, error)
}

type AccessService struct {
	CourseRepo   *repository.CourseRepository
	Entitlements EntitlementChecker
}

func NewAccessService(courseRepo *repository.CourseRepository, entitlements EntitlementChecker) *AccessService {
	return &AccessService{CourseRepo: courseRepo, Entitlements: entitlements}
}

// accessDecision 规则判定结果；needsEntitlement 表示需要查询授权
type accessDecision struct {
	allowed          bool
	needsEntitlement bool
}

// evaluateAccess 按顺序匹配：免费视频/免费天数 -> 第一天 -> 匿名拒绝 -> 授权
func evaluateAccess(video *model.Video, id Identity) accessDecision {
	day := video.CurriculumDay
	if video.IsFree || (day != nil && day.IsFree) {
		return accessDecision{allowed: true}
	}
	if day != nil && day.DayNumber == 1 {
		return accessDecision{allowed: true}
	}
	if id.IsAnonymous() {
		return accessDecision{allowed: false}
	}
	return accessDecision{needsEntitlement: true}
}

// CanAccess video 需预加载 CurriculumDay
func (s *AccessService) CanAccess(ctx context.Context, id Identity, video *model.Video) (bool, error) {
	d := evaluateAccess(video, id)
	if !d.needsEntitlement {
		return d.allowed, nil
	}
	ok, err := s.Entitlements.HasActive(ctx, id.UserID, video.CourseID())
	if err != nil {
		return false, wrap(err, "check entitlement")
	}
	return ok, nil
}

// CanAccessVideo 按 ID 加载视频后判定；所属天数已删除的视频视为不存在
func (s *AccessService) CanAccessVideo(ctx context.Context, id Identity, videoID uint) (*model.Video, bool, error) {
	video, err := s.CourseRepo.FindVideo(ctx, videoID)
	if err != nil {
		return nil, false, notFound(err, "load video")
	}
	if video.CurriculumDay == nil {
		return nil, false, util.ErrNotFound
	}
	ok, err := s.CanAccess(ctx, id, video)
	if err != nil {
		return nil, false, err
	}
	return video, ok, nil
}
