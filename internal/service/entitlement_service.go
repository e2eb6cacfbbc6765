package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"errors"
	"time"

	"gorm.io/gorm"
)

// MyCourse 已购/已报名课程及学习进度
type MyCourse struct {
	Course             *model.Course `json:"course"`
	Source             string        `json:"source"`
	GrantedAt          *time.Time    `json:"grantedAt,omitempty"`
	ExpiresAt          *time.Time    `json:"expiresAt,omitempty"`
	ProgressPercentage float64       `json:"progressPercentage"`
	IsCompleted        bool          `json:"isCompleted"`
	FirstVideoID       uint          `json:"firstVideoId,omitempty"`
}

type EntitlementService struct {
	EntitlementRepo *repository.EntitlementRepository
	CourseRepo      *repository.CourseRepository
	ProgressRepo    *repository.ProgressRepository
	now             func() time.Time
}

func NewEntitlementService(
	entitlementRepo *repository.EntitlementRepository,
	courseRepo *repository.CourseRepository,
	progressRepo *repository.ProgressRepository,
) *EntitlementService {
	return &EntitlementService{
		EntitlementRepo: entitlementRepo,
		CourseRepo:      courseRepo,
		ProgressRepo:    progressRepo,
		now:             time.Now,
	}
}

func (s *EntitlementService) HasAccess(ctx context.Context, userID, courseID uint) (bool, error) {
	ok, err := s.EntitlementRepo.HasActive(ctx, userID, courseID)
	if err != nil {
		return false, wrap(err, "check entitlement")
	}
	return ok, nil
}

// Enroll 免费课程直接报名，重复报名返回已有记录
func (s *EntitlementService) Enroll(ctx context.Context, id Identity, courseID uint) (*model.Entitlement, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "load course")
	}
	if !course.IsActive {
		return nil, util.ErrNotFound
	}
	if !course.IsFree() {
		return nil, util.ErrPaidCourse
	}

	existing, err := s.EntitlementRepo.Find(ctx, id.UserID, courseID)
	if err == nil && existing.Active(s.now()) {
		return existing, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap(err, "load entitlement")
	}

	now := s.now()
	e := &model.Entitlement{
		UserID:    id.UserID,
		CourseID:  courseID,
		Source:    model.EntitlementEnrollment,
		Status:    model.EntitlementCompleted,
		GrantedAt: &now,
	}
	if err := s.EntitlementRepo.Upsert(ctx, e); err != nil {
		return nil, wrap(err, "save enrollment")
	}
	s.EntitlementRepo.Invalidate(ctx, id.UserID, courseID)
	return s.EntitlementRepo.Find(ctx, id.UserID, courseID)
}

// MyCourses 有效授权的课程，附带进度与第一个视频
func (s *EntitlementService) MyCourses(ctx context.Context, id Identity) ([]MyCourse, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	rows, err := s.EntitlementRepo.ListActiveByUser(ctx, id.UserID)
	if err != nil {
		return nil, wrap(err, "list entitlements")
	}
	progress, err := s.ProgressRepo.ListCourseProgressByUser(ctx, id.UserID)
	if err != nil {
		return nil, wrap(err, "list course progress")
	}
	byCourse := make(map[uint]model.CourseProgress, len(progress))
	for _, cp := range progress {
		byCourse[cp.CourseID] = cp
	}

	result := make([]MyCourse, 0, len(rows))
	for _, e := range rows {
		if e.Course == nil {
			continue
		}
		item := MyCourse{
			Course:    e.Course,
			Source:    string(e.Source),
			GrantedAt: e.GrantedAt,
			ExpiresAt: e.ExpiresAt,
		}
		if cp, ok := byCourse[e.CourseID]; ok {
			item.ProgressPercentage = cp.ProgressPercentage
			item.IsCompleted = cp.IsCompleted
		}
		first, err := s.CourseRepo.FirstVideoID(ctx, e.CourseID)
		if err != nil {
			return nil, wrap(err, "load first video")
		}
		item.FirstVideoID = first
		result = append(result, item)
	}
	return result, nil
}
