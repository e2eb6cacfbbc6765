package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"strings"
	"time"
)

const defaultReviewLimit = 20

// ReviewView 对外展示的评价，只暴露用户名
type ReviewView struct {
	ID        uint      `json:"id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	UserName  string    `json:"userName"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CourseReviews 课程评分汇总与最新评价
type CourseReviews struct {
	Count         int64        `json:"count"`
	AverageRating float64      `json:"averageRating"`
	Reviews       []ReviewView `json:"reviews"`
}

type ReviewService struct {
	ReviewRepo   *repository.ReviewRepository
	CourseRepo   *repository.CourseRepository
	Entitlements EntitlementChecker
}

func NewReviewService(
	reviewRepo *repository.ReviewRepository,
	courseRepo *repository.CourseRepository,
	entitlements EntitlementChecker,
) *ReviewService {
	return &ReviewService{
		ReviewRepo:   reviewRepo,
		CourseRepo:   courseRepo,
		Entitlements: entitlements,
	}
}

func toReviewView(r *model.CourseReview) ReviewView {
	view := ReviewView{
		ID:        r.ID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.User != nil {
		view.UserName = r.User.Name
	}
	return view
}

// Submit 仅拥有有效授权的学员可评价；再次提交覆盖自己的评价
func (s *ReviewService) Submit(ctx context.Context, id Identity, courseID uint, rating int, comment string) (*ReviewView, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	if rating < model.MinReviewRating || rating > model.MaxReviewRating {
		return nil, util.ErrInvalidRating
	}
	if _, err := s.CourseRepo.FindByID(ctx, courseID); err != nil {
		return nil, notFound(err, "load course")
	}
	ok, err := s.Entitlements.HasActive(ctx, id.UserID, courseID)
	if err != nil {
		return nil, wrap(err, "check entitlement")
	}
	if !ok {
		return nil, util.ErrNotEnrolled
	}

	review := &model.CourseReview{
		UserID:     id.UserID,
		CourseID:   courseID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		IsApproved: true,
	}
	if err := s.ReviewRepo.Upsert(ctx, review); err != nil {
		return nil, wrap(err, "save review")
	}
	stored, err := s.ReviewRepo.Find(ctx, id.UserID, courseID)
	if err != nil {
		return nil, wrap(err, "load review")
	}
	view := toReviewView(stored)
	return &view, nil
}

func (s *ReviewService) List(ctx context.Context, courseID uint, limit int) (*CourseReviews, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultReviewLimit
	}
	stats, err := s.ReviewRepo.Stats(ctx, courseID)
	if err != nil {
		return nil, wrap(err, "load review stats")
	}
	rows, err := s.ReviewRepo.ListApproved(ctx, courseID, limit)
	if err != nil {
		return nil, wrap(err, "list reviews")
	}
	result := &CourseReviews{
		Count:         stats.Count,
		AverageRating: util.RoundTo(stats.Average, 1),
		Reviews:       make([]ReviewView, 0, len(rows)),
	}
	for i := range rows {
		result.Reviews = append(result.Reviews, toReviewView(&rows[i]))
	}
	return result, nil
}
