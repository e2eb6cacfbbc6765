package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/testutil"
	"course_lms_backend/internal/util"
	"testing"
)

func TestSubmitReviewRequiresEntitlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := twoDayCourse(t, env.db, "reviewed")
	user := testutil.CreateUser(t, env.db, "reviewer@example.com")
	id := Identity{UserID: user.ID}

	_, err := env.reviews.Submit(ctx, Anonymous, course.ID, 5, "great")
	expectErr(t, err, util.ErrAuthenticationRequired)
	_, err = env.reviews.Submit(ctx, id, course.ID, 5, "great")
	expectErr(t, err, util.ErrNotEnrolled)

	testutil.GrantEntitlement(t, env.db, user.ID, course.ID)
	for _, rating := range []int{0, 6} {
		_, err = env.reviews.Submit(ctx, id, course.ID, rating, "out of range")
		expectErr(t, err, util.ErrInvalidRating)
	}
	_, err = env.reviews.Submit(ctx, id, 9999, 4, "missing course")
	expectErr(t, err, util.ErrNotFound)

	first, err := env.reviews.Submit(ctx, id, course.ID, 3, "  decent  ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Rating != 3 || first.Comment != "decent" || first.UserName != user.Name {
		t.Fatalf("unexpected review %+v", first)
	}

	second, err := env.reviews.Submit(ctx, id, course.ID, 5, "better on rewatch")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID || second.Rating != 5 {
		t.Fatalf("resubmit must update the same review, got %+v then %+v", first, second)
	}

	var rows int64
	env.db.Model(&model.CourseReview{}).Where("user_id = ? AND course_id = ?", user.ID, course.ID).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected one review per user and course, got %d", rows)
	}
}

func TestListReviewsAveragesApproved(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := twoDayCourse(t, env.db, "rated")

	for i, rating := range []int{5, 4, 4} {
		u := testutil.CreateUser(t, env.db, []string{"a@example.com", "b@example.com", "c@example.com"}[i])
		testutil.GrantEntitlement(t, env.db, u.ID, course.ID)
		if _, err := env.reviews.Submit(ctx, Identity{UserID: u.ID}, course.ID, rating, "ok"); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	hiddenUser := testutil.CreateUser(t, env.db, "spam@example.com")
	hidden := &model.CourseReview{UserID: hiddenUser.ID, CourseID: course.ID, Rating: 1, Comment: "spam"}
	if err := env.db.Create(hidden).Error; err != nil {
		t.Fatalf("create review: %v", err)
	}
	env.db.Model(hidden).Update("is_approved", false)

	reviews, err := env.reviews.List(ctx, course.ID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if reviews.Count != 3 || reviews.AverageRating != 4.3 || len(reviews.Reviews) != 2 {
		t.Fatalf("unexpected reviews %+v", reviews)
	}

	empty, err := env.reviews.List(ctx, 9999, 0)
	if err != nil || empty.Count != 0 || empty.AverageRating != 0 || len(empty.Reviews) != 0 {
		t.Fatalf("unexpected empty listing %+v %v", empty, err)
	}
}
