package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/testutil"
	"testing"
)

func TestScenarioPurchaseWatchCertificate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := twoDayCourse(t, env.db, "scenario-no-quiz")
	day1 := testutil.Video(t, env.db, course, 0, 0)
	day2 := testutil.Video(t, env.db, course, 1, 0)

	if ok, _ := env.access.CanAccess(ctx, Anonymous, day1); !ok {
		t.Fatal("anonymous should access day 1")
	}
	if ok, _ := env.access.CanAccess(ctx, Anonymous, day2); ok {
		t.Fatal("anonymous should not access day 2")
	}

	user := testutil.CreateUser(t, env.db, "buyer@example.com")
	id := Identity{UserID: user.ID}
	testutil.GrantEntitlement(t, env.db, user.ID, course.ID)
	if ok, err := env.access.CanAccess(ctx, id, day2); err != nil || !ok {
		t.Fatalf("buyer should access day 2: %v %v", ok, err)
	}

	if _, err := env.progress.RecordWatch(ctx, id, day1.ID, day1.DurationSeconds, 0); err != nil {
		t.Fatalf("watch day 1: %v", err)
	}
	res, err := env.progress.RecordWatch(ctx, id, day2.ID, day2.DurationSeconds, 0)
	if err != nil {
		t.Fatalf("watch day 2: %v", err)
	}
	if res.CourseProgress.ProgressPercentage != 100 || !res.CourseCompleted {
		t.Fatalf("expected completed course, got %+v", res)
	}

	if n := env.countCertificates(t, user.ID, course.ID); n != 1 {
		t.Fatalf("expected 1 certificate, got %d", n)
	}
	certs, err := env.certificates.ListMine(ctx, id)
	if err != nil || len(certs) != 1 {
		t.Fatalf("list certificates: %v %v", certs, err)
	}
	found, err := env.certificates.Verify(ctx, certs[0].Code)
	if err != nil || found.UserID != user.ID {
		t.Fatalf("verify: %+v %v", found, err)
	}
}

func TestScenarioQuizPassIssuesCertificate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	course := testutil.CreateCourse(t, env.db, "scenario-quiz", 0,
		testutil.DaySpec{DayNumber: 1, Videos: []testutil.VideoSpec{{Duration: 120}}},
	)
	quiz := testutil.CreateQuiz(t, env.db, course.ID, 70, 0,
		testutil.QuestionSpec{Text: "2+2", Answers: []testutil.AnswerSpec{{Text: "4", Correct: true}, {Text: "5"}}},
		testutil.QuestionSpec{Text: "Capital of France", Answers: []testutil.AnswerSpec{{Text: "Paris", Correct: true}, {Text: "Rome"}}},
	)
	user := testutil.CreateUser(t, env.db, "student@example.com")
	id := Identity{UserID: user.ID}

	if _, err := env.entitlements.Enroll(ctx, id, course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
	completeAllVideos(t, env, id, course)
	if n := env.countCertificates(t, user.ID, course.ID); n != 0 {
		t.Fatalf("certificate must wait for the quiz, got %d", n)
	}

	attempt, err := env.quiz.StartAttempt(ctx, id, quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	q1, q2 := &quiz.Questions[0], &quiz.Questions[1]
	res, err := env.quiz.SubmitAttempt(ctx, id, attempt.ID, map[uint][]uint{
		q1.ID: testutil.AnswerIDs(q1, "4"),
		q2.ID: testutil.AnswerIDs(q2, "Paris"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 100 || !res.Passed || !res.CourseCompleted {
		t.Fatalf("unexpected result %+v", res)
	}

	cp := env.courseProgress(t, user.ID, course.ID)
	if !cp.QuizPassed || !cp.IsCompleted {
		t.Fatalf("unexpected course progress %+v", cp)
	}

	var cert model.Certificate
	if err := env.db.Where("user_id = ? AND course_id = ?", user.ID, course.ID).First(&cert).Error; err != nil {
		t.Fatalf("certificate not issued: %v", err)
	}
	if cert.QuizScore == nil || *cert.QuizScore != 100 {
		t.Fatalf("expected quiz score 100 on certificate, got %v", cert.QuizScore)
	}
}
