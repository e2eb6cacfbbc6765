package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/testutil"
	"course_lms_backend/internal/util"
	"errors"
	"sync"
	"testing"
)

func fourOptionQuestion() testutil.QuestionSpec {
	return testutil.QuestionSpec{
		Text: "Pick A and C",
		Answers: []testutil.AnswerSpec{
			{Text: "A", Correct: true},
			{Text: "B"},
			{Text: "C", Correct: true},
			{Text: "D"},
		},
	}
}

func TestScoreQuizExactSetMatch(t *testing.T) {
	env := newTestEnv(t)
	course := testutil.CreateCourse(t, env.db, "scoring", 0)
	quiz := testutil.CreateQuiz(t, env.db, course.ID, 70, 0, fourOptionQuestion())
	q := &quiz.Questions[0]

	cases := []struct {
		name    string
		choose  []string
		correct bool
	}{
		{"exact", []string{"A", "C"}, true},
		{"exact reordered", []string{"C", "A"}, true},
		{"subset", []string{"A"}, false},
		{"superset", []string{"A", "B", "C"}, false},
		{"none", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, correct, results := scoreQuiz(quiz, map[uint][]uint{q.ID: testutil.AnswerIDs(q, tc.choose...)})
			if results[0].IsCorrect != tc.correct {
				t.Fatalf("expected correct=%v", tc.correct)
			}
			if tc.correct && (score != 100 || correct != 1) {
				t.Fatalf("expected full score, got %v/%d", score, correct)
			}
			if !tc.correct && score != 0 {
				t.Fatalf("expected zero score, got %v", score)
			}
		})
	}

	// 重复选择同一答案按集合处理
	dup := testutil.AnswerIDs(q, "A", "C", "A")
	if _, correct, _ := scoreQuiz(quiz, map[uint][]uint{q.ID: dup}); correct != 1 {
		t.Fatal("duplicate selections should be collapsed")
	}
}

func TestScoreQuizWithoutQuestionsIsZero(t *testing.T) {
	score, correct, results := scoreQuiz(&model.Quiz{PassingScore: 70}, nil)
	if score != 0 || correct != 0 || len(results) != 0 {
		t.Fatalf("got %v %d %d", score, correct, len(results))
	}
}

// quizFixture 已购买并看完视频的学员与测验
type quizFixture struct {
	env    *testEnv
	course *model.Course
	quiz   *model.Quiz
	user   *model.User
	id     Identity
}

func newQuizFixture(t *testing.T, maxAttempts int) *quizFixture {
	t.Helper()
	env := newTestEnv(t)
	course := twoDayCourse(t, env.db, "quiz-course")
	quiz := testutil.CreateQuiz(t, env.db, course.ID, 70, maxAttempts,
		testutil.QuestionSpec{Text: "Q1", Answers: []testutil.AnswerSpec{{Text: "yes", Correct: true}, {Text: "no"}}},
		testutil.QuestionSpec{Text: "Q2", Answers: []testutil.AnswerSpec{{Text: "left"}, {Text: "right", Correct: true}}},
	)
	user := testutil.CreateUser(t, env.db, "quiz@example.com")
	testutil.GrantEntitlement(t, env.db, user.ID, course.ID)
	return &quizFixture{env: env, course: course, quiz: quiz, user: user, id: Identity{UserID: user.ID}}
}

func (f *quizFixture) answers(right bool) map[uint][]uint {
	q1, q2 := &f.quiz.Questions[0], &f.quiz.Questions[1]
	if right {
		return map[uint][]uint{q1.ID: testutil.AnswerIDs(q1, "yes"), q2.ID: testutil.AnswerIDs(q2, "right")}
	}
	return map[uint][]uint{q1.ID: testutil.AnswerIDs(q1, "no")}
}

func TestStartAttemptGuards(t *testing.T) {
	f := newQuizFixture(t, 0)
	ctx := context.Background()

	_, err := f.env.quiz.StartAttempt(ctx, Anonymous, f.quiz.ID)
	expectErr(t, err, util.ErrAuthenticationRequired)

	_, err = f.env.quiz.StartAttempt(ctx, f.id, 9999)
	expectErr(t, err, util.ErrNotFound)

	stranger := testutil.CreateUser(t, f.env.db, "stranger@example.com")
	_, err = f.env.quiz.StartAttempt(ctx, Identity{UserID: stranger.ID}, f.quiz.ID)
	expectErr(t, err, util.ErrNotEnrolled)

	_, err = f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	expectErr(t, err, util.ErrVideosIncomplete)

	completeAllVideos(t, f.env, f.id, f.course)

	first, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	if err != nil {
		t.Fatalf("start attempt: %v", err)
	}
	again, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	if err != nil || again.ID != first.ID {
		t.Fatalf("expected open attempt %d to be reused, got %v %v", first.ID, again, err)
	}

	if _, err := f.env.quiz.SubmitAttempt(ctx, f.id, first.ID, f.answers(true)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	expectErr(t, err, util.ErrQuizAlreadyPassed)
}

func TestStartAttemptCap(t *testing.T) {
	f := newQuizFixture(t, 2)
	ctx := context.Background()
	completeAllVideos(t, f.env, f.id, f.course)

	for i := 0; i < 2; i++ {
		attempt, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
		if err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
		res, err := f.env.quiz.SubmitAttempt(ctx, f.id, attempt.ID, f.answers(false))
		if err != nil || res.Passed {
			t.Fatalf("submit %d: %+v %v", i, res, err)
		}
	}

	_, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	expectErr(t, err, util.ErrMaxAttemptsReached)

	view, err := f.env.quiz.GetQuiz(ctx, f.id, f.course.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if view.AttemptsUsed != 2 || view.AttemptsRemaining != 0 || view.Passed {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestSubmitAttemptIsOneShot(t *testing.T) {
	f := newQuizFixture(t, 0)
	ctx := context.Background()
	completeAllVideos(t, f.env, f.id, f.course)

	attempt, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	other := testutil.CreateUser(t, f.env.db, "other@example.com")
	_, err = f.env.quiz.SubmitAttempt(ctx, Identity{UserID: other.ID}, attempt.ID, f.answers(true))
	expectErr(t, err, util.ErrNotFound)

	res, err := f.env.quiz.SubmitAttempt(ctx, f.id, attempt.ID, f.answers(false))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 0 || res.Passed || res.TotalQuestions != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = f.env.quiz.SubmitAttempt(ctx, f.id, attempt.ID, f.answers(true))
	expectErr(t, err, util.ErrAlreadySubmitted)

	var stored model.QuizAttempt
	f.env.db.First(&stored, attempt.ID)
	if stored.Passed || stored.Score != 0 {
		t.Fatalf("second submit must not change the outcome, got %+v", stored)
	}

	var responses int64
	f.env.db.Model(&model.QuizResponse{}).Where("attempt_id = ?", attempt.ID).Count(&responses)
	if responses != 2 {
		t.Fatalf("expected 2 responses, got %d", responses)
	}

	// 并发提交的失败方：CAS 不命中时不写入任何数据
	won, err := f.env.quiz.QuizRepo.CompleteAttempt(ctx, attempt.ID, 100, true, stored.StartedAt)
	if err != nil || won {
		t.Fatalf("expected compare-and-set to lose, got %v %v", won, err)
	}

	result, err := f.env.quiz.GetAttempt(ctx, f.id, attempt.ID)
	if err != nil {
		t.Fatalf("get attempt: %v", err)
	}
	if len(result.Questions) != 2 || result.Questions[0].IsCorrect || result.CorrectCount != 0 {
		t.Fatalf("unexpected attempt detail %+v", result)
	}
}

func TestConcurrentSubmitsScoreOnce(t *testing.T) {
	f := newQuizFixture(t, 0)
	ctx := context.Background()
	completeAllVideos(t, f.env, f.id, f.course)

	attempt, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.env.singleConnection(t)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []*AttemptResult
		rejected int
		failures []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(right bool) {
			defer wg.Done()
			res, err := f.env.quiz.SubmitAttempt(ctx, f.id, attempt.ID, f.answers(right))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, res)
			case errors.Is(err, util.ErrAlreadySubmitted):
				rejected++
			default:
				failures = append(failures, err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	if len(failures) != 0 {
		t.Fatalf("unexpected errors: %v", failures)
	}
	if len(winners) != 1 || rejected != workers-1 {
		t.Fatalf("expected 1 winner and %d rejections, got %d and %d", workers-1, len(winners), rejected)
	}

	var stored model.QuizAttempt
	f.env.db.First(&stored, attempt.ID)
	if stored.CompletedAt == nil || stored.Score != winners[0].Score || stored.Passed != winners[0].Passed {
		t.Fatalf("stored outcome %+v does not match winner %+v", stored, winners[0])
	}
	var responses int64
	f.env.db.Model(&model.QuizResponse{}).Where("attempt_id = ?", attempt.ID).Count(&responses)
	if responses != 2 {
		t.Fatalf("expected responses from one submission only, got %d", responses)
	}
	if n := f.env.countCertificates(t, f.user.ID, f.course.ID); n > 1 {
		t.Fatalf("expected at most 1 certificate, got %d", n)
	}
}

func TestSubmitPassingAttemptSetsQuizPassed(t *testing.T) {
	f := newQuizFixture(t, 0)
	ctx := context.Background()
	completeAllVideos(t, f.env, f.id, f.course)

	attempt, err := f.env.quiz.StartAttempt(ctx, f.id, f.quiz.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	res, err := f.env.quiz.SubmitAttempt(ctx, f.id, attempt.ID, f.answers(true))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Score != 100 || !res.Passed || res.CorrectCount != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	cp := f.env.courseProgress(t, f.user.ID, f.course.ID)
	if !cp.QuizPassed {
		t.Fatal("quiz_passed should be set")
	}

	attempts, err := f.env.quiz.ListAttempts(ctx, f.id, f.quiz.ID)
	if err != nil || len(attempts) != 1 {
		t.Fatalf("list attempts: %v %v", attempts, err)
	}
}
