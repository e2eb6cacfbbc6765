package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"
	"course_lms_backend/pkg/monitoring"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizView 测验及当前用户的作答情况，选项不包含正确性
type QuizView struct {
	Quiz              *model.Quiz `json:"quiz"`
	AttemptsUsed      int64       `json:"attemptsUsed"`
	AttemptsRemaining int64       `json:"attemptsRemaining"` // -1 表示不限
	Passed            bool        `json:"passed"`
	VideosCompleted   bool        `json:"videosCompleted"`
}

// QuestionResult 单题判分结果
type QuestionResult struct {
	QuestionID        uint   `json:"questionId"`
	SelectedAnswerIDs []uint `json:"selectedAnswerIds"`
	IsCorrect         bool   `json:"isCorrect"`
	Explanation       string `json:"explanation,omitempty"`
}

// AttemptResult 提交或查询结果
type AttemptResult struct {
	Attempt         *model.QuizAttempt `json:"attempt"`
	Score           float64            `json:"score"`
	Passed          bool               `json:"passed"`
	CorrectCount    int                `json:"correctCount"`
	TotalQuestions  int                `json:"totalQuestions"`
	PassingScore    float64            `json:"passingScore"`
	Questions       []QuestionResult   `json:"questions"`
	CourseCompleted bool               `json:"courseCompleted"`
}

type QuizService struct {
	DB           *gorm.DB
	QuizRepo     *repository.QuizRepository
	ProgressRepo *repository.ProgressRepository
	Entitlements EntitlementChecker
	Completion   *CompletionService
	now          func() time.Time
}

func NewQuizService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	progressRepo *repository.ProgressRepository,
	entitlements EntitlementChecker,
	completion *CompletionService,
) *QuizService {
	return &QuizService{
		DB:           db,
		QuizRepo:     quizRepo,
		ProgressRepo: progressRepo,
		Entitlements: entitlements,
		Completion:   completion,
		now:          time.Now,
	}
}

func (s *QuizService) requireEntitlement(ctx context.Context, id Identity, courseID uint) error {
	if id.IsAnonymous() {
		return util.ErrAuthenticationRequired
	}
	ok, err := s.Entitlements.HasActive(ctx, id.UserID, courseID)
	if err != nil {
		return wrap(err, "check entitlement")
	}
	if !ok {
		return util.ErrNotEnrolled
	}
	return nil
}

func (s *QuizService) videosCompleted(ctx context.Context, userID, courseID uint) (bool, error) {
	cp, err := s.ProgressRepo.FindCourseProgress(ctx, userID, courseID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap(err, "load course progress")
	}
	return cp.ProgressPercentage >= 100, nil
}

// GetQuiz 按课程获取测验
func (s *QuizService) GetQuiz(ctx context.Context, id Identity, courseID uint) (*QuizView, error) {
	if err := s.requireEntitlement(ctx, id, courseID); err != nil {
		return nil, err
	}
	quiz, err := s.QuizRepo.FindByCourse(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "load quiz")
	}

	used, err := s.QuizRepo.CountAttempts(ctx, id.UserID, quiz.ID)
	if err != nil {
		return nil, wrap(err, "count attempts")
	}
	passed, err := s.QuizRepo.HasPassingAttempt(ctx, id.UserID, quiz.ID)
	if err != nil {
		return nil, wrap(err, "load attempts")
	}
	done, err := s.videosCompleted(ctx, id.UserID, courseID)
	if err != nil {
		return nil, err
	}

	remaining := int64(-1)
	if quiz.MaxAttempts > 0 {
		remaining = int64(quiz.MaxAttempts) - used
		if remaining < 0 {
			remaining = 0
		}
	}
	return &QuizView{
		Quiz:              quiz,
		AttemptsUsed:      used,
		AttemptsRemaining: remaining,
		Passed:            passed,
		VideosCompleted:   done,
	}, nil
}

// StartAttempt 存在未提交的尝试时直接返回该尝试
func (s *QuizService) StartAttempt(ctx context.Context, id Identity, quizID uint) (*model.QuizAttempt, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	quiz, err := s.QuizRepo.FindByID(ctx, quizID)
	if err != nil {
		return nil, notFound(err, "load quiz")
	}
	if err := s.requireEntitlement(ctx, id, quiz.CourseID); err != nil {
		return nil, err
	}

	done, err := s.videosCompleted(ctx, id.UserID, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if !done {
		return nil, util.ErrVideosIncomplete
	}

	passed, err := s.QuizRepo.HasPassingAttempt(ctx, id.UserID, quiz.ID)
	if err != nil {
		return nil, wrap(err, "load attempts")
	}
	if passed {
		return nil, util.ErrQuizAlreadyPassed
	}

	open, err := s.QuizRepo.FindOpenAttempt(ctx, id.UserID, quiz.ID)
	if err == nil {
		return open, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrap(err, "load open attempt")
	}

	if quiz.MaxAttempts > 0 {
		used, err := s.QuizRepo.CountAttempts(ctx, id.UserID, quiz.ID)
		if err != nil {
			return nil, wrap(err, "count attempts")
		}
		if used >= int64(quiz.MaxAttempts) {
			return nil, util.ErrMaxAttemptsReached
		}
	}

	attempt := &model.QuizAttempt{UserID: id.UserID, QuizID: quiz.ID, StartedAt: s.now()}
	if err := s.QuizRepo.CreateAttempt(ctx, attempt); err != nil {
		return nil, wrap(err, "create attempt")
	}
	return attempt, nil
}

// answerSet 去重并排序
func answerSet(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// isExactMatch 所选集合必须与正确集合完全相同，未作答视为错误
func isExactMatch(selected []uint, correct map[uint]struct{}) bool {
	if len(selected) == 0 || len(selected) != len(correct) {
		return false
	}
	for _, id := range selected {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

// scoreQuiz 按题目判分；没有题目的测验得 0 分
func scoreQuiz(quiz *model.Quiz, responses map[uint][]uint) (float64, int, []QuestionResult) {
	results := make([]QuestionResult, 0, len(quiz.Questions))
	correct := 0
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		selected := answerSet(responses[q.ID])
		ok := isExactMatch(selected, q.CorrectAnswerIDs())
		if ok {
			correct++
		}
		results = append(results, QuestionResult{
			QuestionID:        q.ID,
			SelectedAnswerIDs: selected,
			IsCorrect:         ok,
			Explanation:       q.Explanation,
		})
	}
	if len(quiz.Questions) == 0 {
		return 0, 0, results
	}
	return float64(correct) * 100 / float64(len(quiz.Questions)), correct, results
}

// SubmitAttempt 每个尝试只能成功提交一次，并发提交中只有一个生效
func (s *QuizService) SubmitAttempt(ctx context.Context, id Identity, attemptID uint, responses map[uint][]uint) (*AttemptResult, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	attempt, err := s.QuizRepo.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, "load attempt")
	}
	if attempt.UserID != id.UserID {
		return nil, util.ErrNotFound
	}
	if attempt.Submitted() {
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return nil, util.ErrAlreadySubmitted
	}

	quiz, err := s.QuizRepo.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, notFound(err, "load quiz")
	}

	score, correct, questions := scoreQuiz(quiz, responses)
	passed := score >= quiz.PassingScore
	now := s.now()

	var cp *model.CourseProgress
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quizRepo := s.QuizRepo.WithTx(tx)
		won, err := quizRepo.CompleteAttempt(ctx, attempt.ID, score, passed, now)
		if err != nil {
			return wrap(err, "complete attempt")
		}
		if !won {
			return util.ErrAlreadySubmitted
		}

		rows := make([]model.QuizResponse, 0, len(questions))
		for _, q := range questions {
			rows = append(rows, model.QuizResponse{
				AttemptID:         attempt.ID,
				QuestionID:        q.QuestionID,
				SelectedAnswerIDs: datatypes.NewJSONSlice(q.SelectedAnswerIDs),
				IsCorrect:         q.IsCorrect,
			})
		}
		if err := quizRepo.CreateResponses(ctx, rows); err != nil {
			return wrap(err, "save responses")
		}

		if !passed {
			return nil
		}
		progressRepo := s.ProgressRepo.WithTx(tx)
		cp, err = progressRepo.EnsureCourseProgress(ctx, id.UserID, quiz.CourseID)
		if err != nil {
			return wrap(err, "load course progress")
		}
		if err := progressRepo.SetQuizPassed(ctx, cp.ID); err != nil {
			return wrap(err, "set quiz passed")
		}
		cp.QuizPassed = true
		return nil
	})
	if errors.Is(err, util.ErrAlreadySubmitted) {
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	attempt.Score = score
	attempt.Passed = passed
	attempt.CompletedAt = &now

	result := &AttemptResult{
		Attempt:        attempt,
		Score:          score,
		Passed:         passed,
		CorrectCount:   correct,
		TotalQuestions: len(quiz.Questions),
		PassingScore:   quiz.PassingScore,
		Questions:      questions,
	}

	if passed {
		monitoring.QuizSubmissions.WithLabelValues("passed").Inc()
		done, err := s.Completion.CheckCompletion(ctx, cp)
		if err != nil {
			logger.Log.Warn("course completion check failed",
				zap.Uint("userID", cp.UserID),
				zap.Uint("courseID", cp.CourseID),
				zap.Error(err))
		}
		result.CourseCompleted = done
	} else {
		monitoring.QuizSubmissions.WithLabelValues("failed").Inc()
	}
	return result, nil
}

// GetAttempt 查看已提交尝试的判分详情
func (s *QuizService) GetAttempt(ctx context.Context, id Identity, attemptID uint) (*AttemptResult, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	attempt, err := s.QuizRepo.FindAttemptWithResponses(ctx, attemptID)
	if err != nil {
		return nil, notFound(err, "load attempt")
	}
	if attempt.UserID != id.UserID {
		return nil, util.ErrNotFound
	}
	quiz, err := s.QuizRepo.FindByID(ctx, attempt.QuizID)
	if err != nil {
		return nil, notFound(err, "load quiz")
	}

	byQuestion := make(map[uint]model.QuizResponse, len(attempt.Responses))
	for _, r := range attempt.Responses {
		byQuestion[r.QuestionID] = r
	}

	result := &AttemptResult{
		Attempt:        attempt,
		Score:          attempt.Score,
		Passed:         attempt.Passed,
		TotalQuestions: len(quiz.Questions),
		PassingScore:   quiz.PassingScore,
		Questions:      make([]QuestionResult, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		r := byQuestion[q.ID]
		if r.IsCorrect {
			result.CorrectCount++
		}
		result.Questions = append(result.Questions, QuestionResult{
			QuestionID:        q.ID,
			SelectedAnswerIDs: []uint(r.SelectedAnswerIDs),
			IsCorrect:         r.IsCorrect,
			Explanation:       q.Explanation,
		})
	}
	return result, nil
}

func (s *QuizService) ListAttempts(ctx context.Context, id Identity, quizID uint) ([]model.QuizAttempt, error) {
	if id.IsAnonymous() {
		return nil, util.ErrAuthenticationRequired
	}
	attempts, err := s.QuizRepo.ListAttempts(ctx, id.UserID, quizID)
	if err != nil {
		return nil, wrap(err, "list attempts")
	}
	return attempts, nil
}
