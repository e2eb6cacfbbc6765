package repository

import (
	"context"
	"course_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc, id asc")
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc, id asc")
}

// FindByID 预加载题目与选项
func (r *QuizRepository) FindByID(ctx context.Context, id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Preload("Questions.Answers", orderedAnswers).
		First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) FindByCourse(ctx context.Context, courseID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Preload("Questions.Answers", orderedAnswers).
		Where("course_id = ?", courseID).
		First(&quiz).Error
	return &quiz, err
}

// QuizIDForCourse 课程未配置测验时返回 0
func (r *QuizRepository) QuizIDForCourse(ctx context.Context, courseID uint) (uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Quiz{}).
		Where("course_id = ?", courseID).
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return 0, err
	}
	return ids[0], nil
}

func (r *QuizRepository) CountAttempts(ctx context.Context, userID, quizID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Count(&count).Error
	return count, err
}

func (r *QuizRepository) HasPassingAttempt(ctx context.Context, userID, quizID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("user_id = ? AND quiz_id = ? AND passed = ?", userID, quizID, true).
		Count(&count).Error
	return count > 0, err
}

// BestScore 用户在该测验中已提交尝试的最高分
func (r *QuizRepository) BestScore(ctx context.Context, userID, quizID uint) (*float64, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND completed_at IS NOT NULL", userID, quizID).
		Order("score desc").
		Limit(1).
		Find(&attempts).Error
	if err != nil || len(attempts) == 0 {
		return nil, err
	}
	score := attempts[0].Score
	return &score, nil
}

// FindOpenAttempt 未提交的尝试，没有时返回 gorm.ErrRecordNotFound
func (r *QuizRepository) FindOpenAttempt(ctx context.Context, userID, quizID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND completed_at IS NULL", userID, quizID).
		Order("started_at desc").
		First(&attempt).Error
	return &attempt, err
}

func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

func (r *QuizRepository) FindAttempt(ctx context.Context, id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).First(&attempt, id).Error
	return &attempt, err
}

// FindAttemptWithResponses 结果页使用
func (r *QuizRepository) FindAttemptWithResponses(ctx context.Context, id uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_id asc")
		}).
		First(&attempt, id).Error
	return &attempt, err
}

// CompleteAttempt completed_at IS NULL 条件下写入结果，返回是否抢到提交
func (r *QuizRepository) CompleteAttempt(ctx context.Context, id uint, score float64, passed bool, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.QuizAttempt{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"score":        score,
			"passed":       passed,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *QuizRepository) CreateResponses(ctx context.Context, responses []model.QuizResponse) error {
	if len(responses) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Create(&responses).Error
}

// ListAttempts 最近的尝试在前
func (r *QuizRepository) ListAttempts(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("started_at desc, id desc").
		Find(&attempts).Error
	return attempts, err
}
