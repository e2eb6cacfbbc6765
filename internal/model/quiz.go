package model

import (
	"time"

	"gorm.io/datatypes"
)

// Quiz 每门课程至多一个测验；MaxAttempts 为 0 表示不限次数
// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID     uint       `gorm:"uniqueIndex;not null" json:"courseId"`
	Title        string     `gorm:"size:200;not null" json:"title"`
	Description  string     `gorm:"type:text" json:"description"`
	MaxAttempts  int        `gorm:"default:0" json:"maxAttempts"`
	PassingScore float64    `gorm:"default:70" json:"passingScore"`
	Questions    []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID      uint     `gorm:"index;not null" json:"quizId"`
	Text        string   `gorm:"type:text;not null" json:"text"`
	Explanation string   `gorm:"type:text" json:"explanation"`
	SortOrder   int      `gorm:"default:0" json:"sortOrder"`
	Answers     []Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// CorrectAnswerIDs 正确答案集合
func (q *Question) CorrectAnswerIDs() map[uint]struct{} {
	ids := make(map[uint]struct{})
	for _, a := range q.Answers {
		if a.IsCorrect {
			ids[a.ID] = struct{}{}
		}
	}
	return ids
}

// swagger:model Answer
type Answer struct {
	BaseModel
	QuestionID uint   `gorm:"index;not null" json:"questionId"`
	Text       string `gorm:"size:500;not null" json:"text"`
	IsCorrect  bool   `gorm:"default:false" json:"-"`
	SortOrder  int    `gorm:"default:0" json:"sortOrder"`
}

func (Answer) TableName() string {
	return "answers"
}

// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	UserID      uint           `gorm:"index:idx_attempt_user_quiz;not null" json:"userId"`
	QuizID      uint           `gorm:"index:idx_attempt_user_quiz;not null" json:"quizId"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Score       float64        `gorm:"default:0" json:"score"`
	Passed      bool           `gorm:"default:false" json:"passed"`
	Responses   []QuizResponse `gorm:"foreignKey:AttemptID" json:"responses,omitempty"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// Submitted 已提交的测验不可再次提交
func (a *QuizAttempt) Submitted() bool {
	return a.CompletedAt != nil
}

// swagger:model QuizResponse
type QuizResponse struct {
	BaseModel
	AttemptID         uint                      `gorm:"uniqueIndex:idx_attempt_question;not null" json:"attemptId"`
	QuestionID        uint                      `gorm:"uniqueIndex:idx_attempt_question;not null" json:"questionId"`
	SelectedAnswerIDs datatypes.JSONSlice[uint] `json:"selectedAnswerIds"`
	IsCorrect         bool                      `gorm:"default:false" json:"isCorrect"`
}

func (QuizResponse) TableName() string {
	return "quiz_responses"
}
