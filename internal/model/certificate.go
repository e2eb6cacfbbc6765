package model

import "time"

// Certificate 每个 (user, course) 仅签发一次，由唯一索引保证
// swagger:model Certificate
type Certificate struct {
	BaseModel
	UserID      uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"userId"`
	CourseID    uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"courseId"`
	Code        string    `gorm:"size:40;uniqueIndex;not null" json:"code"`
	IssuedAt    time.Time `json:"issuedAt"`
	QuizScore   *float64  `json:"quizScore,omitempty"`
	DocumentURL string    `gorm:"size:500" json:"documentUrl"`
	User        *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Course      *Course   `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Certificate) TableName() string {
	return "certificates"
}
