package testutil

import (
	"course_lms_backend/internal/model"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

// DaySpec 构造课程天数的简要描述
type DaySpec struct {
	DayNumber int
	IsFree    bool
	Videos    []VideoSpec
}

type VideoSpec struct {
	Title    string
	Duration int
	IsFree   bool
}

func CreateUser(tb testing.TB, db *gorm.DB, email string) *model.User {
	tb.Helper()
	u := &model.User{Name: email, Email: email, Password: "x", Role: model.Student}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return u
}

// CreateCourse 按 specs 创建课程、天数和视频，返回带预加载的课程
func CreateCourse(tb testing.TB, db *gorm.DB, slug string, price float64, days ...DaySpec) *model.Course {
	tb.Helper()

	course := &model.Course{
		Title:           slug,
		Slug:            slug,
		OriginalPrice:   price,
		DiscountedPrice: price,
		IsActive:        true,
	}
	if err := db.Create(course).Error; err != nil {
		tb.Fatalf("create course: %v", err)
	}

	for i, ds := range days {
		day := &model.CurriculumDay{
			CourseID:  course.ID,
			DayNumber: ds.DayNumber,
			Title:     fmt.Sprintf("Day %d", ds.DayNumber),
			IsFree:    ds.IsFree,
			SortOrder: i,
		}
		if err := db.Create(day).Error; err != nil {
			tb.Fatalf("create day: %v", err)
		}
		for j, vs := range ds.Videos {
			title := vs.Title
			if title == "" {
				title = fmt.Sprintf("Day %d video %d", ds.DayNumber, j+1)
			}
			v := &model.Video{
				CurriculumDayID: day.ID,
				Title:           title,
				DurationSeconds: vs.Duration,
				IsFree:          vs.IsFree,
				SortOrder:       j,
			}
			if err := db.Create(v).Error; err != nil {
				tb.Fatalf("create video: %v", err)
			}
		}
	}

	var loaded model.Course
	err := db.Preload("Days", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc, day_number asc")
	}).Preload("Days.Videos", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc, id asc")
	}).First(&loaded, course.ID).Error
	if err != nil {
		tb.Fatalf("reload course: %v", err)
	}
	return &loaded
}

// Video 按天序号和视频下标取视频，并预加载所属天数
func Video(tb testing.TB, db *gorm.DB, course *model.Course, dayIdx, videoIdx int) *model.Video {
	tb.Helper()
	var v model.Video
	if err := db.Preload("CurriculumDay").First(&v, course.Days[dayIdx].Videos[videoIdx].ID).Error; err != nil {
		tb.Fatalf("load video: %v", err)
	}
	return &v
}

func GrantEntitlement(tb testing.TB, db *gorm.DB, userID, courseID uint) *model.Entitlement {
	tb.Helper()
	now := time.Now()
	e := &model.Entitlement{
		UserID:    userID,
		CourseID:  courseID,
		Source:    model.EntitlementPurchase,
		Status:    model.EntitlementCompleted,
		GrantedAt: &now,
	}
	if err := db.Create(e).Error; err != nil {
		tb.Fatalf("grant entitlement: %v", err)
	}
	return e
}

// QuestionSpec Answers 中以 Correct 标记正确答案
type QuestionSpec struct {
	Text    string
	Answers []AnswerSpec
}

type AnswerSpec struct {
	Text    string
	Correct bool
}

func CreateQuiz(tb testing.TB, db *gorm.DB, courseID uint, passing float64, maxAttempts int, questions ...QuestionSpec) *model.Quiz {
	tb.Helper()

	quiz := &model.Quiz{
		CourseID:     courseID,
		Title:        "Final quiz",
		PassingScore: passing,
		MaxAttempts:  maxAttempts,
	}
	if err := db.Create(quiz).Error; err != nil {
		tb.Fatalf("create quiz: %v", err)
	}

	for i, qs := range questions {
		q := &model.Question{QuizID: quiz.ID, Text: qs.Text, SortOrder: i}
		if err := db.Create(q).Error; err != nil {
			tb.Fatalf("create question: %v", err)
		}
		for j, as := range qs.Answers {
			a := &model.Answer{QuestionID: q.ID, Text: as.Text, IsCorrect: as.Correct, SortOrder: j}
			if err := db.Create(a).Error; err != nil {
				tb.Fatalf("create answer: %v", err)
			}
		}
	}

	var loaded model.Quiz
	err := db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc, id asc")
	}).Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order asc, id asc")
	}).First(&loaded, quiz.ID).Error
	if err != nil {
		tb.Fatalf("reload quiz: %v", err)
	}
	return &loaded
}

// AnswerIDs 按答案文本查找 ID
func AnswerIDs(q *model.Question, texts ...string) []uint {
	var ids []uint
	for _, t := range texts {
		for _, a := range q.Answers {
			if a.Text == t {
				ids = append(ids, a.ID)
			}
		}
	}
	return ids
}
