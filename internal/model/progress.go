package model

import "time"

// VideoCompletionThreshold 观看百分比达到该值即视为看完
const VideoCompletionThreshold = 95.0

// swagger:model VideoProgress
type VideoProgress struct {
	BaseModel
	UserID            uint       `gorm:"uniqueIndex:idx_user_video;not null" json:"userId"`
	VideoID           uint       `gorm:"uniqueIndex:idx_user_video;not null" json:"videoId"`
	WatchedDuration   int        `gorm:"default:0" json:"watchedDuration"` // 秒
	WatchedPercentage float64    `gorm:"default:0" json:"watchedPercentage"`
	IsCompleted       bool       `gorm:"default:false" json:"isCompleted"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	LastWatched       time.Time  `json:"lastWatched"`
}

func (VideoProgress) TableName() string {
	return "video_progress"
}

// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID             uint                  `gorm:"uniqueIndex:idx_user_course_progress;not null" json:"userId"`
	CourseID           uint                  `gorm:"uniqueIndex:idx_user_course_progress;not null" json:"courseId"`
	ProgressPercentage float64               `gorm:"default:0" json:"progressPercentage"`
	QuizPassed         bool                  `gorm:"default:false" json:"quizPassed"`
	IsCompleted        bool                  `gorm:"default:false" json:"isCompleted"`
	CompletedAt        *time.Time            `json:"completedAt,omitempty"`
	CompletedVideos    []CourseProgressVideo `gorm:"foreignKey:CourseProgressID" json:"completedVideos,omitempty"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// CourseProgressVideo 课程进度中已完成视频集合
type CourseProgressVideo struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CourseProgressID uint      `gorm:"uniqueIndex:idx_progress_video;not null" json:"courseProgressId"`
	VideoID          uint      `gorm:"uniqueIndex:idx_progress_video;not null" json:"videoId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (CourseProgressVideo) TableName() string {
	return "course_progress_videos"
}
