package model

// CourseCategory 课程分类，按 SortOrder、Name 排序
// swagger:model CourseCategory
type CourseCategory struct {
	BaseModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:50" json:"icon"`
	IsActive    bool   `gorm:"default:true" json:"isActive"`
	SortOrder   int    `gorm:"default:0" json:"sortOrder"`
}

func (CourseCategory) TableName() string {
	return "course_categories"
}

// swagger:model Course
type Course struct {
	BaseModel
	Title           string          `gorm:"size:200;not null" json:"title"`
	Slug            string          `gorm:"size:200;uniqueIndex;not null" json:"slug"`
	Description     string          `gorm:"type:text" json:"description"`
	OriginalPrice   float64         `gorm:"type:decimal(10,2);default:0" json:"originalPrice"`
	DiscountedPrice float64         `gorm:"type:decimal(10,2);default:0" json:"discountedPrice"`
	IsActive        bool            `gorm:"default:true" json:"isActive"`
	IsFeatured      bool            `gorm:"default:false" json:"isFeatured"`
	CategoryID      *uint           `gorm:"index" json:"categoryId,omitempty"`
	Category        *CourseCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Days            []CurriculumDay `gorm:"foreignKey:CourseID" json:"days,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// IsFree 折后价为 0 的课程可直接报名
func (c *Course) IsFree() bool {
	return c.DiscountedPrice <= 0
}

// DiscountPercentage 折扣百分比，原价未设置时为 0
func (c *Course) DiscountPercentage() int {
	if c.OriginalPrice <= 0 || c.DiscountedPrice >= c.OriginalPrice {
		return 0
	}
	return int((c.OriginalPrice - c.DiscountedPrice) / c.OriginalPrice * 100)
}

// swagger:model CurriculumDay
type CurriculumDay struct {
	BaseModel
	CourseID    uint    `gorm:"uniqueIndex:idx_course_day;not null" json:"courseId"`
	DayNumber   int     `gorm:"uniqueIndex:idx_course_day;not null" json:"dayNumber"`
	Title       string  `gorm:"size:200" json:"title"`
	Description string  `gorm:"type:text" json:"description"`
	IsFree      bool    `gorm:"default:false" json:"isFree"`
	SortOrder   int     `gorm:"default:0" json:"sortOrder"`
	Course      *Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Videos      []Video `gorm:"foreignKey:CurriculumDayID" json:"videos,omitempty"`
}

func (CurriculumDay) TableName() string {
	return "curriculum_days"
}

// swagger:model Video
type Video struct {
	BaseModel
	CurriculumDayID uint           `gorm:"index;not null" json:"curriculumDayId"`
	Title           string         `gorm:"size:200;not null" json:"title"`
	Description     string         `gorm:"type:text" json:"description"`
	VideoURL        string         `gorm:"size:500" json:"videoUrl"`
	DurationSeconds int            `gorm:"default:0" json:"durationSeconds"` // 统一以秒为单位
	SortOrder       int            `gorm:"default:0" json:"sortOrder"`
	IsFree          bool           `gorm:"default:false" json:"isFree"`
	CurriculumDay   *CurriculumDay `gorm:"foreignKey:CurriculumDayID" json:"curriculumDay,omitempty"`
}

func (Video) TableName() string {
	return "videos"
}

// CourseID 需要预加载 CurriculumDay
func (v *Video) CourseID() uint {
	if v.CurriculumDay == nil {
		return 0
	}
	return v.CurriculumDay.CourseID
}

const (
	MinReviewRating = 1
	MaxReviewRating = 5
)

// CourseReview 每个 (user, course) 一条评价
// swagger:model CourseReview
type CourseReview struct {
	BaseModel
	UserID     uint   `gorm:"uniqueIndex:idx_review_user_course;not null" json:"userId"`
	CourseID   uint   `gorm:"uniqueIndex:idx_review_user_course;index;not null" json:"courseId"`
	Rating     int    `gorm:"not null;default:5" json:"rating"`
	Comment    string `gorm:"type:text" json:"comment"`
	IsApproved bool   `gorm:"default:true" json:"isApproved"`
	User       *User  `gorm:"foreignKey:UserID" json:"-"`
}

func (CourseReview) TableName() string {
	return "course_reviews"
}
