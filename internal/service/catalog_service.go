package service

import (
	"context"
	"course_lms_backend/internal/model"
	"course_lms_backend/internal/repository"
	"course_lms_backend/internal/util"
	"errors"

	"gorm.io/gorm"
)

// CourseSummary 课程列表项
type CourseSummary struct {
	model.Course
	DiscountPercentage int   `json:"discountPercentage"`
	TotalDays          int   `json:"totalDays"`
	TotalVideos        int64 `json:"totalVideos"`
}

// CategorySummary 分类及其上架课程数
type CategorySummary struct {
	model.CourseCategory
	CourseCount int64 `json:"courseCount"`
}

// CourseListing 课程列表页：可按分类过滤，附带各分类课程数
type CourseListing struct {
	Courses          []CourseSummary   `json:"courses"`
	Categories       []CategorySummary `json:"categories"`
	AllCoursesCount  int64             `json:"allCoursesCount"`
	SelectedCategory string            `json:"selectedCategory,omitempty"`
}

// CategoryCourses 单个分类下的课程
type CategoryCourses struct {
	Category   *model.CourseCategory `json:"category"`
	Courses    []CourseSummary       `json:"courses"`
	Categories []CategorySummary     `json:"categories"`
}

// VideoOutline 大纲中的视频；不可访问时不返回播放地址
type VideoOutline struct {
	ID                uint    `json:"id"`
	Title             string  `json:"title"`
	DurationSeconds   int     `json:"durationSeconds"`
	Duration          string  `json:"duration"`
	IsFree            bool    `json:"isFree"`
	VideoURL          string  `json:"videoUrl,omitempty"`
	Accessible        bool    `json:"accessible"`
	Completed         bool    `json:"completed"`
	WatchedPercentage float64 `json:"watchedPercentage"`
}

type DayOutline struct {
	ID             uint           `json:"id"`
	DayNumber      int            `json:"dayNumber"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	IsFree         bool           `json:"isFree"`
	Videos         []VideoOutline `json:"videos"`
	CompletedCount int            `json:"completedCount"`
}

type CourseOutline struct {
	CourseID           uint         `json:"courseId"`
	Title              string       `json:"title"`
	Slug               string       `json:"slug"`
	Enrolled           bool         `json:"enrolled"`
	HasQuiz            bool         `json:"hasQuiz"`
	QuizID             uint         `json:"quizId,omitempty"`
	Days               []DayOutline `json:"days"`
	TotalVideos        int          `json:"totalVideos"`
	CompletedVideos    int          `json:"completedVideos"`
	ProgressPercentage float64      `json:"progressPercentage"`
	QuizPassed         bool         `json:"quizPassed"`
	IsCompleted        bool         `json:"isCompleted"`
}

// VideoPlayer 播放页：当前视频、观看进度、前后视频与侧边大纲
type VideoPlayer struct {
	Video       *model.Video         `json:"video"`
	DayNumber   int                  `json:"dayNumber"`
	Progress    *model.VideoProgress `json:"progress,omitempty"`
	PrevVideoID *uint                `json:"prevVideoId,omitempty"`
	NextVideoID *uint                `json:"nextVideoId,omitempty"`
	Outline     *CourseOutline       `json:"outline"`
}

type CatalogService struct {
	CourseRepo   *repository.CourseRepository
	CategoryRepo *repository.CategoryRepository
	ProgressRepo *repository.ProgressRepository
	QuizRepo     *repository.QuizRepository
	Access       *AccessService
}

func NewCatalogService(
	courseRepo *repository.CourseRepository,
	categoryRepo *repository.CategoryRepository,
	progressRepo *repository.ProgressRepository,
	quizRepo *repository.QuizRepository,
	access *AccessService,
) *CatalogService {
	return &CatalogService{
		CourseRepo:   courseRepo,
		CategoryRepo: categoryRepo,
		ProgressRepo: progressRepo,
		QuizRepo:     quizRepo,
		Access:       access,
	}
}

// ListCourses categorySlug 为空时返回全部上架课程；未知分类返回空列表
func (s *CatalogService) ListCourses(ctx context.Context, categorySlug string) (*CourseListing, error) {
	categories, err := s.categorySummaries(ctx)
	if err != nil {
		return nil, err
	}
	total, err := s.CourseRepo.CountActive(ctx)
	if err != nil {
		return nil, wrap(err, "count courses")
	}
	listing := &CourseListing{
		Courses:          []CourseSummary{},
		Categories:       categories,
		AllCoursesCount:  total,
		SelectedCategory: categorySlug,
	}

	var categoryID uint
	if categorySlug != "" {
		for _, c := range categories {
			if c.Slug == categorySlug {
				categoryID = c.ID
			}
		}
		if categoryID == 0 {
			return listing, nil
		}
	}

	courses, err := s.CourseRepo.ListActive(ctx, categoryID)
	if err != nil {
		return nil, wrap(err, "list courses")
	}
	listing.Courses, err = s.summarize(ctx, courses)
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]CategorySummary, error) {
	return s.categorySummaries(ctx)
}

// CoursesByCategory 分类不存在或未启用时返回 ErrNotFound
func (s *CatalogService) CoursesByCategory(ctx context.Context, slug string) (*CategoryCourses, error) {
	category, err := s.CategoryRepo.FindActiveBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "load category")
	}
	categories, err := s.categorySummaries(ctx)
	if err != nil {
		return nil, err
	}
	courses, err := s.CourseRepo.ListActive(ctx, category.ID)
	if err != nil {
		return nil, wrap(err, "list courses")
	}
	summaries, err := s.summarize(ctx, courses)
	if err != nil {
		return nil, err
	}
	return &CategoryCourses{Category: category, Courses: summaries, Categories: categories}, nil
}

func (s *CatalogService) categorySummaries(ctx context.Context) ([]CategorySummary, error) {
	categories, err := s.CategoryRepo.ListActive(ctx)
	if err != nil {
		return nil, wrap(err, "list categories")
	}
	counts, err := s.CategoryRepo.CountActiveCourses(ctx)
	if err != nil {
		return nil, wrap(err, "count category courses")
	}
	result := make([]CategorySummary, 0, len(categories))
	for _, c := range categories {
		result = append(result, CategorySummary{CourseCategory: c, CourseCount: counts[c.ID]})
	}
	return result, nil
}

// summarize 天数与视频数各用一次分组查询
func (s *CatalogService) summarize(ctx context.Context, courses []model.Course) ([]CourseSummary, error) {
	ids := make([]uint, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	videos, err := s.CourseRepo.CountVideosByCourse(ctx, ids)
	if err != nil {
		return nil, wrap(err, "count videos")
	}
	days, err := s.CourseRepo.CountDaysByCourse(ctx, ids)
	if err != nil {
		return nil, wrap(err, "count days")
	}

	result := make([]CourseSummary, 0, len(courses))
	for _, c := range courses {
		result = append(result, CourseSummary{
			Course:             c,
			DiscountPercentage: c.DiscountPercentage(),
			TotalDays:          int(days[c.ID]),
			TotalVideos:        videos[c.ID],
		})
	}
	return result, nil
}

// GetCourse 按 slug 查询上架课程
func (s *CatalogService) GetCourse(ctx context.Context, slug string) (*model.Course, error) {
	course, err := s.CourseRepo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "load course")
	}
	if !course.IsActive {
		return nil, util.ErrNotFound
	}
	return course, nil
}

func (s *CatalogService) GetCourseOutline(ctx context.Context, id Identity, courseID uint) (*CourseOutline, error) {
	course, err := s.CourseRepo.FindWithCurriculum(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "load course")
	}
	return s.buildOutline(ctx, id, course)
}

func (s *CatalogService) buildOutline(ctx context.Context, id Identity, course *model.Course) (*CourseOutline, error) {
	enrolled := false
	if !id.IsAnonymous() {
		ok, err := s.Access.Entitlements.HasActive(ctx, id.UserID, course.ID)
		if err != nil {
			return nil, wrap(err, "check entitlement")
		}
		enrolled = ok
	}

	var videoIDs []uint
	for _, d := range course.Days {
		for _, v := range d.Videos {
			videoIDs = append(videoIDs, v.ID)
		}
	}
	progress, err := s.ProgressRepo.ListVideoProgress(ctx, id.UserID, videoIDs)
	if err != nil {
		return nil, wrap(err, "load video progress")
	}

	outline := &CourseOutline{
		CourseID:    course.ID,
		Title:       course.Title,
		Slug:        course.Slug,
		Enrolled:    enrolled,
		Days:        make([]DayOutline, 0, len(course.Days)),
		TotalVideos: len(videoIDs),
	}

	for _, d := range course.Days {
		day := DayOutline{
			ID:          d.ID,
			DayNumber:   d.DayNumber,
			Title:       d.Title,
			Description: d.Description,
			IsFree:      d.IsFree,
			Videos:      make([]VideoOutline, 0, len(d.Videos)),
		}
		dayRef := &model.CurriculumDay{CourseID: course.ID, DayNumber: d.DayNumber, IsFree: d.IsFree}
		for _, v := range d.Videos {
			candidate := v
			candidate.CurriculumDay = dayRef
			decision := evaluateAccess(&candidate, id)
			accessible := decision.allowed || (decision.needsEntitlement && enrolled)

			item := VideoOutline{
				ID:              v.ID,
				Title:           v.Title,
				DurationSeconds: v.DurationSeconds,
				Duration:        util.FormatClockDuration(v.DurationSeconds),
				IsFree:          v.IsFree,
				Accessible:      accessible,
			}
			if accessible {
				item.VideoURL = v.VideoURL
			}
			if vp, ok := progress[v.ID]; ok {
				item.Completed = vp.IsCompleted
				item.WatchedPercentage = vp.WatchedPercentage
			}
			if item.Completed {
				day.CompletedCount++
				outline.CompletedVideos++
			}
			day.Videos = append(day.Videos, item)
		}
		outline.Days = append(outline.Days, day)
	}

	quizID, err := s.QuizRepo.QuizIDForCourse(ctx, course.ID)
	if err != nil {
		return nil, wrap(err, "load course quiz")
	}
	outline.HasQuiz = quizID != 0
	outline.QuizID = quizID

	if !id.IsAnonymous() {
		cp, err := s.ProgressRepo.FindCourseProgress(ctx, id.UserID, course.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrap(err, "load course progress")
		}
		if err == nil {
			outline.ProgressPercentage = cp.ProgressPercentage
			outline.QuizPassed = cp.QuizPassed
			outline.IsCompleted = cp.IsCompleted
		}
	}
	return outline, nil
}

// GetVideoPlayer 无权访问时匿名用户需要登录，已登录用户需要购买
func (s *CatalogService) GetVideoPlayer(ctx context.Context, id Identity, videoID uint) (*VideoPlayer, error) {
	video, ok, err := s.Access.CanAccessVideo(ctx, id, videoID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if id.IsAnonymous() {
			return nil, util.ErrAuthenticationRequired
		}
		return nil, util.ErrNotEnrolled
	}

	course, err := s.CourseRepo.FindWithCurriculum(ctx, video.CourseID())
	if err != nil {
		return nil, notFound(err, "load course")
	}
	outline, err := s.buildOutline(ctx, id, course)
	if err != nil {
		return nil, err
	}

	player := &VideoPlayer{
		Video:     video,
		DayNumber: video.CurriculumDay.DayNumber,
		Outline:   outline,
	}
	player.PrevVideoID, player.NextVideoID = neighbours(course, video.ID)

	if !id.IsAnonymous() {
		vp, err := s.ProgressRepo.FindVideoProgress(ctx, id.UserID, video.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wrap(err, "load video progress")
		}
		if err == nil {
			player.Progress = vp
		}
	}
	return player, nil
}

// neighbours 大纲顺序中的前一个与后一个视频
func neighbours(course *model.Course, videoID uint) (*uint, *uint) {
	var ordered []uint
	for _, d := range course.Days {
		for _, v := range d.Videos {
			ordered = append(ordered, v.ID)
		}
	}
	for i, id := range ordered {
		if id != videoID {
			continue
		}
		var prev, next *uint
		if i > 0 {
			p := ordered[i-1]
			prev = &p
		}
		if i < len(ordered)-1 {
			n := ordered[i+1]
			next = &n
		}
		return prev, next
	}
	return nil, nil
}
