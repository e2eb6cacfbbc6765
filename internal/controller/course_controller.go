package controller

import (
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CatalogService     *service.CatalogService
	ProgressService    *service.ProgressService
	EntitlementService *service.EntitlementService
	PaymentService     *service.PaymentService
	QuizService        *service.QuizService
	CertificateService *service.CertificateService
	ReviewService      *service.ReviewService
}

func NewCourseController(
	catalogService *service.CatalogService,
	progressService *service.ProgressService,
	entitlementService *service.EntitlementService,
	paymentService *service.PaymentService,
	quizService *service.QuizService,
	certificateService *service.CertificateService,
	reviewService *service.ReviewService,
) *CourseController {
	return &CourseController{
		CatalogService:     catalogService,
		ProgressService:    progressService,
		EntitlementService: entitlementService,
		PaymentService:     paymentService,
		QuizService:        quizService,
		CertificateService: certificateService,
		ReviewService:      reviewService,
	}
}

// courseID 按 slug 解析课程 ID，未找到时已写入响应
func (c *CourseController) courseID(ctx *gin.Context) (uint, bool) {
	course, err := c.CatalogService.GetCourse(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		util.RespondError(ctx, err)
		return 0, false
	}
	return course.ID, true
}

// ListCourses godoc
// @Summary 课程列表
// @Tags 课程
// @Produce json
// @Param category query string false "分类 slug"
// @Success 200 {object} util.Response{data=service.CourseListing}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	listing, err := c.CatalogService.ListCourses(ctx.Request.Context(), ctx.Query("category"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, listing)
}

// ListCategories godoc
// @Summary 课程分类及课程数
// @Tags 课程
// @Produce json
// @Success 200 {object} util.Response{data=[]service.CategorySummary}
// @Router /api/categories [get]
func (c *CourseController) ListCategories(ctx *gin.Context) {
	categories, err := c.CatalogService.ListCategories(ctx.Request.Context())
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}

// CoursesByCategory godoc
// @Summary 分类下的课程
// @Tags 课程
// @Produce json
// @Param slug path string true "分类 slug"
// @Success 200 {object} util.Response{data=service.CategoryCourses}
// @Failure 404 {object} util.Response
// @Router /api/categories/{slug}/courses [get]
func (c *CourseController) CoursesByCategory(ctx *gin.Context) {
	result, err := c.CatalogService.CoursesByCategory(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetCourse godoc
// @Summary 课程详情
// @Tags 课程
// @Produce json
// @Param slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response
// @Router /api/courses/{slug} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	course, err := c.CatalogService.GetCourse(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	reviews, err := c.ReviewService.List(ctx.Request.Context(), course.ID, 5)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"course":             course,
		"discountPercentage": course.DiscountPercentage(),
		"reviews":            reviews,
	})
}

// Outline godoc
// @Summary 课程大纲（可选登录）
// @Tags 课程
// @Produce json
// @Param slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=service.CourseOutline}
// @Router /api/courses/{slug}/outline [get]
func (c *CourseController) Outline(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	outline, err := c.CatalogService.GetCourseOutline(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, outline)
}

// CourseProgress godoc
// @Summary 课程学习进度
// @Tags 学习
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=model.CourseProgress}
// @Router /api/courses/{slug}/progress [get]
func (c *CourseController) CourseProgress(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	cp, err := c.ProgressService.GetCourseProgress(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, cp)
}

// Enroll godoc
// @Summary 报名免费课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Success 201 {object} util.Response{data=model.Entitlement}
// @Failure 403 {object} util.Response "付费课程需购买"
// @Router /api/courses/{slug}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	entitlement, err := c.EntitlementService.Enroll(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, entitlement)
}

// Checkout godoc
// @Summary 发起课程支付
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Success 201 {object} util.Response{data=service.CheckoutResult}
// @Failure 409 {object} util.Response "已购买"
// @Router /api/courses/{slug}/checkout [post]
func (c *CourseController) Checkout(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	result, err := c.PaymentService.Checkout(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// MyCourses godoc
// @Summary 我的课程
// @Tags 课程
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]service.MyCourse}
// @Router /api/my-courses [get]
func (c *CourseController) MyCourses(ctx *gin.Context) {
	courses, err := c.EntitlementService.MyCourses(ctx.Request.Context(), service.IdentityFromContext(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetQuiz godoc
// @Summary 课程测验（不含正确答案）
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=service.QuizView}
// @Router /api/courses/{slug}/quiz [get]
func (c *CourseController) GetQuiz(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	quiz, err := c.QuizService.GetQuiz(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// Certificate godoc
// @Summary 本课程证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Success 200 {object} util.Response{data=model.Certificate}
// @Failure 404 {object} util.Response
// @Router /api/courses/{slug}/certificate [get]
func (c *CourseController) Certificate(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	cert, err := c.CertificateService.ForCourse(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, cert)
}

// ListReviews godoc
// @Summary 课程评价
// @Tags 课程
// @Produce json
// @Param slug path string true "课程 slug"
// @Param limit query int false "返回条数" default(20)
// @Success 200 {object} util.Response{data=service.CourseReviews}
// @Router /api/courses/{slug}/reviews [get]
func (c *CourseController) ListReviews(ctx *gin.Context) {
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	reviews, err := c.ReviewService.List(ctx.Request.Context(), courseID, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, reviews)
}

// swagger:model ReviewRequest
type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment" binding:"max=2000"`
}

// SubmitReview godoc
// @Summary 评价课程（需已购买或报名）
// @Tags 课程
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "课程 slug"
// @Param body body ReviewRequest true "评分 1-5"
// @Success 201 {object} util.Response{data=service.ReviewView}
// @Failure 403 {object} util.Response
// @Router /api/courses/{slug}/reviews [post]
func (c *CourseController) SubmitReview(ctx *gin.Context) {
	var req ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	courseID, ok := c.courseID(ctx)
	if !ok {
		return
	}
	review, err := c.ReviewService.Submit(ctx.Request.Context(), service.IdentityFromContext(ctx), courseID, req.Rating, req.Comment)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, review)
}
