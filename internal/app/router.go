package app

import (
	"course_lms_backend/internal/config"
	"course_lms_backend/internal/middleware"
	"course_lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)

		public.GET("/courses", c.course.ListCourses)
		public.GET("/courses/:slug/reviews", c.course.ListReviews)
		public.GET("/categories", c.course.ListCategories)
		public.GET("/categories/:slug/courses", c.course.CoursesByCategory)
		public.GET("/certificates/:code", c.certificate.Verify)

		// 网关回调以签名鉴权
		public.POST("/payments/notifications", c.payment.Notification)

		// 可选认证：游客可看免费内容，登录用户附带进度
		optional := public.Group("")
		optional.Use(middleware.TryAuthMiddleware(cfg))
		{
			optional.GET("/courses/:slug", c.course.GetCourse)
			optional.GET("/courses/:slug/outline", c.course.Outline)
			optional.GET("/videos/:id", c.video.Player)
			optional.GET("/videos/:id/access", c.video.Access)
		}
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/profile", c.auth.Profile)
	group.GET("/my-courses", c.course.MyCourses)

	courses := group.Group("/courses/:slug")
	{
		courses.GET("/progress", c.course.CourseProgress)
		courses.POST("/enroll", c.course.Enroll)
		courses.POST("/checkout", c.course.Checkout)
		courses.GET("/quiz", c.course.GetQuiz)
		courses.GET("/certificate", c.course.Certificate)
		courses.POST("/reviews", c.course.SubmitReview)
	}

	videos := group.Group("/videos/:id")
	{
		videos.POST("/progress", c.video.RecordWatch)
		videos.POST("/complete", c.video.Complete)
		videos.GET("/watch", c.video.WatchSession)
	}

	group.POST("/quizzes/:id/attempts", c.quiz.StartAttempt)
	group.GET("/quizzes/:id/attempts", c.quiz.ListAttempts)
	group.POST("/attempts/:id/submit", c.quiz.Submit)
	group.GET("/attempts/:id", c.quiz.GetAttempt)

	group.GET("/certificates", c.certificate.List)
	group.GET("/payments", c.payment.MyPayments)
}
