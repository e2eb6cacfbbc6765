package controller

import (
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"
	"course_lms_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type VideoController struct {
	CatalogService  *service.CatalogService
	AccessService   *service.AccessService
	ProgressService *service.ProgressService
	WatchSessions   *service.WatchSessionServer
}

func NewVideoController(
	catalogService *service.CatalogService,
	accessService *service.AccessService,
	progressService *service.ProgressService,
	watchSessions *service.WatchSessionServer,
) *VideoController {
	return &VideoController{
		CatalogService:  catalogService,
		AccessService:   accessService,
		ProgressService: progressService,
		WatchSessions:   watchSessions,
	}
}

// Player godoc
// @Summary 视频播放页（可选登录）
// @Tags 视频
// @Produce json
// @Param id path int true "视频ID"
// @Success 200 {object} util.Response{data=service.VideoPlayer}
// @Failure 401 {object} util.Response "需要登录"
// @Failure 403 {object} util.Response "未购买"
// @Router /api/videos/{id} [get]
func (c *VideoController) Player(ctx *gin.Context) {
	player, err := c.CatalogService.GetVideoPlayer(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, player)
}

// Access godoc
// @Summary 判断当前用户能否观看视频
// @Tags 视频
// @Produce json
// @Param id path int true "视频ID"
// @Success 200 {object} util.Response{data=object}
// @Router /api/videos/{id}/access [get]
func (c *VideoController) Access(ctx *gin.Context) {
	videoID := util.MustParseUint(ctx.Param("id"))
	_, allowed, err := c.AccessService.CanAccessVideo(ctx.Request.Context(), service.IdentityFromContext(ctx), videoID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"videoId":   videoID,
		"canAccess": allowed,
	})
}

// swagger:model WatchRequest
type WatchRequest struct {
	WatchedSeconds    int     `json:"watchedSeconds" binding:"min=0"`
	WatchedPercentage float64 `json:"watchedPercentage"`
}

// RecordWatch godoc
// @Summary 上报观看进度
// @Tags 视频
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Param body body WatchRequest true "观看进度"
// @Success 200 {object} util.Response{data=service.WatchResult}
// @Router /api/videos/{id}/progress [post]
func (c *VideoController) RecordWatch(ctx *gin.Context) {
	var req WatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.ProgressService.RecordWatch(ctx.Request.Context(), service.IdentityFromContext(ctx),
		util.MustParseUint(ctx.Param("id")), req.WatchedSeconds, req.WatchedPercentage)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Complete godoc
// @Summary 手动标记视频完成
// @Tags 视频
// @Produce json
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Success 200 {object} util.Response{data=service.WatchResult}
// @Router /api/videos/{id}/complete [post]
func (c *VideoController) Complete(ctx *gin.Context) {
	result, err := c.ProgressService.MarkComplete(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// WatchSession godoc
// @Summary 播放期间通过 WebSocket 上报进度
// @Description 浏览器无法设置请求头，token 可通过 query 传入
// @Tags 视频
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Param token query string false "JWT"
// @Success 101 {string} string "Switching Protocols"
// @Failure 403 {object} util.Response "未购买"
// @Router /api/videos/{id}/watch [get]
func (c *VideoController) WatchSession(ctx *gin.Context) {
	id := service.IdentityFromContext(ctx)
	videoID := util.MustParseUint(ctx.Param("id"))

	// 升级前先完成访问检查，以便返回普通 HTTP 错误
	_, allowed, err := c.AccessService.CanAccessVideo(ctx.Request.Context(), id, videoID)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if !allowed {
		util.RespondError(ctx, util.ErrNotEnrolled)
		return
	}

	if err := c.WatchSessions.Serve(ctx.Writer, ctx.Request, id, videoID); err != nil {
		// Upgrade 失败时已写入 400 响应
		logger.Log.Debug("watch session upgrade failed", zap.Error(err))
	}
}
