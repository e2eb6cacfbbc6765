package controller

import (
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	QuizService *service.QuizService
}

func NewQuizController(quizService *service.QuizService) *QuizController {
	return &QuizController{QuizService: quizService}
}

// StartAttempt godoc
// @Summary 开始测验
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=model.QuizAttempt}
// @Failure 422 {object} util.Response "视频未看完或次数已用尽"
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	attempt, err := c.QuizService.StartAttempt(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// ListAttempts godoc
// @Summary 我的测验记录
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=[]model.QuizAttempt}
// @Router /api/quizzes/{id}/attempts [get]
func (c *QuizController) ListAttempts(ctx *gin.Context) {
	attempts, err := c.QuizService.ListAttempts(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// SubmitRequest responses 的键为题目 ID，值为所选答案 ID
// swagger:model SubmitRequest
type SubmitRequest struct {
	Responses map[string][]uint `json:"responses" binding:"required"`
}

// toResponses JSON 对象键只能是字符串
func (r SubmitRequest) toResponses() (map[uint][]uint, bool) {
	out := make(map[uint][]uint, len(r.Responses))
	for k, v := range r.Responses {
		id, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return nil, false
		}
		out[uint(id)] = v
	}
	return out, true
}

// Submit godoc
// @Summary 提交测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Param body body SubmitRequest true "作答内容"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Failure 409 {object} util.Response "已提交"
// @Router /api/attempts/{id}/submit [post]
func (c *QuizController) Submit(ctx *gin.Context) {
	var req SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	responses, ok := req.toResponses()
	if !ok {
		util.BadRequest(ctx, "question ids must be numeric")
		return
	}

	result, err := c.QuizService.SubmitAttempt(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")), responses)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetAttempt godoc
// @Summary 测验结果
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptResult}
// @Router /api/attempts/{id} [get]
func (c *QuizController) GetAttempt(ctx *gin.Context) {
	result, err := c.QuizService.GetAttempt(ctx.Request.Context(), service.IdentityFromContext(ctx), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
