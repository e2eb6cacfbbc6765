package controller

import (
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PaymentController struct {
	PaymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{PaymentService: paymentService}
}

// Notification godoc
// @Summary 支付网关异步通知
// @Description 无需登录，以签名校验来源
// @Tags 支付
// @Accept json
// @Produce json
// @Param body body service.PaymentNotification true "网关通知"
// @Success 200 {object} util.Response{data=model.Payment}
// @Failure 401 {object} util.Response "签名无效"
// @Router /api/payments/notifications [post]
func (c *PaymentController) Notification(ctx *gin.Context) {
	var n service.PaymentNotification
	if err := ctx.ShouldBindJSON(&n); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	payment, err := c.PaymentService.HandleNotification(ctx.Request.Context(), n)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, payment)
}

// MyPayments godoc
// @Summary 我的订单
// @Tags 支付
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Payment}
// @Router /api/payments [get]
func (c *PaymentController) MyPayments(ctx *gin.Context) {
	payments, err := c.PaymentService.ListMine(ctx.Request.Context(), service.IdentityFromContext(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, payments)
}
