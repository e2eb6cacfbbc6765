package controller

import (
	"course_lms_backend/internal/service"
	"course_lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	CertificateService *service.CertificateService
}

func NewCertificateController(certificateService *service.CertificateService) *CertificateController {
	return &CertificateController{CertificateService: certificateService}
}

// List godoc
// @Summary 我的证书
// @Tags 证书
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=[]model.Certificate}
// @Router /api/certificates [get]
func (c *CertificateController) List(ctx *gin.Context) {
	certs, err := c.CertificateService.ListMine(ctx.Request.Context(), service.IdentityFromContext(ctx))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, certs)
}

// Verify godoc
// @Summary 公开校验证书编号
// @Tags 证书
// @Produce json
// @Param code path string true "证书编号"
// @Success 200 {object} util.Response{data=object}
// @Failure 404 {object} util.Response
// @Router /api/certificates/{code} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	cert, err := c.CertificateService.Verify(ctx.Request.Context(), ctx.Param("code"))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	// 公开接口只返回证书所需字段
	data := gin.H{
		"code":        cert.Code,
		"issuedAt":    cert.IssuedAt,
		"quizScore":   cert.QuizScore,
		"documentUrl": cert.DocumentURL,
	}
	if cert.User != nil {
		data["studentName"] = cert.User.Name
	}
	if cert.Course != nil {
		data["courseTitle"] = cert.Course.Title
		data["courseSlug"] = cert.Course.Slug
	}
	util.Success(ctx, data)
}
