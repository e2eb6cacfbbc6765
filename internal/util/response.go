package util

import (
	"course_lms_backend/pkg/logger"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// errorCodes 领域错误 -> HTTP 状态码与机器可读错误码
var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{ErrAuthenticationRequired, http.StatusUnauthorized, "authentication_required"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{ErrNotFound, http.StatusNotFound, "not_found"},
	{ErrNotEnrolled, http.StatusForbidden, "not_enrolled"},
	{ErrPaidCourse, http.StatusForbidden, "paid_course"},
	{ErrVideosIncomplete, http.StatusUnprocessableEntity, "videos_incomplete"},
	{ErrMaxAttemptsReached, http.StatusUnprocessableEntity, "max_attempts_reached"},
	{ErrInvalidRating, http.StatusUnprocessableEntity, "invalid_rating"},
	{ErrQuizAlreadyPassed, http.StatusConflict, "quiz_already_passed"},
	{ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
	{ErrDuplicateCertificate, http.StatusConflict, "duplicate_certificate"},
	{ErrAlreadyEntitled, http.StatusConflict, "already_entitled"},
	{ErrEmailRegistered, http.StatusConflict, "email_registered"},
}

func lookupError(err error) (error, int, string, bool) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			return e.err, e.status, e.code, true
		}
	}
	return nil, http.StatusServiceUnavailable, "retryable", false
}

// ErrorCode 领域错误对应的 HTTP 状态码与错误码，非领域错误 ok 为 false
func ErrorCode(err error) (status int, code string, ok bool) {
	_, status, code, ok = lookupError(err)
	return status, code, ok
}

// RespondError 领域错误返回结构化 JSON；其余错误记录日志并返回可重试的 503
func RespondError(c *gin.Context, err error) {
	sentinel, status, code, ok := lookupError(err)
	if ok {
		c.JSON(status, Response{
			Code:    status,
			Message: sentinel.Error(),
			Error:   code,
		})
		return
	}

	logger.Log.Error("storage or infrastructure failure",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(status, Response{
		Code:    status,
		Message: "Service temporarily unavailable, please retry",
		Error:   code,
	})
}
