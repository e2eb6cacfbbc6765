package service

import (
	"course_lms_backend/internal/util"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Identity 请求方身份，UserID 为 0 表示匿名
type Identity struct {
	UserID uint
}

var Anonymous = Identity{}

func (i Identity) IsAnonymous() bool {
	return i.UserID == 0
}

// IdentityFromContext 从 JWT 中间件写入的 claims 取身份
func IdentityFromContext(c *gin.Context) Identity {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		return Anonymous
	}
	return Identity{UserID: claims.UserID}
}

// notFound 把 gorm 的未找到转换为领域错误，其余错误附带上下文原样返回
func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrNotFound
	}
	return wrap(err, what)
}

func wrap(err error, what string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
