// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/pkg/log"
)

// respondError 把业务错误统一映射为 HTTP 状态码。
// 未分类的错误一律按 500 处理，响应体不带内部细节。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, apperr.ErrInvalidSortColumn),
		errors.Is(err, apperr.ErrInvalidSortDirection),
		errors.Is(err, apperr.ErrInvalidMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFoundOrNotPermitted):
		c.JSON(http.StatusNotFound, gin.H{"error": "菜谱不存在或无权访问"})
	default:
		log.Errorf("[Handler] 内部错误: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务内部错误"})
	}
}

func requireUserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return 0, false
	}
	id, ok := v.(uint)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "用户数据类型错误"})
		return 0, false
	}
	return id, true
}

func ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": 200, "data": data, "message": "success"})
}
