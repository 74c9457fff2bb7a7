package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipe-book-go/internal/repository"
)

// SystemHandler 提供健康检查和数据库连通性探测接口。
type SystemHandler struct {
	recipeRepo repository.RecipeRepository
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(recipeRepo repository.RecipeRepository) *SystemHandler {
	return &SystemHandler{recipeRepo: recipeRepo}
}

// Healthz 是存活探针，不触碰任何外部依赖。
func (h *SystemHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DBTime 返回数据库的当前时间，用于验证数据库连通性。
func (h *SystemHandler) DBTime(c *gin.Context) {
	now, err := h.recipeRepo.DBTime()
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"databaseTime": now})
}
