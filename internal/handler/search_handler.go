package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipe-book-go/internal/model"
	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

type searchRequest struct {
	Mode  string `json:"mode" binding:"required"`
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"topK"`
}

// Search 处理菜谱搜索请求，支持 vector、keyword、hybrid 三种模式。
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	results, err := h.searchService.Search(c.Request.Context(), model.SearchQuery{
		Mode:  model.SearchMode(req.Mode),
		Query: req.Query,
		TopK:  req.TopK,
	})
	if err != nil {
		log.Errorf("[SearchHandler] 搜索失败: mode=%s, error: %v", req.Mode, err)
		respondError(c, err)
		return
	}

	log.Infof("[SearchHandler] 搜索成功: mode=%s, 返回 %d 条结果", req.Mode, len(results))
	ok(c, results)
}
