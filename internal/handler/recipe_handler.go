package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"recipe-book-go/internal/query"
	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/log"
)

// RecipeHandler 结构体定义了菜谱相关的处理器。
type RecipeHandler struct {
	recipeService service.RecipeService
	photoService  service.PhotoService
}

// NewRecipeHandler 创建一个新的 RecipeHandler 实例。
func NewRecipeHandler(recipeService service.RecipeService, photoService service.PhotoService) *RecipeHandler {
	return &RecipeHandler{
		recipeService: recipeService,
		photoService:  photoService,
	}
}

// reservedListParams 是列表接口的分页/排序/搜索参数，其余查询参数按过滤条件处理。
var reservedListParams = map[string]bool{
	"page":     true,
	"pageSize": true,
	"sortBy":   true,
	"sortDir":  true,
	"q":        true,
}

// coerceScalar 把查询参数的字符串值转成过滤条件需要的标量。
// 依次尝试布尔和整数，都不匹配则按字符串处理。
func coerceScalar(s string) interface{} {
	if s == "true" || s == "false" {
		return s == "true"
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

// List 处理菜谱列表查询。分页、排序、关键词搜索和等值过滤都来自查询参数，
// 过滤键在进入查询构造器前不做校验，白名单外的键会被静默丢弃。
func (h *RecipeHandler) List(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	filters := make(map[string]interface{})
	for key, values := range c.Request.URL.Query() {
		if reservedListParams[key] || len(values) == 0 {
			continue
		}
		filters[key] = coerceScalar(values[0])
	}

	q := query.ListQuery{
		Page:     page,
		PageSize: pageSize,
		SortBy:   c.Query("sortBy"),
		SortDir:  c.Query("sortDir"),
		Search:   c.Query("q"),
		Filters:  filters,
	}

	result, err := h.recipeService.List(q, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, result)
}

func parseRecipeID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的菜谱 id"})
		return 0, false
	}
	return uint(id), true
}

// Get 返回单条菜谱详情。
func (h *RecipeHandler) Get(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	id, found := parseRecipeID(c)
	if !found {
		return
	}

	recipe, err := h.recipeService.Get(id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, recipe)
}

// validateRecipeFields 检查标题和正文的边界约束，所有写入口共用。
// requireAll 为 true 时（创建）必填字段不允许缺失；更新时缺失表示不修改，
// 但显式传入的字段仍要满足同样的约束。
func validateRecipeFields(title, ingredients, steps, cuisine *string, requireAll bool) string {
	if requireAll && (title == nil || ingredients == nil || steps == nil) {
		return "title、ingredients、steps 为必填字段"
	}
	if title != nil {
		if *title == "" {
			return "title 不能为空"
		}
		if len(*title) > 200 {
			return "title 长度不能超过 200"
		}
	}
	if ingredients != nil && *ingredients == "" {
		return "ingredients 不能为空"
	}
	if steps != nil && *steps == "" {
		return "steps 不能为空"
	}
	if cuisine != nil && len(*cuisine) > 100 {
		return "cuisine 长度不能超过 100"
	}
	return ""
}

// Create 处理创建菜谱请求。
// 索引投影失败时返回 500：此时关系库的行已经写入，错误必须暴露而不是吞掉。
func (h *RecipeHandler) Create(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}

	var req service.CreateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}
	if msg := validateRecipeFields(&req.Title, &req.Ingredients, &req.Steps, &req.Cuisine, true); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	id, err := h.recipeService.Create(c.Request.Context(), req, userID)
	if err != nil {
		log.Errorf("[RecipeHandler] 创建菜谱失败: userID=%d, error: %v", userID, err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"code": 201, "data": gin.H{"recipeId": id}, "message": "Created"})
}

// Update 处理更新菜谱请求，只修改请求中出现的字段。
func (h *RecipeHandler) Update(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	id, found := parseRecipeID(c)
	if !found {
		return
	}

	var req service.UpdateRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}
	if msg := validateRecipeFields(req.Title, req.Ingredients, req.Steps, req.Cuisine, false); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.recipeService.Update(c.Request.Context(), id, req, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete 处理删除菜谱请求。
func (h *RecipeHandler) Delete(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	id, found := parseRecipeID(c)
	if !found {
		return
	}

	if err := h.recipeService.Delete(c.Request.Context(), id, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadPhoto 处理菜谱图片上传，表单字段名为 photo。
func (h *RecipeHandler) UploadPhoto(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	id, found := parseRecipeID(c)
	if !found {
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 photo 文件"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传文件"})
		return
	}
	defer file.Close()

	err = h.photoService.Upload(c.Request.Context(), id, userID, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPhotoURL 返回菜谱图片的临时下载链接。
func (h *RecipeHandler) GetPhotoURL(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	id, found := parseRecipeID(c)
	if !found {
		return
	}

	u, err := h.photoService.PresignedURL(c.Request.Context(), id, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"url": u})
}
