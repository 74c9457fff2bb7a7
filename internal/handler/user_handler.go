package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/log"
)

// UserHandler 结构体定义了用户相关的处理器。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	user, err := h.userService.Register(req)
	if err != nil {
		log.Warnf("[UserHandler] 注册失败: email=%s, error: %v", req.Email, err)
		respondError(c, err)
		return
	}
	ok(c, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	resp, err := h.userService.Login(req.Email, req.Password)
	if err != nil {
		log.Warnf("[UserHandler] 登录失败: email=%s", req.Email)
		respondError(c, err)
		return
	}
	ok(c, resp)
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 用刷新令牌换取新的访问令牌。
func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	accessToken, err := h.userService.RefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"accessToken": accessToken})
}

// Me 返回当前登录用户的资料。
func (h *UserHandler) Me(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}

	user, err := h.userService.GetProfile(userID)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, user)
}
