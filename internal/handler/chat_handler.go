package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"recipe-book-go/internal/model"
	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/log"
	"recipe-book-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理对话问答的 HTTP 和 WebSocket 请求。
type ChatHandler struct {
	chatService service.ChatService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler 实例。
func NewChatHandler(chatService service.ChatService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		jwtManager:  jwtManager,
	}
}

type chatRequest struct {
	Conversation []model.ChatMessage `json:"conversation"`
	UserMessage  string              `json:"userMessage" binding:"required"`
}

// Chat 处理一次检索增强问答请求，返回带来源的答案。
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), userID, req.Conversation, req.UserMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, answer)
}

// Reformulate 把依赖上下文的追问改写成独立问题。
func (h *ChatHandler) Reformulate(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	question, err := h.chatService.Reformulate(c.Request.Context(), req.Conversation, req.UserMessage)
	if err != nil {
		respondError(c, err)
		return
	}
	ok(c, gin.H{"reformulatedQuestion": question})
}

// ClearHistory 清空当前用户的对话历史。
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	userID, found := requireUserID(c)
	if !found {
		return
	}
	if err := h.chatService.ClearHistory(c.Request.Context(), userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream 处理流式问答的 WebSocket 连接。
// 认证走路径参数里的 token，浏览器的 WebSocket API 无法设置请求头。
func (h *ChatHandler) Stream(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无效的 token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("[ChatHandler] WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	log.Infof("[ChatHandler] WebSocket 连接已建立: userID=%d", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("[ChatHandler] 读取 WebSocket 消息失败: %v", err)
			break
		}

		if err := h.chatService.StreamAnswer(c.Request.Context(), claims.UserID, string(message), conn); err != nil {
			log.Errorf("[ChatHandler] 流式回答失败: userID=%d, error: %v", claims.UserID, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"回答生成失败"}`))
		}
	}
}
