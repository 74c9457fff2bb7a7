// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"recipe-book-go/internal/model"
)

// ConversationRepository 定义了对话历史记录的操作接口。
// 对话历史是聊天层的会话态，存放在 Redis 中，7 天过期。
type ConversationRepository interface {
	GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	AppendHistory(ctx context.Context, userID uint, messages ...model.ChatMessage) error
	ClearHistory(ctx context.Context, userID uint) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

const conversationTTL = 7 * 24 * time.Hour

func conversationKey(userID uint) string {
	return fmt.Sprintf("conversation:%d", userID)
}

// GetHistory 从 Redis 获取用户的对话历史记录。
func (r *redisConversationRepository) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(userID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendHistory 把新的消息追加到对话历史并刷新过期时间。
func (r *redisConversationRepository) AppendHistory(ctx context.Context, userID uint, messages ...model.ChatMessage) error {
	history, err := r.GetHistory(ctx, userID)
	if err != nil {
		return err
	}
	history = append(history, messages...)

	// 只保留最近 20 条，避免上下文无限增长
	if len(history) > 20 {
		history = history[len(history)-20:]
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	return r.redisClient.Set(ctx, conversationKey(userID), data, conversationTTL).Err()
}

// ClearHistory 清空用户的对话历史。
func (r *redisConversationRepository) ClearHistory(ctx context.Context, userID uint) error {
	return r.redisClient.Del(ctx, conversationKey(userID)).Err()
}
