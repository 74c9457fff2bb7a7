package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/repository"
	"recipe-book-go/pkg/llm"
	"recipe-book-go/pkg/log"
)

// chatRetrievalTopK 是问答检索固定取回的菜谱数目。
const chatRetrievalTopK = 5

// ChatService 接口定义了基于菜谱检索的对话问答操作。
type ChatService interface {
	Answer(ctx context.Context, userID uint, conversation []model.ChatMessage, userMessage string) (*model.ChatAnswer, error)
	Reformulate(ctx context.Context, conversation []model.ChatMessage, userMessage string) (string, error)
	StreamAnswer(ctx context.Context, userID uint, userMessage string, writer llm.MessageWriter) error
	ClearHistory(ctx context.Context, userID uint) error
}

type chatService struct {
	searchService    SearchService
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	searchService SearchService,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
) ChatService {
	return &chatService{
		searchService:    searchService,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
	}
}

// buildRecipesJSON 把检索结果拼成提示词里的 JSON 数组文本。
// 字段内容里的引号和换行要转义掉，避免破坏 JSON 结构。
func buildRecipesJSON(results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString("[")
	for _, r := range results {
		escaped := strings.ReplaceAll(strings.ReplaceAll(r.Ingredients, `"`, `\"`), "\n", " ")
		b.WriteString(fmt.Sprintf("\n  { \"id\": %q, \"title\": %q, \"ingredients\": \"%s\" },", r.ID, r.Title, escaped))
	}
	b.WriteString("\n]")
	return b.String()
}

func answerSystemPrompt(recipesJSON string) string {
	return `You are an AI assistant for a recipe application.

Rules:
- Answer question using ONLY the recipes listed below
- The list of recipes provided will be an array in JSON format; each element will have recipe id, title and ingredients attributes
- If the answer is not contained in the recipes, say you don't know
- Provide your answer in the language of the conversation; even if you say you don't know, say it in the language of the conversation
- Return valid JSON with:
- "answer": string
- "sources": array of objects. Each object in the array represents a recipe you used in your answer with the recipe id and title as attributes.

Recipes:
` + recipesJSON
}

const reformulateSystemPrompt = `You are a query rewriting assistant.

Your task:
- Rewrite the user's latest question into a single, standalone question
- The user's latest question might reference context in the conversation history
- The rewritten question must be understandable without conversation history
- Do NOT answer the question
- Do NOT add new information
- If it's not needed to rewrite the question, return it as is
- Return only the rewritten question as plain text`

func toLLMMessages(system string, conversation []model.ChatMessage, userMessage string) []llm.Message {
	messages := make([]llm.Message, 0, len(conversation)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range conversation {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: userMessage})
	return messages
}

// retrieve 对用户问题做混合检索，取回用于回答的菜谱片段。
func (s *chatService) retrieve(ctx context.Context, userMessage string) ([]model.SearchResult, error) {
	return s.searchService.Search(ctx, model.SearchQuery{
		Mode:  model.SearchModeHybrid,
		Query: userMessage,
		TopK:  chatRetrievalTopK,
	})
}

// Answer 对用户问题执行检索增强问答：
// 混合检索取回 5 条候选菜谱，拼入系统提示词，要求模型输出带来源的 JSON 答案。
func (s *chatService) Answer(ctx context.Context, userID uint, conversation []model.ChatMessage, userMessage string) (*model.ChatAnswer, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, fmt.Errorf("%w: userMessage 不能为空", apperr.ErrValidation)
	}

	results, err := s.retrieve(ctx, userMessage)
	if err != nil {
		return nil, err
	}

	messages := toLLMMessages(answerSystemPrompt(buildRecipesJSON(results)), conversation, userMessage)
	resp, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		log.Errorf("[ChatService] 生成回答失败: %v", err)
		return nil, err
	}

	var answer model.ChatAnswer
	if err := json.Unmarshal([]byte(resp), &answer); err != nil {
		log.Errorf("[ChatService] 模型返回的不是合法 JSON: %v", err)
		return nil, fmt.Errorf("解析模型回答失败: %w", err)
	}

	if s.conversationRepo != nil && userID != 0 {
		if err := s.conversationRepo.AppendHistory(ctx, userID,
			model.ChatMessage{Role: "user", Content: userMessage},
			model.ChatMessage{Role: "assistant", Content: answer.Answer},
		); err != nil {
			log.Errorf("[ChatService] 保存对话历史失败: userID=%d, error: %v", userID, err)
		}
	}
	return &answer, nil
}

// Reformulate 把依赖上下文的追问改写成独立完整的问题，用于检索。
func (s *chatService) Reformulate(ctx context.Context, conversation []model.ChatMessage, userMessage string) (string, error) {
	if strings.TrimSpace(userMessage) == "" {
		return "", fmt.Errorf("%w: userMessage 不能为空", apperr.ErrValidation)
	}
	messages := toLLMMessages(reformulateSystemPrompt, conversation, userMessage)
	resp, err := s.llmClient.Complete(ctx, messages)
	if err != nil {
		log.Errorf("[ChatService] 改写问题失败: %v", err)
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// StreamAnswer 通过 WebSocket 流式返回回答，对话历史取自 Redis。
func (s *chatService) StreamAnswer(ctx context.Context, userID uint, userMessage string, writer llm.MessageWriter) error {
	if strings.TrimSpace(userMessage) == "" {
		return fmt.Errorf("%w: userMessage 不能为空", apperr.ErrValidation)
	}

	history, err := s.conversationRepo.GetHistory(ctx, userID)
	if err != nil {
		log.Errorf("[ChatService] 读取对话历史失败: userID=%d, error: %v", userID, err)
		history = nil
	}

	results, err := s.retrieve(ctx, userMessage)
	if err != nil {
		return err
	}

	messages := toLLMMessages(answerSystemPrompt(buildRecipesJSON(results)), history, userMessage)
	if err := s.llmClient.StreamChatMessages(ctx, messages, writer); err != nil {
		log.Errorf("[ChatService] 流式回答失败: userID=%d, error: %v", userID, err)
		return err
	}

	if err := s.conversationRepo.AppendHistory(ctx, userID,
		model.ChatMessage{Role: "user", Content: userMessage},
	); err != nil {
		log.Errorf("[ChatService] 保存对话历史失败: userID=%d, error: %v", userID, err)
	}
	return nil
}

// ClearHistory 清空用户的对话历史。
func (s *chatService) ClearHistory(ctx context.Context, userID uint) error {
	return s.conversationRepo.ClearHistory(ctx, userID)
}
