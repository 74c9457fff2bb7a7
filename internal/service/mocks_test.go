package service

import (
	"context"
	"fmt"
	"time"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/query"
	"recipe-book-go/pkg/llm"
	"recipe-book-go/pkg/tasks"
)

// 本文件是服务层测试共用的假实现。
// 搜索索引、向量化和队列都是进程外依赖，测试里用可编程的替身代替。

type fakeIndexClient struct {
	upserts     []model.SearchDocument
	deletes     []string
	upsertErr   error
	deleteErr   error
	queryErr    error
	vectorCalls int
	keyword     []string
	hybrid      []string
	results     []model.SearchResult
}

func (f *fakeIndexClient) EnsureIndex(ctx context.Context) error { return nil }

func (f *fakeIndexClient) Upsert(ctx context.Context, doc model.SearchDocument) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, doc)
	return nil
}

func (f *fakeIndexClient) DeleteByID(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeIndexClient) QueryVector(ctx context.Context, topK int, embedding []float32) ([]model.SearchResult, error) {
	f.vectorCalls++
	return f.results, f.queryErr
}

func (f *fakeIndexClient) QueryKeyword(ctx context.Context, topK int, text string) ([]model.SearchResult, error) {
	f.keyword = append(f.keyword, fmt.Sprintf("%s/%d", text, topK))
	return f.results, f.queryErr
}

func (f *fakeIndexClient) QueryHybrid(ctx context.Context, topK int, text string, embedding []float32) ([]model.SearchResult, error) {
	f.hybrid = append(f.hybrid, fmt.Sprintf("%s/%d", text, topK))
	return f.results, f.queryErr
}

type fakeEmbedder struct {
	calls []string
	err   error
}

func (f *fakeEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	emb := make([]float32, 8)
	emb[0] = float32(len(text))
	return emb, nil
}

// fakeRecipeRepo 是关系库的内存替身，id 自增，行为与真实仓储的错误约定一致。
type fakeRecipeRepo struct {
	recipes map[uint]*model.Recipe
	nextID  uint
}

func newFakeRecipeRepo() *fakeRecipeRepo {
	return &fakeRecipeRepo{recipes: make(map[uint]*model.Recipe), nextID: 1}
}

func (f *fakeRecipeRepo) List(q query.ListQuery, requesterID uint) (*model.RecipeListResult, error) {
	return &model.RecipeListResult{}, nil
}

func (f *fakeRecipeRepo) FindByID(id uint) (*model.Recipe, error) {
	r, ok := f.recipes[id]
	if !ok {
		return nil, apperr.ErrNotFoundOrNotPermitted
	}
	clone := *r
	return &clone, nil
}

func (f *fakeRecipeRepo) FindVisibleByID(id uint, requesterID uint) (*model.RecipeDetail, error) {
	r, ok := f.recipes[id]
	if !ok || (!r.IsPublic && r.CreatedByUserID != requesterID) {
		return nil, apperr.ErrNotFoundOrNotPermitted
	}
	return &model.RecipeDetail{Recipe: *r}, nil
}

func (f *fakeRecipeRepo) Create(recipe *model.Recipe) error {
	recipe.ID = f.nextID
	f.nextID++
	clone := *recipe
	f.recipes[recipe.ID] = &clone
	return nil
}

func (f *fakeRecipeRepo) Update(recipe *model.Recipe) error {
	if _, ok := f.recipes[recipe.ID]; !ok {
		return apperr.ErrNotFoundOrNotPermitted
	}
	clone := *recipe
	f.recipes[recipe.ID] = &clone
	return nil
}

func (f *fakeRecipeRepo) Delete(id uint) error {
	delete(f.recipes, id)
	return nil
}

func (f *fakeRecipeRepo) DBTime() (time.Time, error) { return time.Now(), nil }

type fakeEnqueuer struct {
	tasks []tasks.ReindexTask
	err   error
}

func (f *fakeEnqueuer) ProduceReindexTask(ctx context.Context, task tasks.ReindexTask) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

type fakeLLM struct {
	calls    [][]llm.Message
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeLLM) StreamChatMessages(ctx context.Context, messages []llm.Message, writer llm.MessageWriter) error {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return f.err
	}
	return writer.WriteMessage(1, []byte(f.response))
}

type fakeConversationRepo struct {
	history map[uint][]model.ChatMessage
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{history: make(map[uint][]model.ChatMessage)}
}

func (f *fakeConversationRepo) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	return f.history[userID], nil
}

func (f *fakeConversationRepo) AppendHistory(ctx context.Context, userID uint, messages ...model.ChatMessage) error {
	f.history[userID] = append(f.history[userID], messages...)
	return nil
}

func (f *fakeConversationRepo) ClearHistory(ctx context.Context, userID uint) error {
	delete(f.history, userID)
	return nil
}
