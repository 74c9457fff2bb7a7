// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/query"
	"recipe-book-go/internal/repository"
	"recipe-book-go/internal/searchindex"
	"recipe-book-go/pkg/embedding"
	"recipe-book-go/pkg/kafka"
	"recipe-book-go/pkg/log"
	"recipe-book-go/pkg/tasks"
)

// CreateRecipeRequest 是创建菜谱的入参，在 handler 层完成校验后传入。
type CreateRecipeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Ingredients string `json:"ingredients"`
	Steps       string `json:"steps"`
	Cuisine     string `json:"cuisine"`
	IsPublic    *bool  `json:"isPublic"`
}

// UpdateRecipeRequest 是更新菜谱的入参，nil 字段表示不修改。
type UpdateRecipeRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Ingredients *string `json:"ingredients"`
	Steps       *string `json:"steps"`
	Cuisine     *string `json:"cuisine"`
	IsPublic    *bool   `json:"isPublic"`
}

// RecipeService 接口定义了菜谱的读写操作。
// 写操作是双写：关系库先行提交（事实来源），成功后再投影到搜索索引。
type RecipeService interface {
	List(q query.ListQuery, requesterID uint) (*model.RecipeListResult, error)
	Get(id uint, requesterID uint) (*model.RecipeDetail, error)
	Create(ctx context.Context, req CreateRecipeRequest, requesterID uint) (uint, error)
	Update(ctx context.Context, id uint, req UpdateRecipeRequest, requesterID uint) error
	Delete(ctx context.Context, id uint, requesterID uint) error
}

// ReindexEnqueuer 把失败的索引投影排队等待后台重试。
// 排队是尽力而为的修复手段，不改变写操作对外报告的结果。
type ReindexEnqueuer interface {
	ProduceReindexTask(ctx context.Context, task tasks.ReindexTask) error
}

type recipeService struct {
	recipeRepo      repository.RecipeRepository
	indexClient     searchindex.Client
	embeddingClient embedding.Client
	enqueuer        ReindexEnqueuer

	// writeLocks 对单个菜谱 id 的写入做分段串行化，
	// 防止旧写入的索引投影覆盖更新的关系库状态。
	writeLocks [16]sync.Mutex
}

var _ ReindexEnqueuer = (*kafka.Producer)(nil)

// NewRecipeService 创建一个新的 RecipeService 实例。enqueuer 可以为 nil，
// 此时投影失败只报告错误，不做排队修复。
func NewRecipeService(
	recipeRepo repository.RecipeRepository,
	indexClient searchindex.Client,
	embeddingClient embedding.Client,
	enqueuer ReindexEnqueuer,
) RecipeService {
	return &recipeService{
		recipeRepo:      recipeRepo,
		indexClient:     indexClient,
		embeddingClient: embeddingClient,
		enqueuer:        enqueuer,
	}
}

func (s *recipeService) lock(id uint) *sync.Mutex {
	return &s.writeLocks[id%uint(len(s.writeLocks))]
}

// List 执行分页列表查询，分页钳制与可见性谓词在仓储层完成。
func (s *recipeService) List(q query.ListQuery, requesterID uint) (*model.RecipeListResult, error) {
	return s.recipeRepo.List(q, requesterID)
}

// Get 返回对请求者可见的单条菜谱。
func (s *recipeService) Get(id uint, requesterID uint) (*model.RecipeDetail, error) {
	return s.recipeRepo.FindVisibleByID(id, requesterID)
}

// EmbeddingInput 返回参与向量化的规范文本拼接。
// 索引文档的向量始终由这份拼接计算，标题或正文任何一部分变化都会改变它。
func EmbeddingInput(title, ingredients, steps string) string {
	return title + "\n\n" + ingredients + "\n\n" + steps
}

// buildSearchDocument 从当前菜谱状态构建索引文档，包含新计算的向量。
func (s *recipeService) buildSearchDocument(ctx context.Context, recipe *model.Recipe) (model.SearchDocument, error) {
	emb, err := s.embeddingClient.CreateEmbedding(ctx, EmbeddingInput(recipe.Title, recipe.Ingredients, recipe.Steps))
	if err != nil {
		return model.SearchDocument{}, fmt.Errorf("%w: %v", apperr.ErrEmbedding, err)
	}
	return model.SearchDocument{
		ID:          strconv.FormatUint(uint64(recipe.ID), 10),
		Title:       recipe.Title,
		Ingredients: recipe.Ingredients,
		Steps:       recipe.Steps,
		Embedding:   emb,
	}, nil
}

// projectUpsert 把菜谱的当前状态投影到搜索索引。
// 失败时整个写操作对外报告失败（关系库变更此时已经持久），
// 同时把任务排到重投递队列，等待后台修复。
func (s *recipeService) projectUpsert(ctx context.Context, recipe *model.Recipe) error {
	doc, err := s.buildSearchDocument(ctx, recipe)
	if err != nil {
		s.enqueue(ctx, tasks.ReindexTask{RecipeID: recipe.ID, Op: tasks.OpUpsert})
		return err
	}
	if err := s.indexClient.Upsert(ctx, doc); err != nil {
		s.enqueue(ctx, tasks.ReindexTask{RecipeID: recipe.ID, Op: tasks.OpUpsert})
		return err
	}
	return nil
}

func (s *recipeService) enqueue(ctx context.Context, task tasks.ReindexTask) {
	if s.enqueuer == nil {
		return
	}
	if err := s.enqueuer.ProduceReindexTask(ctx, task); err != nil {
		log.Errorf("[RecipeService] 重投递任务排队失败: recipeID=%d, op=%s, error: %v", task.RecipeID, task.Op, err)
	}
}

// Create 创建菜谱：关系库插入成功后投影到索引。
// 关系库失败则整体失败，不触碰索引；索引投影失败时关系库行已持久，
// 但操作对外仍报告失败——宁可暴露错误，也不让索引静默滞后。
func (s *recipeService) Create(ctx context.Context, req CreateRecipeRequest, requesterID uint) (uint, error) {
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}
	recipe := &model.Recipe{
		Title:           req.Title,
		Description:     req.Description,
		Ingredients:     req.Ingredients,
		Steps:           req.Steps,
		Cuisine:         req.Cuisine,
		IsPublic:        isPublic,
		CreatedByUserID: requesterID,
	}

	if err := s.recipeRepo.Create(recipe); err != nil {
		return 0, err
	}

	mu := s.lock(recipe.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.projectUpsert(ctx, recipe); err != nil {
		log.Errorf("[RecipeService] 创建后索引投影失败: recipeID=%d, error: %v", recipe.ID, err)
		return recipe.ID, err
	}
	return recipe.ID, nil
}

// Update 更新菜谱。所有权在持锁状态下对当前存储行复核，不信任请求侧状态。
// “不存在”与“不是所有者”合并为同一个错误。
func (s *recipeService) Update(ctx context.Context, id uint, req UpdateRecipeRequest, requesterID uint) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	recipe, err := s.recipeRepo.FindByID(id)
	if err != nil {
		return err
	}
	if recipe.CreatedByUserID != requesterID {
		return apperr.ErrNotFoundOrNotPermitted
	}

	if req.Title != nil {
		recipe.Title = *req.Title
	}
	if req.Description != nil {
		recipe.Description = *req.Description
	}
	if req.Ingredients != nil {
		recipe.Ingredients = *req.Ingredients
	}
	if req.Steps != nil {
		recipe.Steps = *req.Steps
	}
	if req.Cuisine != nil {
		recipe.Cuisine = *req.Cuisine
	}
	if req.IsPublic != nil {
		recipe.IsPublic = *req.IsPublic
	}

	if err := s.recipeRepo.Update(recipe); err != nil {
		return err
	}

	// 投影使用更新后的存储状态，保证索引内容与关系库一致
	if err := s.projectUpsert(ctx, recipe); err != nil {
		log.Errorf("[RecipeService] 更新后索引投影失败: recipeID=%d, error: %v", id, err)
		return err
	}
	return nil
}

// Delete 删除菜谱：关系库删除成功后再删除索引文档。
func (s *recipeService) Delete(ctx context.Context, id uint, requesterID uint) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	recipe, err := s.recipeRepo.FindByID(id)
	if err != nil {
		return err
	}
	if recipe.CreatedByUserID != requesterID {
		return apperr.ErrNotFoundOrNotPermitted
	}

	if err := s.recipeRepo.Delete(id); err != nil {
		return err
	}

	if err := s.indexClient.DeleteByID(ctx, strconv.FormatUint(uint64(id), 10)); err != nil {
		log.Errorf("[RecipeService] 删除后索引清理失败: recipeID=%d, error: %v", id, err)
		s.enqueue(ctx, tasks.ReindexTask{RecipeID: id, Op: tasks.OpDelete})
		return err
	}
	return nil
}
