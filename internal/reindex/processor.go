// Package reindex 实现索引重投递任务的后台处理。
// 写路径上索引投影失败的菜谱会被排进 Kafka，由这里的处理器补齐索引状态。
package reindex

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/repository"
	"recipe-book-go/internal/searchindex"
	"recipe-book-go/internal/service"
	"recipe-book-go/pkg/embedding"
	"recipe-book-go/pkg/log"
	"recipe-book-go/pkg/tasks"
)

// Processor 消费重投递任务，把索引文档重建为关系库的当前状态。
type Processor struct {
	recipeRepo      repository.RecipeRepository
	indexClient     searchindex.Client
	embeddingClient embedding.Client
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(recipeRepo repository.RecipeRepository, indexClient searchindex.Client, embeddingClient embedding.Client) *Processor {
	return &Processor{
		recipeRepo:      recipeRepo,
		indexClient:     indexClient,
		embeddingClient: embeddingClient,
	}
}

// Process 处理一条重投递任务。
// upsert 任务以关系库为准重建文档；行已经不存在时退化为删除索引文档，
// 这样乱序到达的 upsert 不会复活已删除的菜谱。
func (p *Processor) Process(ctx context.Context, task tasks.ReindexTask) error {
	docID := strconv.FormatUint(uint64(task.RecipeID), 10)

	switch task.Op {
	case tasks.OpDelete:
		return p.indexClient.DeleteByID(ctx, docID)
	case tasks.OpUpsert:
		recipe, err := p.recipeRepo.FindByID(task.RecipeID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFoundOrNotPermitted) {
				log.Infof("[Reindex] 菜谱已不存在，改为删除索引文档: recipeID=%d", task.RecipeID)
				return p.indexClient.DeleteByID(ctx, docID)
			}
			return err
		}

		emb, err := p.embeddingClient.CreateEmbedding(ctx, service.EmbeddingInput(recipe.Title, recipe.Ingredients, recipe.Steps))
		if err != nil {
			return fmt.Errorf("%w: %v", apperr.ErrEmbedding, err)
		}
		return p.indexClient.Upsert(ctx, model.SearchDocument{
			ID:          docID,
			Title:       recipe.Title,
			Ingredients: recipe.Ingredients,
			Steps:       recipe.Steps,
			Embedding:   emb,
		})
	default:
		log.Warnf("[Reindex] 未知的任务类型: op=%s, recipeID=%d", task.Op, task.RecipeID)
		return nil
	}
}
