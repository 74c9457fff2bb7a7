// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/internal/searchindex"
	"recipe-book-go/pkg/embedding"
	"recipe-book-go/pkg/log"
)

// DefaultTopK 是未指定结果数上限时的默认值。
const DefaultTopK = 10

// SearchService 接口定义了多模式检索的编排。
type SearchService interface {
	Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error)
}

type searchService struct {
	indexClient     searchindex.Client
	embeddingClient embedding.Client
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(indexClient searchindex.Client, embeddingClient embedding.Client) SearchService {
	return &searchService{
		indexClient:     indexClient,
		embeddingClient: embeddingClient,
	}
}

// Search 按模式分发检索请求。
// 模式与 topK 的校验在任何 I/O 之前完成：非法请求不产生向量化开销。
// vector/hybrid 模式需要向量，未预先提供时先对查询文本做一次向量化。
func (s *searchService) Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error) {
	topK := q.TopK
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 {
		return nil, fmt.Errorf("%w: topK 必须为正整数", apperr.ErrValidation)
	}

	switch q.Mode {
	case model.SearchModeKeyword:
		return s.indexClient.QueryKeyword(ctx, topK, q.Query)

	case model.SearchModeVector:
		emb, err := s.resolveEmbedding(ctx, q)
		if err != nil {
			return nil, err
		}
		return s.indexClient.QueryVector(ctx, topK, emb)

	case model.SearchModeHybrid:
		emb, err := s.resolveEmbedding(ctx, q)
		if err != nil {
			return nil, err
		}
		return s.indexClient.QueryHybrid(ctx, topK, q.Query, emb)

	default:
		return nil, fmt.Errorf("%w: %s", apperr.ErrInvalidMode, q.Mode)
	}
}

// resolveEmbedding 返回请求自带的向量，缺失时调用向量化服务补齐。
func (s *searchService) resolveEmbedding(ctx context.Context, q model.SearchQuery) ([]float32, error) {
	if len(q.Embedding) > 0 {
		return q.Embedding, nil
	}
	emb, err := s.embeddingClient.CreateEmbedding(ctx, q.Query)
	if err != nil {
		log.Errorf("[SearchService] 向量化查询失败: %v", err)
		return nil, fmt.Errorf("%w: %v", apperr.ErrEmbedding, err)
	}
	return emb, nil
}
