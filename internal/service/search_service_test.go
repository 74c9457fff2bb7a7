package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
)

func TestSearchModeDispatch(t *testing.T) {
	t.Run("keyword 模式走关键词检索且从不向量化", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeKeyword,
			Query: "chicken",
			TopK:  3,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"chicken/3"}, index.keyword)
		assert.Empty(t, embedder.calls, "关键词检索不能触发向量化")
	})

	t.Run("vector 模式先向量化再检索", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeVector,
			Query: "chicken",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"chicken"}, embedder.calls)
		assert.Equal(t, 1, index.vectorCalls)
	})

	t.Run("hybrid 模式两条子句同时下发", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeHybrid,
			Query: "chicken",
			TopK:  7,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"chicken/7"}, index.hybrid)
		assert.Len(t, embedder.calls, 1)
	})
}

func TestSearchValidation(t *testing.T) {
	t.Run("非法模式在任何 I/O 之前被拒绝", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{Mode: "fuzzy", Query: "x"})
		assert.True(t, errors.Is(err, apperr.ErrInvalidMode))
		assert.Empty(t, embedder.calls, "非法请求不产生向量化开销")
		assert.Zero(t, index.vectorCalls)
		assert.Empty(t, index.keyword)
		assert.Empty(t, index.hybrid)
	})

	t.Run("topK 为零时使用默认值", func(t *testing.T) {
		index := &fakeIndexClient{}
		svc := NewSearchService(index, &fakeEmbedder{})

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeKeyword,
			Query: "x",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"x/10"}, index.keyword)
	})

	t.Run("topK 为负数被拒绝", func(t *testing.T) {
		svc := NewSearchService(&fakeIndexClient{}, &fakeEmbedder{})
		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeKeyword,
			Query: "x",
			TopK:  -1,
		})
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})
}

func TestSearchEmbeddingResolution(t *testing.T) {
	t.Run("请求自带向量时不再调用向量化服务", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:      model.SearchModeVector,
			Query:     "x",
			Embedding: []float32{0.1, 0.2},
		})
		require.NoError(t, err)
		assert.Empty(t, embedder.calls)
		assert.Equal(t, 1, index.vectorCalls)
	})

	t.Run("向量化失败映射为 ErrEmbedding", func(t *testing.T) {
		index := &fakeIndexClient{}
		embedder := &fakeEmbedder{err: errors.New("quota exceeded")}
		svc := NewSearchService(index, embedder)

		_, err := svc.Search(context.Background(), model.SearchQuery{
			Mode:  model.SearchModeHybrid,
			Query: "x",
		})
		assert.True(t, errors.Is(err, apperr.ErrEmbedding))
		assert.Empty(t, index.hybrid, "向量化失败后不应访问索引")
	})
}
