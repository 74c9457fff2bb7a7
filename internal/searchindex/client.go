// Package searchindex 封装了对外部搜索索引的读写能力：
// 文档的 upsert / 按 id 删除，以及向量、关键词、混合三种查询。
// 三种查询把后端各异的命中结构归一为同一个带分值的结果形状。
// 客户端自身不做重试，重试是调用方（写协调器与重投递队列）的职责。
package searchindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"recipe-book-go/internal/apperr"
	"recipe-book-go/internal/model"
	"recipe-book-go/pkg/log"
)

// Client 接口定义了搜索索引的全部操作。
type Client interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, doc model.SearchDocument) error
	DeleteByID(ctx context.Context, id string) error
	QueryVector(ctx context.Context, topK int, embedding []float32) ([]model.SearchResult, error)
	QueryKeyword(ctx context.Context, topK int, text string) ([]model.SearchResult, error)
	QueryHybrid(ctx context.Context, topK int, text string, embedding []float32) ([]model.SearchResult, error)
}

type esClient struct {
	es         *elasticsearch.Client
	indexName  string
	dimensions int
}

// NewClient 创建一个新的搜索索引客户端。
func NewClient(es *elasticsearch.Client, indexName string, dimensions int) Client {
	return &esClient{es: es, indexName: indexName, dimensions: dimensions}
}

// minNeighborHint 是向量检索的近邻数下限：内部召回比 topK 更多的候选，
// 给下游留出再过滤的余地，截断到 topK 在解析结果时完成。
const minNeighborHint = 50

// sourceIncludes 限定每种查询返回的字段：向量只在 upsert 时进入索引，
// 查询结果永远不携带向量。
var sourceIncludes = []string{"id", "title", "ingredients", "steps"}

// EnsureIndex 检查索引是否存在，不存在则按固定 mapping 创建。
func (c *esClient) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.indexName}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: 检查索引失败: %v", apperr.ErrIndexUnavailable, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("%w: 检查索引返回意外状态码 %d", apperr.ErrIndexUnavailable, res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"title": { "type": "text" },
				"ingredients": { "type": "text" },
				"steps": { "type": "text" },
				"embedding": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, c.dimensions)

	createRes, err := c.es.Indices.Create(
		c.indexName,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(mapping))),
	)
	if err != nil {
		return fmt.Errorf("%w: 创建索引失败: %v", apperr.ErrIndexUnavailable, err)
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("%w: 创建索引 '%s' 返回错误: %s", apperr.ErrIndexUnavailable, c.indexName, createRes.String())
	}

	log.Infof("索引 '%s' 创建成功, 向量维度: %d", c.indexName, c.dimensions)
	return nil
}

// Upsert 将一个搜索文档写入索引，按文档 id 覆盖旧版本。
func (c *esClient) Upsert(ctx context.Context, doc model.SearchDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal search document: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: upsert 文档 '%s' 返回错误: %s", apperr.ErrIndexUnavailable, doc.ID, res.String())
	}
	return nil
}

// DeleteByID 按 id 删除索引中的文档。文档本就不存在不视为错误。
func (c *esClient) DeleteByID(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      c.indexName,
		DocumentID: id,
		Refresh:    "true",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("%w: 删除文档 '%s' 返回错误: %s", apperr.ErrIndexUnavailable, id, res.String())
	}
	return nil
}

// knnClause 构建 knn 查询子句，近邻数取 max(topK, minNeighborHint)。
func knnClause(topK int, embedding []float32) map[string]interface{} {
	hint := topK
	if hint < minNeighborHint {
		hint = minNeighborHint
	}
	return map[string]interface{}{
		"field":          "embedding",
		"query_vector":   embedding,
		"k":              hint,
		"num_candidates": hint,
	}
}

// allTermsClause 构建全词匹配子句：operator=and 要求所有查询词都命中，
// 避免部分词 OR 语义带来的过宽召回。
func allTermsClause(text string) map[string]interface{} {
	return map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":    text,
			"fields":   []string{"title", "ingredients", "steps"},
			"operator": "and",
		},
	}
}

// QueryVector 执行穷举式最近邻检索，结果按分值降序并截断到 topK。
func (c *esClient) QueryVector(ctx context.Context, topK int, embedding []float32) ([]model.SearchResult, error) {
	body := map[string]interface{}{
		"knn":     knnClause(topK, embedding),
		"size":    topK,
		"_source": map[string]interface{}{"includes": sourceIncludes},
	}
	return c.search(ctx, topK, body)
}

// QueryKeyword 执行关键词检索，要求所有查询词命中。
func (c *esClient) QueryKeyword(ctx context.Context, topK int, text string) ([]model.SearchResult, error) {
	body := map[string]interface{}{
		"query":   allTermsClause(text),
		"size":    topK,
		"_source": map[string]interface{}{"includes": sourceIncludes},
	}
	return c.search(ctx, topK, body)
}

// QueryHybrid 在向量请求上叠加全词匹配子句，两个子句同时生效，
// 排序融合由后端原生完成，客户端不做分值加权。
func (c *esClient) QueryHybrid(ctx context.Context, topK int, text string, embedding []float32) ([]model.SearchResult, error) {
	body := map[string]interface{}{
		"knn":     knnClause(topK, embedding),
		"query":   allTermsClause(text),
		"size":    topK,
		"_source": map[string]interface{}{"includes": sourceIncludes},
	}
	return c.search(ctx, topK, body)
}

// search 发送查询请求并把命中归一为 SearchResult。
func (c *esClient) search(ctx context.Context, topK int, body map[string]interface{}) ([]model.SearchResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode search query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.indexName),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrIndexUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[SearchIndex] 查询返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("%w: 查询返回状态 %s", apperr.ErrIndexUnavailable, res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ID          string `json:"id"`
					Title       string `json:"title"`
					Ingredients string `json:"ingredients"`
					Steps       string `json:"steps"`
				} `json:"_source"`
				Score float64 `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		if len(results) >= topK {
			break
		}
		results = append(results, model.SearchResult{
			ID:          hit.Source.ID,
			Title:       hit.Source.Title,
			Ingredients: hit.Source.Ingredients,
			Steps:       hit.Source.Steps,
			Score:       hit.Score,
		})
	}
	return results, nil
}
