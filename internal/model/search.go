// Package model 定义了与数据库表对应的 Go 结构体。
package model

// SearchMode 枚举了检索模式。
type SearchMode string

const (
	SearchModeVector  SearchMode = "vector"
	SearchModeKeyword SearchMode = "keyword"
	SearchModeHybrid  SearchMode = "hybrid"
)

// SearchDocument 定义了存储在搜索索引中的文档结构，是 Recipe 的派生投影。
// 不变式：ID 等于 Recipe.ID 的字符串形式；索引不是所有权与可见性的事实来源。
type SearchDocument struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Ingredients string    `json:"ingredients"`
	Steps       string    `json:"steps"`
	Embedding   []float32 `json:"embedding"` // 文本拼接内容的向量表示
}

// SearchQuery 描述一次检索请求，仅在请求生命周期内存在。
type SearchQuery struct {
	Mode      SearchMode `json:"mode"`
	Query     string     `json:"query"`
	Embedding []float32  `json:"-"` // 可选的预计算向量
	TopK      int        `json:"topK"`
}

// SearchResult 是检索结果：文档的文本字段加上后端打分。
// 分值的量纲由后端决定，不同模式之间不可直接比较；
// 向量本身永远不会出现在结果里。
type SearchResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Ingredients string  `json:"ingredients"`
	Steps       string  `json:"steps"`
	Score       float64 `json:"score"`
}
