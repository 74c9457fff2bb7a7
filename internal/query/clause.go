// Package query 把过滤/排序/搜索请求转换为经过校验的参数化谓词集合。
// 这里是纯函数：不做任何网络或存储访问，所有值都走参数绑定，绝不拼接进 SQL 文本。
package query

import (
	"fmt"
	"sort"
	"strings"

	"recipe-book-go/internal/apperr"
)

// ListQuery 描述一次关系库列表查询的请求参数。
type ListQuery struct {
	Page     int
	PageSize int
	SortBy   string
	SortDir  string
	Search   string
	Filters  map[string]interface{}
}

// Clause 是一条等值谓词：形如 "r.cuisine = ?" 的 SQL 片段和对应的绑定值。
type Clause struct {
	Predicate string
	Value     interface{}
}

// sortableColumns 是排序列白名单。键是外部列名，值是查询里安全的 SQL 表达式
// （含 JOIN 别名 created_by_user_email，因此外部列名与物理列不完全一致）。
var sortableColumns = map[string]string{
	"recipe_id":             "r.recipe_id",
	"title":                 "r.title",
	"cuisine":               "r.cuisine",
	"created_at":            "r.created_at",
	"updated_at":            "r.updated_at",
	"is_public":             "r.is_public",
	"created_by_user_email": "created_by_user_email",
}

// filterableColumns 是等值过滤列白名单，比排序白名单更窄。
var filterableColumns = map[string]string{
	"recipe_id":          "r.recipe_id",
	"title":              "r.title",
	"cuisine":            "r.cuisine",
	"created_by_user_id": "r.created_by_user_id",
	"is_public":          "r.is_public",
}

// FallbackOrder 是未指定排序列时的确定性兜底排序，
// 保证偏移分页在值相同（平局）时依然稳定。
const FallbackOrder = "r.created_at DESC, r.recipe_id DESC"

// SanitizeSortColumn 校验排序列是否在白名单内并返回安全的 SQL 表达式。
// 传空串返回空串，由调用方退回 FallbackOrder。
func SanitizeSortColumn(col string) (string, error) {
	if col == "" {
		return "", nil
	}
	safe, ok := sortableColumns[strings.ToLower(col)]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidSortColumn, col)
	}
	return safe, nil
}

// SanitizeSortDir 校验排序方向，只接受 asc/desc（不区分大小写），空串默认 ASC。
func SanitizeSortDir(dir string) (string, error) {
	switch strings.ToLower(dir) {
	case "":
		return "ASC", nil
	case "asc":
		return "ASC", nil
	case "desc":
		return "DESC", nil
	default:
		return "", fmt.Errorf("%w: %s", apperr.ErrInvalidSortDirection, dir)
	}
}

// BuildFilterClauses 为白名单内的过滤键逐个生成等值谓词。
// 策略：白名单之外的键静默丢弃，不报错也不进入查询——未知过滤器被忽略
// 而不是被拒绝，这是刻意保留的行为。
// 返回顺序对相同输入保持稳定（按白名单外部列名排序），便于测试和日志比对。
func BuildFilterClauses(filters map[string]interface{}) []Clause {
	if len(filters) == 0 {
		return nil
	}

	keys := make([]string, 0, len(filters))
	for key := range filters {
		lower := strings.ToLower(key)
		if _, ok := filterableColumns[lower]; ok {
			keys = append(keys, lower)
		}
	}
	sort.Strings(keys)

	clauses := make([]Clause, 0, len(keys))
	for _, key := range keys {
		clauses = append(clauses, Clause{
			Predicate: filterableColumns[key] + " = ?",
			Value:     lookupFold(filters, key),
		})
	}
	return clauses
}

// EscapeLike 转义 LIKE 模式里的通配符。转义符用 '!'，
// 对应的 SQL 片段必须写成 LIKE ? ESCAPE '!'（MySQL 与 SQLite 行为一致）。
func EscapeLike(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(term)
}

// lookupFold 在 filters 里按不区分大小写的键取值。
func lookupFold(filters map[string]interface{}, key string) interface{} {
	if v, ok := filters[key]; ok {
		return v
	}
	for k, v := range filters {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return nil
}
