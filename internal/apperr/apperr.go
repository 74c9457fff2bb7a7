// Package apperr 定义了核心层统一的错误分类。
// handler 层通过 errors.Is 将这些哨兵错误映射为 HTTP 状态码。
package apperr

import "errors"

var (
	// ErrValidation 表示请求入参非法，在进入核心组件之前被拒绝。
	ErrValidation = errors.New("validation failed")

	// ErrInvalidSortColumn 表示排序列不在白名单内，不会触发任何存储访问。
	ErrInvalidSortColumn = errors.New("invalid sort column")

	// ErrInvalidSortDirection 表示排序方向不是 asc/desc。
	ErrInvalidSortDirection = errors.New("invalid sort direction")

	// ErrInvalidMode 表示检索模式不是 vector/keyword/hybrid，
	// 在任何 I/O（包括向量化）之前被拒绝。
	ErrInvalidMode = errors.New("invalid search mode")

	// ErrNotFoundOrNotPermitted 将“不存在”与“存在但无权限”合并为同一结果，
	// 避免泄露私有记录的存在性。
	ErrNotFoundOrNotPermitted = errors.New("not found or not permitted")

	// ErrStorage 表示关系库访问失败。
	ErrStorage = errors.New("storage error")

	// ErrIndexUnavailable 表示搜索索引连接或请求失败。
	ErrIndexUnavailable = errors.New("search index unavailable")

	// ErrEmbedding 表示向量化服务调用失败。
	ErrEmbedding = errors.New("embedding service error")

	// ErrForbidden 表示身份合法但不满足准入策略（例如邮箱域名不在白名单）。
	ErrForbidden = errors.New("forbidden")
)
