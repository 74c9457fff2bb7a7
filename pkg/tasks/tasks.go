// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// 重投递任务的操作类型。
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// ReindexTask 表示一次搜索索引重投递任务：
// 关系库写入已成功但索引投影失败时，把该菜谱的变更排队等待后台重试。
type ReindexTask struct {
	RecipeID uint   `json:"recipe_id"`
	Op       string `json:"op"` // upsert | delete
}
