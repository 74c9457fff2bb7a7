package model

// ChatMessage 表示对话历史中的一条角色消息。
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatSource 标注回答引用了哪条菜谱。
type ChatSource struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ChatAnswer 是 AI 助手返回的结构化回答。
type ChatAnswer struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}
