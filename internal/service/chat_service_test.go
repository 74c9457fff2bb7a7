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

func newChatServiceFixture(results []model.SearchResult, llmResponse string) (*fakeIndexClient, *fakeLLM, *fakeConversationRepo, ChatService) {
	index := &fakeIndexClient{results: results}
	embedder := &fakeEmbedder{}
	llmClient := &fakeLLM{response: llmResponse}
	convRepo := newFakeConversationRepo()
	searchSvc := NewSearchService(index, embedder)
	svc := NewChatService(searchSvc, llmClient, convRepo)
	return index, llmClient, convRepo, svc
}

func TestAnswerGroundsPromptInRetrievedRecipes(t *testing.T) {
	results := []model.SearchResult{
		{ID: "1", Title: "Apple Pie", Ingredients: "apples, flour", Score: 2.0},
		{ID: "2", Title: "Banana Bread", Ingredients: "bananas \"ripe\"\nflour", Score: 1.0},
	}
	index, llmClient, _, svc := newChatServiceFixture(results,
		`{"answer":"Use apples.","sources":[{"id":"1","title":"Apple Pie"}]}`)

	answer, err := svc.Answer(context.Background(), 1, nil, "what goes in a pie?")
	require.NoError(t, err)

	// 检索固定走混合模式取 5 条
	assert.Equal(t, []string{"what goes in a pie?/5"}, index.hybrid)

	// 系统提示词内嵌检索到的菜谱 JSON，引号和换行已转义
	require.NotEmpty(t, llmClient.calls)
	system := llmClient.calls[0][0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, `"id": "1", "title": "Apple Pie"`)
	assert.Contains(t, system.Content, `bananas \"ripe\" flour`)
	assert.Contains(t, system.Content, "ONLY the recipes listed below")

	// 最后一条消息是用户问题
	last := llmClient.calls[0][len(llmClient.calls[0])-1]
	assert.Equal(t, "user", last.Role)
	assert.Equal(t, "what goes in a pie?", last.Content)

	require.NotNil(t, answer)
	assert.Equal(t, "Use apples.", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "1", answer.Sources[0].ID)
	assert.Equal(t, "Apple Pie", answer.Sources[0].Title)
}

func TestAnswerCarriesConversationHistory(t *testing.T) {
	_, llmClient, _, svc := newChatServiceFixture(nil, `{"answer":"ok","sources":[]}`)

	conversation := []model.ChatMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi"},
	}
	_, err := svc.Answer(context.Background(), 1, conversation, "next question")
	require.NoError(t, err)

	messages := llmClient.calls[0]
	require.Len(t, messages, 4) // system + 2 history + user
	assert.Equal(t, "hello", messages[1].Content)
	assert.Equal(t, "hi", messages[2].Content)
}

func TestAnswerRejectsBlankQuestion(t *testing.T) {
	index, llmClient, _, svc := newChatServiceFixture(nil, "")

	_, err := svc.Answer(context.Background(), 1, nil, "   ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Empty(t, index.hybrid)
	assert.Empty(t, llmClient.calls)
}

func TestAnswerRejectsMalformedModelOutput(t *testing.T) {
	_, _, _, svc := newChatServiceFixture(nil, "not json at all")

	_, err := svc.Answer(context.Background(), 1, nil, "question")
	assert.Error(t, err)
}

func TestAnswerAppendsHistory(t *testing.T) {
	_, _, convRepo, svc := newChatServiceFixture(nil, `{"answer":"the answer","sources":[]}`)

	_, err := svc.Answer(context.Background(), 42, nil, "question")
	require.NoError(t, err)

	history := convRepo.history[42]
	require.Len(t, history, 2)
	assert.Equal(t, model.ChatMessage{Role: "user", Content: "question"}, history[0])
	assert.Equal(t, model.ChatMessage{Role: "assistant", Content: "the answer"}, history[1])
}

func TestReformulate(t *testing.T) {
	_, llmClient, _, svc := newChatServiceFixture(nil, "  What is in the apple pie recipe?  ")

	question, err := svc.Reformulate(context.Background(), []model.ChatMessage{
		{Role: "user", Content: "tell me about the pie"},
	}, "what's in it?")
	require.NoError(t, err)
	assert.Equal(t, "What is in the apple pie recipe?", question)

	system := llmClient.calls[0][0]
	assert.Contains(t, system.Content, "query rewriting assistant")
	assert.Contains(t, system.Content, "Do NOT answer the question")
}

func TestClearHistory(t *testing.T) {
	_, _, convRepo, svc := newChatServiceFixture(nil, `{"answer":"a","sources":[]}`)

	_, err := svc.Answer(context.Background(), 7, nil, "q")
	require.NoError(t, err)
	require.NotEmpty(t, convRepo.history[7])

	require.NoError(t, svc.ClearHistory(context.Background(), 7))
	assert.Empty(t, convRepo.history[7])
}
