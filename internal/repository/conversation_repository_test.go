package repository

import (
	"context"
	"testing"
	"time"

	"ai-chat-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMsg(role, content string) model.ChatMessage {
	return model.ChatMessage{Role: role, Content: content, Timestamp: time.Now()}
}

func TestMemoryRepository_GetHistoryUnseenID(t *testing.T) {
	repo := NewMemoryConversationRepository()

	history, err := repo.GetHistory(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryRepository_AppendPreservesOrder(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()
	convID := "11111111-1111-1111-1111-111111111111"

	require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleUser, "你好")))
	require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleAssistant, "你好，有什么可以帮你？")))
	require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleUser, "介绍一下你自己")))

	history, err := repo.GetHistory(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "你好", history[0].Content)
	assert.Equal(t, model.RoleAssistant, history[1].Role)
	assert.Equal(t, "介绍一下你自己", history[2].Content)
}

func TestMemoryRepository_ConversationIsolation(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	require.NoError(t, repo.AppendMessage(ctx, "conv-a", newMsg(model.RoleUser, "A 的消息")))
	require.NoError(t, repo.AppendMessage(ctx, "conv-b", newMsg(model.RoleUser, "B 的消息")))

	historyA, err := repo.GetHistory(ctx, "conv-a")
	require.NoError(t, err)
	historyB, err := repo.GetHistory(ctx, "conv-b")
	require.NoError(t, err)

	require.Len(t, historyA, 1)
	require.Len(t, historyB, 1)
	assert.Equal(t, "A 的消息", historyA[0].Content)
	assert.Equal(t, "B 的消息", historyB[0].Content)
}

func TestMemoryRepository_ClearThenReuse(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()
	convID := "22222222-2222-2222-2222-222222222222"

	// 4 条历史，清空后读取应为空
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleUser, "问题")))
		require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleAssistant, "回答")))
	}
	require.NoError(t, repo.ClearHistory(ctx, convID))

	history, err := repo.GetHistory(ctx, convID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// 清空后再追加，得到全新的单条历史
	require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleUser, "新的开始")))
	history, err = repo.GetHistory(ctx, convID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "新的开始", history[0].Content)
}

func TestMemoryRepository_ClearIsIdempotent(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()

	assert.NoError(t, repo.ClearHistory(ctx, "never-seen"))
	assert.NoError(t, repo.ClearHistory(ctx, "never-seen"))
}

func TestMemoryRepository_GetHistoryReturnsCopy(t *testing.T) {
	repo := NewMemoryConversationRepository()
	ctx := context.Background()
	convID := "33333333-3333-3333-3333-333333333333"

	require.NoError(t, repo.AppendMessage(ctx, convID, newMsg(model.RoleUser, "原始内容")))

	history, err := repo.GetHistory(ctx, convID)
	require.NoError(t, err)
	history[0].Content = "被外部篡改"

	fresh, err := repo.GetHistory(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "原始内容", fresh[0].Content)
}
