package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConversationID(t *testing.T) {
	id := NewConversationID()
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.NotEqual(t, id, NewConversationID())
}

func TestChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "你好", req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"你好！"}`))
	}))
	defer server.Close()

	reply, err := NewClient(server.URL).Chat(context.Background(), NewConversationID(), "你好")
	require.NoError(t, err)
	assert.Equal(t, "你好！", reply)
}

func TestChat_Non200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Something went wrong"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Chat(context.Background(), NewConversationID(), "hi")
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusInternalServerError, terr.StatusCode)
}

func TestReset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reset", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Chat history cleared"}`))
	}))
	defer server.Close()

	assert.NoError(t, NewClient(server.URL).Reset(context.Background(), NewConversationID()))
}

func TestChatStream_AccumulatesInOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, fragment := range []string{"Hel", "lo"} {
			_, _ = fmt.Fprintf(w, "data: {\"text\":%q}\n\n", fragment)
			flusher.Flush()
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	var updates []string
	final, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "hi", func(accumulated string) {
		updates = append(updates, accumulated)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", final)
	assert.Equal(t, []string{"Hel", "Hello"}, updates)
}

func TestChatStream_MalformedRecordTolerated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"text\":\"a\"}\n\n")
		_, _ = fmt.Fprint(w, "data: <<garbage>>\n\n")
		_, _ = fmt.Fprint(w, "data: {\"text\":\"b\"}\n\n")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	final, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", final)
}

func TestChatStream_EmptyStreamYieldsPlaceholder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	final, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEmptyReplyPlaceholder, final)
}

func TestChatStream_MissingSentinelIsNormalEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"text\":\"完整回复\"}\n\n")
		// 连接正常关闭，但没有 [DONE]
	}))
	defer server.Close()

	final, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "完整回复", final)
}

func TestChatStream_Non200IsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"errors":{"prompt":"Prompt is required."}}`, http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "", nil)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusBadRequest, terr.StatusCode)
}

func TestChatStream_AbortMidStreamPreservesPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = fmt.Fprint(w, "data: {\"text\":\"Par\"}\n\n")
		w.(http.Flusher).Flush()
		// 直接掐断连接
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	final, err := NewClient(server.URL).ChatStream(context.Background(), NewConversationID(), "hi", nil)
	require.Error(t, err)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	// 失败前累积的文本保留在错误里，不丢弃
	assert.Equal(t, "Par", terr.Partial)
	assert.Equal(t, "Par", final)
}

func TestChatStream_ServerUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1") // 不可达
	_, err := client.ChatStream(context.Background(), NewConversationID(), "hi", nil)

	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 0, terr.StatusCode)
}
