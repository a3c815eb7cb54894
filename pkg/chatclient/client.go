// Package chatclient 是聊天服务的 Go 客户端 SDK，
// 包含流式响应（Server-Sent Events）的读取端实现。
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// DefaultEmptyReplyPlaceholder 在整个流结束仍未累积到任何文本时用于展示。
// 与服务端落库用的占位文本相互独立。
const DefaultEmptyReplyPlaceholder = "（没有收到回复）"

const sentinel = "[DONE]"

// TransportError 表示网络或传输层失败（非 200 状态、连接中断）。
// Partial 保留失败前已累积的文本，不随错误一起丢弃。
type TransportError struct {
	StatusCode int // 0 表示还没拿到 HTTP 状态
	Partial    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat transport error: status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("chat transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client 是聊天服务的 HTTP 客户端。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option 配置 Client 的可选行为。
type Option func(*Client)

// WithHTTPClient 替换底层的 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient 创建一个指向 baseURL 的聊天客户端。
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConversationID 生成一个新的会话标识。
func NewConversationID() string {
	return uuid.NewString()
}

type chatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID string `json:"conversationID"`
}

// Chat 发起一轮非流式聊天，返回完整回复。
func (c *Client) Chat(ctx context.Context, conversationID, prompt string) (string, error) {
	resp, err := c.postJSON(ctx, "/api/chat", chatRequest{Prompt: prompt, ConversationID: conversationID})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(resp, "")
	}

	var parsed struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode reply: %w", err)}
	}
	return parsed.Reply, nil
}

// Reset 清空一个会话的历史，幂等。
func (c *Client) Reset(ctx context.Context, conversationID string) error {
	resp, err := c.postJSON(ctx, "/api/reset", map[string]string{"conversationID": conversationID})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newStatusError(resp, "")
	}
	return nil
}

// ChatStream 发起一轮流式聊天。
// 每解析出一个分块就把当前累积文本通过 onUpdate 通知调用方（onUpdate 可为 nil），
// 返回最终文本；整个流没有产出任何文本时返回占位文本。
// 传输失败时返回 *TransportError，其中保留失败前已累积的部分文本。
func (c *Client) ChatStream(ctx context.Context, conversationID, prompt string, onUpdate func(accumulated string)) (string, error) {
	resp, err := c.postJSON(ctx, "/api/chat/stream", chatRequest{Prompt: prompt, ConversationID: conversationID})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newStatusError(resp, "")
	}

	reader := newEventReader(resp.Body)
	var accumulated strings.Builder
	for {
		text, err := reader.Next()
		if err == io.EOF {
			// 正常结束：收到 [DONE]，或底层流干净关闭（缺哨兵不视为错误）
			break
		}
		if err != nil {
			return accumulated.String(), &TransportError{
				StatusCode: resp.StatusCode,
				Partial:    accumulated.String(),
				Err:        err,
			}
		}
		accumulated.WriteString(text)
		if onUpdate != nil {
			onUpdate(accumulated.String())
		}
	}

	if accumulated.Len() == 0 {
		return DefaultEmptyReplyPlaceholder, nil
	}
	return accumulated.String(), nil
}

func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

func newStatusError(resp *http.Response, partial string) *TransportError {
	bodyBytes, _ := io.ReadAll(resp.Body)
	return &TransportError{
		StatusCode: resp.StatusCode,
		Partial:    partial,
		Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, string(bodyBytes)),
	}
}
