// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-chat-go/internal/config"
	"ai-chat-go/pkg/log"
)

// ErrUpstream 标记所有来自模型后端的失败（网络、非 200、流中断）。
// 调用方用 errors.Is(err, ErrUpstream) 区分上游失败与本地错误。
var ErrUpstream = errors.New("llm upstream error")

// Client defines the interface for an LLM client.
type Client interface {
	// Complete 以完整历史调用聊天接口，一次性返回完成的回复文本。
	// 失败时不产生任何部分结果。
	Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error)
	// Stream 以完整历史调用聊天接口，返回一个拉取式的分块流。
	// 分块按产出顺序逐个通过 Recv 交付，已交付的分块不因后续失败而失效。
	Stream(ctx context.Context, messages []Message, gen *GenerationParams) (Stream, error)
}

// Stream 是一次流式聊天调用的读取端。
// Recv 返回下一个非空文本分块；流正常结束返回 io.EOF，
// 中途失败返回包裹了 ErrUpstream 的错误。
type Stream interface {
	Recv() (string, error)
	Close() error
}

type openAIClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client for an OpenAI-compatible chat endpoint.
func NewClient(cfg config.LLMConfig) Client {
	return &openAIClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

// 非流式响应：choices[0].message.content 为完整回复。
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// 流式响应：choices[0].delta.content 为单个增量分块。
type chatStreamResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Complete calls the chat completions API and returns the finished reply.
func (c *openAIClient) Complete(ctx context.Context, messages []Message, gen *GenerationParams) (string, error) {
	resp, err := c.post(ctx, messages, gen, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read chat response: %v", ErrUpstream, err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: failed to unmarshal chat response: %v", ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response contains no choices", ErrUpstream)
	}
	return parsed.Choices[0].Message.Content, nil
}

// Stream calls the chat completions API with stream:true and hands the
// response body to a ChatStream for incremental consumption.
func (c *openAIClient) Stream(ctx context.Context, messages []Message, gen *GenerationParams) (Stream, error) {
	resp, err := c.post(ctx, messages, gen, true)
	if err != nil {
		return nil, err
	}
	return &ChatStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

func (c *openAIClient) post(ctx context.Context, messages []Message, gen *GenerationParams, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Stream:   stream,
	}
	c.applyGeneration(&reqBody, gen)

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call chat api: %v", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%w: chat api returned non-200 status: %s, body: %s", ErrUpstream, resp.Status, string(bodyBytes))
	}
	return resp, nil
}

// applyGeneration 注入生成参数，传参优先于配置文件里的非零值。
func (c *openAIClient) applyGeneration(reqBody *chatRequest, gen *GenerationParams) {
	if gen != nil {
		reqBody.Temperature = gen.Temperature
		reqBody.TopP = gen.TopP
		reqBody.MaxTokens = gen.MaxTokens
		return
	}
	if c.cfg.Generation.Temperature != 0 {
		t := c.cfg.Generation.Temperature
		reqBody.Temperature = &t
	}
	if c.cfg.Generation.TopP != 0 {
		p := c.cfg.Generation.TopP
		reqBody.TopP = &p
	}
	if c.cfg.Generation.MaxTokens != 0 {
		m := c.cfg.Generation.MaxTokens
		reqBody.MaxTokens = &m
	}
}

// ChatStream 是一次流式聊天调用的拉取式读取端。
// 分块按上游产出顺序交付，一次一个，天然形成背压。
type ChatStream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Recv 返回下一个非空文本分块。
// 流正常结束（收到 [DONE] 或连接干净关闭）时返回 io.EOF；
// 中途失败时返回包裹了 ErrUpstream 的错误，此前已返回的分块仍然有效。
func (s *ChatStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.finish()
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("%w: failed to read from stream: %v", ErrUpstream, err)
		}

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			s.finish()
			return "", io.EOF
		}

		var chunk chatStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// 单条坏记录不终止整个流
			log.Debugf("skipping malformed stream record: %v", err)
			continue
		}
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			return chunk.Choices[0].Delta.Content, nil
		}
	}
}

// Close 提前终止流并释放底层连接。Recv 读完后无需再调用。
func (s *ChatStream) Close() error {
	if s.done {
		return nil
	}
	s.finish()
	return nil
}

func (s *ChatStream) finish() {
	s.done = true
	_ = s.body.Close()
}
