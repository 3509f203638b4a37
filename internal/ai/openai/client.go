package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Client is the OpenAI-backed provider for summaries and embeddings.
type Client struct {
	client *goopenai.Client
	logger *logger.Logger
}

// NewClient creates an OpenAI client. baseURL overrides the API endpoint
// when set (proxies, compatible servers) and must include the version
// prefix, e.g. https://proxy.example/v1.
func NewClient(apiKey, baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		logger: log.Named("openai"),
	}
}

// Summarize implements ai.Summarizer via the chat completions API.
func (c *Client) Summarize(ctx context.Context, systemPrompt, transcript string, config ai.SummaryConfig) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: config.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: transcript},
		},
		Temperature: float32(config.Temperature),
		MaxTokens:   config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed implements ai.Embedder via the embeddings API.
func (c *Client) Embed(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := c.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}
	return resp.Data[0].Embedding, nil
}
