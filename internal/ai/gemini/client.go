package gemini

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Client is the Gemini-backed provider for summaries and embeddings.
type Client struct {
	client *genai.Client
	logger *logger.Logger
}

// NewClient creates a Gemini client against the public Gemini API backend.
func NewClient(ctx context.Context, apiKey string, log *logger.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{
		client: client,
		logger: log.Named("gemini"),
	}, nil
}

// Summarize implements ai.Summarizer.
func (c *Client) Summarize(ctx context.Context, systemPrompt, transcript string, config ai.SummaryConfig) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(config.Temperature)),
		MaxOutputTokens: int32(config.MaxTokens),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, config.Model, genai.Text(transcript), genCfg)
	if err != nil {
		return "", fmt.Errorf("content generation failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("no content in gemini response")
	}
	return text, nil
}

// Embed implements ai.Embedder.
func (c *Client) Embed(ctx context.Context, text, model string) ([]float32, error) {
	resp, err := c.client.Models.EmbedContent(ctx, model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("no embedding in gemini response")
	}
	return resp.Embeddings[0].Values, nil
}
