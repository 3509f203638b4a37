package ai

import "context"

// SummaryConfig holds the per-request generation parameters.
type SummaryConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Summarizer condenses a finished transcript into a few sentences. The
// system prompt carries the formatting instructions; the transcript goes in
// as the user message.
type Summarizer interface {
	Summarize(ctx context.Context, systemPrompt, transcript string, config SummaryConfig) (string, error)
}

// Embedder maps text into the provider's vector space. Vectors from
// different models are not comparable, so the notes store only searches
// embeddings produced by the configured model.
type Embedder interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
}

// Provider bundles the two capabilities a configured backend offers.
type Provider interface {
	Summarizer
	Embedder
}
