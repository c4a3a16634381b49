// Package embedding turns asset text into vectors and ranks assets against
// free-text queries by cosine similarity.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/minime/inspirations/internal/genai"
)

const (
	// Provider is the provider recorded on stored embedding rows.
	Provider = "gemini"

	// RunProvider is the provider recorded on ai_runs rows for embedding
	// runs, kept distinct from tagging runs.
	RunProvider = "gemini-embed"

	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "gemini-embedding-001"
)

// Task types the embedContent endpoint distinguishes. Stored asset text is
// embedded as a document, search queries as a query.
const (
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// Embedder generates embedding vectors for text. Document and query
// embeddings are separate because some backends produce task-tuned vectors.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float64, error)
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	Model() string
}

// GeminiEmbedder calls the embedContent endpoint directly, passing the
// retrieval task type with each request.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

var _ Embedder = (*GeminiEmbedder)(nil)

// NewGeminiEmbedder wraps a genai client. An empty model selects
// DefaultModel.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiEmbedder{client: client, model: model}
}

func (e *GeminiEmbedder) Model() string { return e.model }

func (e *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	return e.client.EmbedText(ctx, e.model, text, TaskRetrievalDocument)
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	return e.client.EmbedText(ctx, e.model, text, TaskRetrievalQuery)
}

// LangchainEmbedder generates vectors through langchaingo's googleai
// backend. It has no task-type control, so documents and queries share the
// same embedding space.
type LangchainEmbedder struct {
	emb   embeddings.Embedder
	model string
}

var _ Embedder = (*LangchainEmbedder)(nil)

// NewLangchainEmbedder creates a googleai-backed embedder. An empty model
// selects DefaultModel.
func NewLangchainEmbedder(ctx context.Context, apiKey, model string) (*LangchainEmbedder, error) {
	if model == "" {
		model = DefaultModel
	}
	llm, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create googleai client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create googleai embedder: %w", err)
	}
	return &LangchainEmbedder{emb: emb, model: model}, nil
}

func (e *LangchainEmbedder) Model() string { return e.model }

func (e *LangchainEmbedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.emb.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed document: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return toFloat64(vectors[0]), nil
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	vector, err := e.emb.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return toFloat64(vector), nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
