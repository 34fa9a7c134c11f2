package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"github.com/Saksham338101/menu-scanner1/internal/config"
)

// ErrNilEmbedConfig is returned when nil embed config is provided.
var ErrNilEmbedConfig = errors.New("embedder config is nil")

// ErrNoEmbedding is returned when the API answers without a vector.
var ErrNoEmbedding = errors.New("embedder returned no embedding")

const (
	// DefaultEmbedBatch is how many dish documents go into one request.
	DefaultEmbedBatch = 64
	// maxDishChars bounds a dish document before it is sent; menu
	// descriptions are short and anything longer is OCR noise.
	maxDishChars = 2000
)

// Embedder turns dish documents and search queries into vectors through an
// OpenAI-compatible embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
	batch      int
}

// NewEmbedder creates an Embedder. Model is optional; embedding routers pick
// their own.
func NewEmbedder(cfg *config.ProviderConfig) (*Embedder, error) {
	if cfg == nil {
		return nil, ErrNilEmbedConfig
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("embedder base_url is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batch:      DefaultEmbedBatch,
	}, nil
}

// EmbedBatch embeds texts in input order, splitting them into requests of at
// most DefaultEmbedBatch documents. Every returned vector is non-empty.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batch {
		end := min(start+e.batch, len(texts))
		vecs, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed documents %d-%d: %w", start, end-1, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = dishInput(t)
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      input,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			continue
		}
		v := d.Embedding
		// Some routers ignore the dimensions field.
		if e.dimensions > 0 && len(v) > e.dimensions {
			v = v[:e.dimensions]
		}
		vecs[d.Index] = v
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w for %q", ErrNoEmbedding, texts[i])
		}
	}
	return vecs, nil
}

// dishInput collapses whitespace and caps the length of a dish document.
func dishInput(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxDishChars {
		return s
	}
	cut := maxDishChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Embed embeds a single query or document. Its signature matches
// chromem.EmbeddingFunc.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, ErrNoEmbedding
	}
	return vecs[0], nil
}

// Model returns the configured embedding model name.
func (e *Embedder) Model() string {
	return e.model
}
