package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/Yates-Labs/folio/internal/config"
)

var (
	ErrEmptyTexts      = errors.New("no texts provided for embedding")
	ErrMissingAPIKey   = config.ErrMissingAPIKey
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// MaxEmbedRunes caps the text sent per chapter, keeping a full chapter
// document under the embedding model's input limit.
const MaxEmbedRunes = 24000

// EmbeddingRecord is the vector for one input text.
type EmbeddingRecord struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
	Model     string    `json:"model"`
}

// Embedder turns chapter text into vectors.
type Embedder interface {
	// Embed returns one record per text, in input order.
	Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error)

	Model() string
	Dimension() int
}

// OpenAIEmbedder calls the OpenAI embeddings endpoint.
type OpenAIEmbedder struct {
	client    openai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder creates an embedder from the embedding config. The key
// comes from the config, which falls back to OPENAI_API_KEY. Extra request
// options are passed to the client.
func NewOpenAIEmbedder(ec config.EmbeddingConfig, opts ...option.RequestOption) (*OpenAIEmbedder, error) {
	if ec.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for embeddings", ErrMissingAPIKey)
	}
	if ec.Dimension <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, ec.Dimension)
	}

	opts = append([]option.RequestOption{option.WithAPIKey(ec.APIKey)}, opts...)
	return &OpenAIEmbedder{
		client:    openai.NewClient(opts...),
		model:     ec.Model,
		dimension: ec.Dimension,
	}, nil
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed sends texts in one request. Records come back sorted by input
// index; a count or dimension mismatch is an error.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyTexts
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = truncateRunes(t, MaxEmbedRunes)
	}

	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
		Model:          e.model,
		Dimensions:     openai.Int(int64(e.dimension)),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
	}

	records := make([]EmbeddingRecord, 0, len(resp.Data))
	for _, d := range resp.Data {
		idx := int(d.Index)
		if idx < 0 || idx >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, idx)
		}
		if len(d.Embedding) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidDimension, len(d.Embedding), e.dimension)
		}

		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		records = append(records, EmbeddingRecord{
			Text:      texts[idx],
			Embedding: vec,
			Index:     idx,
			Model:     e.model,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })

	return records, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
