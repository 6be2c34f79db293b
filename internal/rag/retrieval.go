package rag

import (
	"context"
	"fmt"

	"github.com/Yates-Labs/folio/internal/agent"
)

// Retriever provides semantic retrieval over indexed chapters.
type Retriever struct {
	embedder    Embedder
	vectorStore VectorStore
}

// NewRetriever creates a new Retriever instance.
func NewRetriever(embedder Embedder, vectorStore VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder cannot be nil")
	}
	if vectorStore == nil {
		return nil, fmt.Errorf("vector store cannot be nil")
	}

	return &Retriever{
		embedder:    embedder,
		vectorStore: vectorStore,
	}, nil
}

// Retrieve returns the topK chapters most similar to a free-text query.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]ContextChunk, error) {
	return r.RetrieveWithOptions(ctx, query, topK, nil)
}

// RetrieveWithOptions is Retrieve restricted by opts.
func (r *Retriever) RetrieveWithOptions(ctx context.Context, query string, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embedding generated for query")
	}

	chunks, err := r.vectorStore.Search(ctx, embeddings[0].Embedding, topK, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search for query: %w", err)
	}
	return chunks, nil
}

// PromptChunks converts retrieved chunks for agent.ContextPrompt.
func PromptChunks(chunks []ContextChunk) []agent.ContextChunk {
	out := make([]agent.ContextChunk, len(chunks))
	for i, c := range chunks {
		id := c.ChapterID
		if c.Roman != "" {
			id = "Chapter " + c.Roman
		}
		out[i] = agent.ContextChunk{
			ChapterID: id,
			Title:     c.Title,
			Text:      c.Text,
			Score:     c.Score,
		}
	}
	return out
}
