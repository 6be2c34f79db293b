// Package rag indexes chapter records in a vector store so chat sessions can
// be grounded in the book's existing chapters.
package rag

import (
	"context"
)

// ChapterDocument is the indexable text form of one chapter record.
type ChapterDocument struct {
	ChapterID string `json:"chapter_id"`
	Roman     string `json:"roman"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
}

// ChapterRecord is a chapter document with its embedding, as stored.
type ChapterRecord struct {
	ChapterID string
	Roman     string
	Title     string
	Text      string
	Embedding []float32
}

// ContextChunk is a retrieved chapter with its similarity score.
type ContextChunk struct {
	ChapterID string  `json:"chapter_id"`
	Roman     string  `json:"roman"`
	Title     string  `json:"title"`
	Text      string  `json:"text"`
	Score     float32 `json:"score"`
}

// SearchOptions narrows a vector search.
type SearchOptions struct {
	ChapterIDs []string `json:"chapter_ids,omitempty"`
}

// VectorStore defines the interface for vector storage and similarity search
// over chapter embeddings.
type VectorStore interface {
	// Insert stores chapter records in a single operation
	Insert(ctx context.Context, records []ChapterRecord) error

	// Flush ensures all pending data is persisted
	Flush(ctx context.Context) error

	// Search performs top-K similarity search with optional filtering
	Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error)

	// Query reports which chapter IDs exist in the store
	Query(ctx context.Context, chapterIDs []string) (map[string]bool, error)

	// Delete removes records by chapter ID
	Delete(ctx context.Context, chapterIDs []string) error

	// GetStats returns collection statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	Close() error
}

// IndexOptions provides configuration for chapter indexing
type IndexOptions struct {
	// BatchSize determines how many chapters to embed at once
	BatchSize int

	// ForceReindex deletes and re-inserts chapters even if they exist
	ForceReindex bool

	// SkipExisting leaves chapters already in the store untouched
	SkipExisting bool
}

// DefaultIndexOptions returns the indexing defaults.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		BatchSize:    10,
		ForceReindex: false,
		SkipExisting: true,
	}
}
