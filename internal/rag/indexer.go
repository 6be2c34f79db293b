package rag

import (
	"context"
	"fmt"
)

// IndexStats reports what an indexing run did.
type IndexStats struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
}

// IndexChapters embeds chapter documents in batches and stores them.
// With ForceReindex existing entries are deleted first; with SkipExisting
// chapters already present are left alone.
func IndexChapters(
	ctx context.Context,
	docs []ChapterDocument,
	embedder Embedder,
	store VectorStore,
	opts IndexOptions,
) (IndexStats, error) {
	var stats IndexStats
	if len(docs) == 0 {
		return stats, nil
	}
	if embedder == nil {
		return stats, fmt.Errorf("embedder cannot be nil")
	}
	if store == nil {
		return stats, fmt.Errorf("vector store cannot be nil")
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultIndexOptions().BatchSize
	}

	if opts.ForceReindex {
		if err := store.Delete(ctx, documentIDs(docs)); err != nil {
			return stats, fmt.Errorf("failed to delete existing chapters: %w", err)
		}
	}

	pending := docs
	if opts.SkipExisting && !opts.ForceReindex {
		pending = filterNewDocuments(ctx, docs, store)
		stats.Skipped = len(docs) - len(pending)
	}

	for start := 0; start < len(pending); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(pending))
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, doc := range batch {
			texts[i] = doc.Text
		}

		embeddings, err := embedder.Embed(ctx, texts)
		if err != nil {
			return stats, fmt.Errorf("failed to generate embeddings for batch starting at %d: %w", start, err)
		}
		if len(embeddings) != len(batch) {
			return stats, fmt.Errorf("%w: got %d embeddings for %d chapters", ErrEmbeddingFailed, len(embeddings), len(batch))
		}

		records := make([]ChapterRecord, len(batch))
		for i, doc := range batch {
			records[i] = ChapterRecord{
				ChapterID: doc.ChapterID,
				Roman:     doc.Roman,
				Title:     doc.Title,
				Text:      doc.Text,
				Embedding: embeddings[i].Embedding,
			}
		}

		if err := store.Insert(ctx, records); err != nil {
			return stats, fmt.Errorf("failed to insert batch starting at %d: %w", start, err)
		}
		if err := store.Flush(ctx); err != nil {
			return stats, fmt.Errorf("failed to flush batch starting at %d: %w", start, err)
		}
		stats.Indexed += len(batch)
	}

	return stats, nil
}

func documentIDs(docs []ChapterDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ChapterID
	}
	return ids
}

// filterNewDocuments drops documents already in the store. A failed lookup
// keeps every document.
func filterNewDocuments(ctx context.Context, docs []ChapterDocument, store VectorStore) []ChapterDocument {
	existing, err := store.Query(ctx, documentIDs(docs))
	if err != nil {
		return docs
	}

	fresh := make([]ChapterDocument, 0, len(docs))
	for _, d := range docs {
		if !existing[d.ChapterID] {
			fresh = append(fresh, d)
		}
	}
	return fresh
}
