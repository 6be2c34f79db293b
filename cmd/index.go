package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Yates-Labs/folio/internal/config"
	"github.com/Yates-Labs/folio/internal/rag"
)

var (
	indexDataDir string
	indexReindex bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index chapter data files for retrieval-grounded chat",
	Long: `Embed every chapter data file in a directory and store it in Milvus, so
chat --context can ground answers in the book's chapters.

Required environment variables:
  OPENAI_API_KEY     - OpenAI API key for embeddings
  MILVUS_ADDRESS     - Milvus server address (default: localhost:19530)

Examples:
  folio index --data-dir data/chapters
  folio index --data-dir data/chapters --reindex`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVar(&indexDataDir, "data-dir", "data/chapters", "Directory of chapter data files")
	indexCmd.Flags().BoolVar(&indexReindex, "reindex", false, "Replace chapters that are already indexed")
}

// openIndex connects the embedder and the Milvus store described by cfg.
func openIndex(ctx context.Context, cfg *config.Config) (*rag.OpenAIEmbedder, *rag.MilvusStore, error) {
	embedder, err := rag.NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	store, err := rag.NewMilvusStore(ctx, rag.NewMilvusConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return embedder, store, nil
}

func runIndex(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	docs, failed, err := rag.LoadDocuments(indexDataDir)
	if err != nil {
		return err
	}
	for path, ferr := range failed {
		warn(out, "skipped %s: %v", path, ferr)
	}
	if len(docs) == 0 {
		warn(out, "no chapter data files found in %s", indexDataDir)
		return nil
	}
	step(out, "Indexing %d chapters into %s...", len(docs), cfg.Milvus.Collection)

	embedder, store, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := rag.DefaultIndexOptions()
	opts.ForceReindex = indexReindex
	stats, err := rag.IndexChapters(ctx, docs, embedder, store, opts)
	if err != nil {
		return err
	}

	if st, err := store.GetStats(ctx); err == nil {
		logger.Debug("collection stats", zap.Any("stats", st))
	}
	ok(out, "Indexed %d chapters, %d already present", stats.Indexed, stats.Skipped)
	return nil
}
