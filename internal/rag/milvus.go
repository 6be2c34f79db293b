package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/Yates-Labs/folio/internal/config"
)

// Common errors for Milvus operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
)

// Collection field names.
const (
	fieldID        = "id"
	fieldChapterID = "chapter_id"
	fieldRoman     = "roman"
	fieldTitle     = "title"
	fieldText      = "text"
	fieldEmbedding = "embedding"
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string
	Dimension      int
	IndexType      string // default: "HNSW"
	MetricType     string // default: "COSINE"

	// HNSW index parameters
	M              int
	EfConstruction int
	Ef             int
}

// NewMilvusConfig derives the store configuration from the application
// config. The dimension must match the embedder's.
func NewMilvusConfig(cfg *config.Config) MilvusConfig {
	return MilvusConfig{
		Address:        cfg.Milvus.Address,
		CollectionName: cfg.Milvus.Collection,
		Dimension:      cfg.Embedding.Dimension,
		IndexType:      "HNSW",
		MetricType:     "COSINE",
		M:              16,
		EfConstruction: 256,
		Ef:             64,
	}
}

// MilvusStore implements VectorStore using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the collection exists.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig) (*MilvusStore, error) {
	if cfg.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: cfg,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the collection with schema if it doesn't exist
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !has {
		if err := m.client.CreateCollection(ctx, m.schema(), entity.DefaultShardNumber); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
		if err != nil {
			return fmt.Errorf("failed to create index config: %w", err)
		}
		if err := m.client.CreateIndex(ctx, m.config.CollectionName, fieldEmbedding, idx, false); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

func (m *MilvusStore) schema() *entity.Schema {
	return &entity.Schema{
		CollectionName: m.config.CollectionName,
		Description:    "folio chapter embeddings",
		AutoID:         true,
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     true,
			},
			{
				Name:       fieldChapterID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "128"},
			},
			{
				Name:       fieldRoman,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "16"},
			},
			{
				Name:       fieldTitle,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
			{
				Name:     fieldEmbedding,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.config.Dimension),
				},
			},
		},
	}
}

// Insert adds chapter records. An empty slice is a no-op.
func (m *MilvusStore) Insert(ctx context.Context, records []ChapterRecord) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	romans := make([]string, len(records))
	titles := make([]string, len(records))
	texts := make([]string, len(records))
	embeddings := make([][]float32, len(records))

	for i, r := range records {
		if len(r.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: chapter %s has %d, expected %d", ErrInvalidDimension, r.ChapterID, len(r.Embedding), m.config.Dimension)
		}
		ids[i] = r.ChapterID
		romans[i] = r.Roman
		titles[i] = r.Title
		texts[i] = r.Text
		embeddings[i] = r.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnVarChar(fieldChapterID, ids),
		entity.NewColumnVarChar(fieldRoman, romans),
		entity.NewColumnVarChar(fieldTitle, titles),
		entity.NewColumnVarChar(fieldText, texts),
		entity.NewColumnFloatVector(fieldEmbedding, m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}
	return nil
}

// Flush persists pending inserts.
func (m *MilvusStore) Flush(ctx context.Context) error {
	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}
	return nil
}

// Search performs top-K similarity search with optional filtering
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}

	expr := ""
	if opts != nil {
		expr = chapterFilter(opts.ChapterIDs)
	}

	sp, err := entity.NewIndexHNSWSearchParam(m.config.Ef)
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil,
		expr,
		[]string{fieldChapterID, fieldRoman, fieldTitle, fieldText},
		[]entity.Vector{entity.FloatVector(queryVector)},
		fieldEmbedding,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []ContextChunk{}, nil
	}

	res := results[0]
	chunks := make([]ContextChunk, res.ResultCount)
	for i := range chunks {
		chunks[i].Score = res.Scores[i]
	}
	for _, field := range res.Fields {
		col, ok := field.(*entity.ColumnVarChar)
		if !ok {
			continue
		}
		data := col.Data()
		for i := range chunks {
			switch col.Name() {
			case fieldChapterID:
				chunks[i].ChapterID = data[i]
			case fieldRoman:
				chunks[i].Roman = data[i]
			case fieldTitle:
				chunks[i].Title = data[i]
			case fieldText:
				chunks[i].Text = data[i]
			}
		}
	}

	return chunks, nil
}

// Query reports which chapter IDs exist in the store
func (m *MilvusStore) Query(ctx context.Context, chapterIDs []string) (map[string]bool, error) {
	exists := make(map[string]bool, len(chapterIDs))
	if len(chapterIDs) == 0 {
		return exists, nil
	}
	for _, id := range chapterIDs {
		exists[id] = false
	}

	results, err := m.client.Query(ctx, m.config.CollectionName, nil, chapterFilter(chapterIDs), []string{fieldChapterID})
	if err != nil {
		return nil, fmt.Errorf("failed to query chapters: %w", err)
	}

	for _, column := range results {
		if column.Name() != fieldChapterID {
			continue
		}
		if varchar, ok := column.(*entity.ColumnVarChar); ok {
			for _, id := range varchar.Data() {
				exists[id] = true
			}
		}
	}
	return exists, nil
}

// Delete removes records by chapter ID
func (m *MilvusStore) Delete(ctx context.Context, chapterIDs []string) error {
	if len(chapterIDs) == 0 {
		return nil
	}
	if err := m.client.Delete(ctx, m.config.CollectionName, "", chapterFilter(chapterIDs)); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// GetStats returns collection statistics
func (m *MilvusStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	return map[string]interface{}{
		"collection": m.config.CollectionName,
		"row_count":  stats["row_count"],
	}, nil
}

// Close releases the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}

// chapterFilter builds a boolean expression matching the given chapter IDs.
func chapterFilter(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fmt.Sprintf("%s in [%s]", fieldChapterID, strings.Join(quoted, ", "))
}
