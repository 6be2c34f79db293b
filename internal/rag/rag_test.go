package rag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/Yates-Labs/folio/internal/chapter"
	"github.com/Yates-Labs/folio/internal/config"
)

// mockEmbedder implements Embedder for testing
type mockEmbedder struct {
	calls     int
	embedFunc func(ctx context.Context, texts []string) ([]EmbeddingRecord, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
	m.calls++
	if m.embedFunc != nil {
		return m.embedFunc(ctx, texts)
	}
	records := make([]EmbeddingRecord, len(texts))
	for i, text := range texts {
		records[i] = EmbeddingRecord{
			Text:      text,
			Embedding: []float32{float32(len(text)), float32(i), 1},
			Index:     i,
			Model:     "mock",
		}
	}
	return records, nil
}

func (m *mockEmbedder) Model() string  { return "mock" }
func (m *mockEmbedder) Dimension() int { return 3 }

// memoryStore implements VectorStore in memory
type memoryStore struct {
	records  map[string]ChapterRecord
	inserts  int
	flushes  int
	deleted  []string
	queryErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]ChapterRecord)}
}

func (m *memoryStore) Insert(ctx context.Context, records []ChapterRecord) error {
	m.inserts++
	for _, r := range records {
		m.records[r.ChapterID] = r
	}
	return nil
}

func (m *memoryStore) Flush(ctx context.Context) error {
	m.flushes++
	return nil
}

func (m *memoryStore) Search(ctx context.Context, queryVector []float32, topK int, opts *SearchOptions) ([]ContextChunk, error) {
	var chunks []ContextChunk
	for id, r := range m.records {
		if opts != nil && len(opts.ChapterIDs) > 0 && !contains(opts.ChapterIDs, id) {
			continue
		}
		chunks = append(chunks, ContextChunk{
			ChapterID: r.ChapterID,
			Roman:     r.Roman,
			Title:     r.Title,
			Text:      r.Text,
			Score:     1 / (1 + abs(r.Embedding[0]-queryVector[0])),
		})
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

func (m *memoryStore) Query(ctx context.Context, ids []string) (map[string]bool, error) {
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		_, out[id] = m.records[id]
	}
	return out, nil
}

func (m *memoryStore) Delete(ctx context.Context, ids []string) error {
	m.deleted = append(m.deleted, ids...)
	for _, id := range ids {
		delete(m.records, id)
	}
	return nil
}

func (m *memoryStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{"row_count": len(m.records)}, nil
}

func (m *memoryStore) Close() error { return nil }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func abs(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

func testRecord() *chapter.Record {
	return &chapter.Record{
		Roman:              "XIII",
		Title:              "Embracing Ethics and Sustainability",
		BibleQuote:         "The earth is the Lord's",
		BibleReference:     "Psalm 24:1",
		Dropcap:            "F",
		Introduction:       "eel the salon buzz.",
		LearningObjectives: []string{"Eco-friendly practices"},
		ContentSections:    []chapter.Section{{Heading: "Cultivating Eco-Friendly Salons"}},
		QuizFocus:          []string{"LED lighting"},
		Worksheet:          chapter.Worksheet{Title: "Chapter Worksheet"},
	}
}

func TestBuildChapterDocument(t *testing.T) {
	doc := BuildChapterDocument(testRecord())

	if doc.ChapterID != "chapter-xiii" {
		t.Errorf("ChapterID = %q, want chapter-xiii", doc.ChapterID)
	}
	if doc.Roman != "XIII" {
		t.Errorf("Roman = %q, want XIII", doc.Roman)
	}

	for _, want := range []string{
		"Chapter XIII: Embracing Ethics and Sustainability",
		"Quote: The earth is the Lord's (Psalm 24:1)",
		"Introduction: Feel the salon buzz.",
		"Objectives:\n- Eco-friendly practices",
		"Sections:\n- Cultivating Eco-Friendly Salons",
		"Quiz:\n- LED lighting",
		"Worksheet: Chapter Worksheet",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("document text missing %q:\n%s", want, doc.Text)
		}
	}
}

func TestBuildChapterDocument_QuizQuestionsWin(t *testing.T) {
	rec := testRecord()
	rec.QuizQuestions = []chapter.Question{{Question: "Which bulb lasts longest?"}}

	doc := BuildChapterDocument(rec)
	if !strings.Contains(doc.Text, "- Which bulb lasts longest?") {
		t.Errorf("expected quiz question in text:\n%s", doc.Text)
	}
	if strings.Contains(doc.Text, "LED lighting") {
		t.Errorf("quiz focus should be dropped when questions exist:\n%s", doc.Text)
	}
}

func TestBuildChapterDocument_Nil(t *testing.T) {
	if doc := BuildChapterDocument(nil); doc != (ChapterDocument{}) {
		t.Errorf("expected zero document, got %+v", doc)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"chapter-i.yaml":  "roman: I\ntitle: Foundations\n",
		"chapter-ii.json": `{"number": 2, "title": "Sanitation"}`,
		"broken.yaml":     "roman: [",
		"untitled.yaml":   "roman: III\n",
		"notes.txt":       "ignored",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.yaml"), 0755); err != nil {
		t.Fatal(err)
	}

	docs, failed, err := LoadDocuments(dir)
	if err != nil {
		t.Fatalf("LoadDocuments failed: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ChapterID != "chapter-i" || docs[1].ChapterID != "chapter-ii" {
		t.Errorf("unexpected ids: %s, %s", docs[0].ChapterID, docs[1].ChapterID)
	}
	if docs[1].Roman != "II" {
		t.Errorf("expected roman derived from number, got %q", docs[1].Roman)
	}

	if len(failed) != 2 {
		t.Fatalf("expected 2 failures, got %v", failed)
	}
	if err := failed[filepath.Join(dir, "broken.yaml")]; !errors.Is(err, chapter.ErrInvalidRecord) {
		t.Errorf("broken.yaml: expected ErrInvalidRecord, got %v", err)
	}

	if _, _, err := LoadDocuments(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func docs(ids ...string) []ChapterDocument {
	out := make([]ChapterDocument, len(ids))
	for i, id := range ids {
		out[i] = ChapterDocument{ChapterID: id, Roman: strings.ToUpper(id), Title: "Title " + id, Text: "text for " + id}
	}
	return out
}

func TestIndexChapters(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	embedder := &mockEmbedder{}

	stats, err := IndexChapters(ctx, docs("i", "ii", "iii"), embedder, store, IndexOptions{BatchSize: 2, SkipExisting: true})
	if err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}
	if stats.Indexed != 3 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want 3 indexed", stats)
	}
	if embedder.calls != 2 || store.inserts != 2 || store.flushes != 2 {
		t.Errorf("expected 2 batches, got embed=%d insert=%d flush=%d", embedder.calls, store.inserts, store.flushes)
	}
	if got := store.records["ii"]; got.Title != "Title ii" || len(got.Embedding) != 3 {
		t.Errorf("unexpected stored record: %+v", got)
	}

	// Existing chapters are skipped.
	stats, err = IndexChapters(ctx, docs("ii", "iv"), embedder, store, DefaultIndexOptions())
	if err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}
	if stats.Indexed != 1 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 1 indexed 1 skipped", stats)
	}

	// Force reindex deletes first and indexes everything.
	stats, err = IndexChapters(ctx, docs("i", "ii"), embedder, store, IndexOptions{ForceReindex: true, SkipExisting: true})
	if err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}
	if stats.Indexed != 2 || stats.Skipped != 0 {
		t.Errorf("stats = %+v, want 2 indexed", stats)
	}
	if len(store.deleted) != 2 {
		t.Errorf("expected 2 deletions, got %v", store.deleted)
	}
	if len(store.records) != 4 {
		t.Errorf("expected 4 records, got %d", len(store.records))
	}
}

func TestIndexChapters_QueryFailureIndexesAll(t *testing.T) {
	store := newMemoryStore()
	store.records["i"] = ChapterRecord{ChapterID: "i", Embedding: []float32{1, 1, 1}}
	store.queryErr = errors.New("unavailable")

	stats, err := IndexChapters(context.Background(), docs("i", "ii"), &mockEmbedder{}, store, DefaultIndexOptions())
	if err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}
	if stats.Indexed != 2 {
		t.Errorf("expected both chapters indexed, got %+v", stats)
	}
}

func TestIndexChapters_Errors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("rate limited")

	tests := []struct {
		name     string
		embedder Embedder
		store    VectorStore
		wantErr  error
	}{
		{"nil embedder", nil, newMemoryStore(), nil},
		{"nil store", &mockEmbedder{}, nil, nil},
		{
			name: "embed failure",
			embedder: &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
				return nil, boom
			}},
			store:   newMemoryStore(),
			wantErr: boom,
		},
		{
			name: "short embedding batch",
			embedder: &mockEmbedder{embedFunc: func(ctx context.Context, texts []string) ([]EmbeddingRecord, error) {
				return []EmbeddingRecord{}, nil
			}},
			store:   newMemoryStore(),
			wantErr: ErrEmbeddingFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IndexChapters(ctx, docs("i"), tt.embedder, tt.store, DefaultIndexOptions())
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	stats, err := IndexChapters(ctx, nil, nil, nil, DefaultIndexOptions())
	if err != nil || stats.Indexed != 0 {
		t.Errorf("empty input should be a no-op, got %+v %v", stats, err)
	}
}

func TestRetriever(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	embedder := &mockEmbedder{}

	if _, err := IndexChapters(ctx, docs("i", "ii", "xiii"), embedder, store, DefaultIndexOptions()); err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}

	r, err := NewRetriever(embedder, store)
	if err != nil {
		t.Fatalf("NewRetriever failed: %v", err)
	}

	// "text for xiii" has the same length as the query, so it scores highest.
	chunks, err := r.Retrieve(ctx, "text for abcd", 2)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].ChapterID != "xiii" {
		t.Errorf("expected xiii first, got %s", chunks[0].ChapterID)
	}

	filtered, err := r.RetrieveWithOptions(ctx, "anything", 5, &SearchOptions{ChapterIDs: []string{"i"}})
	if err != nil {
		t.Fatalf("RetrieveWithOptions failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ChapterID != "i" {
		t.Errorf("unexpected filtered result: %+v", filtered)
	}

	if _, err := r.Retrieve(ctx, "", 2); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := r.Retrieve(ctx, "q", 0); err == nil {
		t.Error("expected error for non-positive topK")
	}
	if _, err := NewRetriever(nil, store); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(embedder, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestPromptChunks(t *testing.T) {
	got := PromptChunks([]ContextChunk{
		{ChapterID: "chapter-xiii", Roman: "XIII", Title: "Ethics", Text: "t", Score: 0.9},
		{ChapterID: "notes", Title: "Notes", Score: 0.1},
	})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].ChapterID != "Chapter XIII" || got[0].Score != 0.9 {
		t.Errorf("unexpected first chunk: %+v", got[0])
	}
	if got[1].ChapterID != "notes" {
		t.Errorf("expected id fallback, got %q", got[1].ChapterID)
	}
}

func TestChapterFilter(t *testing.T) {
	if got := chapterFilter(nil); got != "" {
		t.Errorf("expected empty filter, got %q", got)
	}
	want := `chapter_id in ["chapter-i", "chapter-ii"]`
	if got := chapterFilter([]string{"chapter-i", "chapter-ii"}); got != want {
		t.Errorf("chapterFilter = %q, want %q", got, want)
	}
}

func TestNewMilvusConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	mc := NewMilvusConfig(cfg)

	if mc.Address != "localhost:19530" {
		t.Errorf("Address = %q", mc.Address)
	}
	if mc.CollectionName != "folio_chapters" {
		t.Errorf("CollectionName = %q", mc.CollectionName)
	}
	if mc.Dimension != 1536 {
		t.Errorf("Dimension = %d, want 1536", mc.Dimension)
	}
	if mc.IndexType != "HNSW" || mc.MetricType != "COSINE" {
		t.Errorf("unexpected index %s/%s", mc.IndexType, mc.MetricType)
	}
}

func TestNewMilvusStore_InvalidDimension(t *testing.T) {
	_, err := NewMilvusStore(context.Background(), MilvusConfig{Address: "localhost:19530"})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}
}

func TestMilvusStore_EmptyInsert(t *testing.T) {
	store := &MilvusStore{config: MilvusConfig{Dimension: 3}}
	if err := store.Insert(context.Background(), nil); err != nil {
		t.Errorf("expected nil for empty records, got %v", err)
	}
	if err := store.Delete(context.Background(), nil); err != nil {
		t.Errorf("expected nil for empty delete, got %v", err)
	}
	exists, err := store.Query(context.Background(), nil)
	if err != nil || len(exists) != 0 {
		t.Errorf("expected empty query result, got %v %v", exists, err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close on unconnected store failed: %v", err)
	}
}

func TestNewOpenAIEmbedder(t *testing.T) {
	_, err := NewOpenAIEmbedder(config.EmbeddingConfig{Model: "text-embedding-3-small", Dimension: 1536})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	_, err = NewOpenAIEmbedder(config.EmbeddingConfig{Model: "m", APIKey: "k"})
	if !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("expected ErrInvalidDimension, got %v", err)
	}

	e, err := NewOpenAIEmbedder(config.EmbeddingConfig{Model: "text-embedding-3-large", Dimension: 3072, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenAIEmbedder failed: %v", err)
	}
	if e.Model() != "text-embedding-3-large" || e.Dimension() != 3072 {
		t.Errorf("unexpected embedder %s/%d", e.Model(), e.Dimension())
	}
	if _, err := e.Embed(context.Background(), nil); !errors.Is(err, ErrEmptyTexts) {
		t.Errorf("expected ErrEmptyTexts, got %v", err)
	}
}

// Integration: requires a running Milvus and an OpenAI key.
func TestMilvusStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if os.Getenv("MILVUS_ADDRESS") == "" || os.Getenv("OPENAI_API_KEY") == "" {
		t.Skip("MILVUS_ADDRESS or OPENAI_API_KEY not set")
	}

	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Milvus.Address = os.Getenv("MILVUS_ADDRESS")
	cfg.Milvus.Collection = "folio_test_integration"
	cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")

	store, err := NewMilvusStore(ctx, NewMilvusConfig(cfg))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	embedder, err := NewOpenAIEmbedder(cfg.Embedding)
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}

	input := []ChapterDocument{BuildChapterDocument(testRecord())}
	if _, err := IndexChapters(ctx, input, embedder, store, IndexOptions{ForceReindex: true}); err != nil {
		t.Fatalf("IndexChapters failed: %v", err)
	}

	r, err := NewRetriever(embedder, store)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := r.Retrieve(ctx, "sustainable salon lighting", 1)
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(chunks) == 0 || chunks[0].ChapterID != "chapter-xiii" {
		t.Errorf("unexpected chunks: %+v", chunks)
	}

	_ = store.Delete(ctx, []string{"chapter-xiii"})
}
