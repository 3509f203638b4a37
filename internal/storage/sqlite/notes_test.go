package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/pkg/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "console"})
	if err != nil {
		t.Fatalf("failed to build test logger: %v", err)
	}
	return log
}

func newTestStorage(t *testing.T) *NotesStorage {
	t.Helper()
	log := newTestLogger(t)

	db, err := Open(filepath.Join(t.TempDir(), "test.db"), log)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	storage, err := NewNotesStorage(db, log)
	if err != nil {
		t.Fatalf("failed to create notes storage: %v", err)
	}
	return storage
}

// baseTime has no sub-second part so it survives the RFC3339 column format.
var baseTime = time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

func mustInsert(t *testing.T, s *NotesStorage, id string, createdAt time.Time, content string) {
	t.Helper()
	if err := s.Insert(&notes.Note{ID: id, CreatedAt: createdAt, Content: content}); err != nil {
		t.Fatalf("Insert(%s) failed: %v", id, err)
	}
}

func TestInsertAndGetByID(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "n1", baseTime, "pick up milk on the way home")

	got, err := storage.GetByID("n1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetByID returned nil for an existing note")
	}

	if got.ID != "n1" {
		t.Errorf("ID = %q, want n1", got.ID)
	}
	if !got.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, baseTime)
	}
	if got.Content != "pick up milk on the way home" {
		t.Errorf("Content = %q", got.Content)
	}
	if got.Summarized {
		t.Error("fresh note should not be marked summarized")
	}
	if got.Summary != "" {
		t.Errorf("Summary = %q, want empty", got.Summary)
	}
	if got.Embedding != nil {
		t.Errorf("Embedding = %v, want nil", got.Embedding)
	}
}

func TestGetByIDMissing(t *testing.T) {
	storage := newTestStorage(t)

	got, err := storage.GetByID("nope")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got != nil {
		t.Fatalf("GetByID = %+v, want nil for a missing note", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "a", baseTime, "first")
	mustInsert(t, storage, "b", baseTime.Add(time.Minute), "second")
	mustInsert(t, storage, "c", baseTime.Add(2*time.Minute), "third")

	list, err := storage.List(10, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("List returned %d notes, want 3", len(list))
	}
	for i, want := range []string{"c", "b", "a"} {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}

	page, err := storage.List(1, 1)
	if err != nil {
		t.Fatalf("List with offset failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != "b" {
		t.Fatalf("List(1, 1) = %v, want just note b", page)
	}
}

func TestDelete(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "n1", baseTime, "delete me")

	deleted, err := storage.Delete("n1")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Delete = false for an existing note")
	}

	deleted, err = storage.Delete("n1")
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if deleted {
		t.Error("Delete = true for an already deleted note")
	}
}

func TestCount(t *testing.T) {
	storage := newTestStorage(t)

	count, err := storage.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("Count = %d on an empty store", count)
	}

	mustInsert(t, storage, "a", baseTime, "one")
	mustInsert(t, storage, "b", baseTime.Add(time.Minute), "two")

	count, err = storage.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("Count = %d, want 2", count)
	}
}

func TestGetUnsummarizedOldestFirst(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "a", baseTime, "oldest")
	mustInsert(t, storage, "b", baseTime.Add(time.Minute), "middle")
	mustInsert(t, storage, "c", baseTime.Add(2*time.Minute), "newest")

	batch, err := storage.GetUnsummarized(2)
	if err != nil {
		t.Fatalf("GetUnsummarized failed: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("GetUnsummarized returned %d notes, want batch of 2", len(batch))
	}
	if batch[0].ID != "a" || batch[1].ID != "b" {
		t.Fatalf("batch order = [%s %s], want oldest first [a b]", batch[0].ID, batch[1].ID)
	}
}

func TestUpdateSummaryRemovesFromSweep(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "n1", baseTime, "call the plumber tomorrow morning")

	if err := storage.UpdateSummary("n1", "Call the plumber."); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}

	got, err := storage.GetByID("n1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Summary != "Call the plumber." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if !got.Summarized {
		t.Error("note should be marked summarized after UpdateSummary")
	}

	batch, err := storage.GetUnsummarized(10)
	if err != nil {
		t.Fatalf("GetUnsummarized failed: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("GetUnsummarized still returns %d notes after summarizing", len(batch))
	}
}

func TestMarkSummarizedWithoutSummary(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "n1", baseTime, "unintelligible mumbling")

	if err := storage.MarkSummarized("n1"); err != nil {
		t.Fatalf("MarkSummarized failed: %v", err)
	}

	got, err := storage.GetByID("n1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.Summarized {
		t.Error("note should be marked summarized")
	}
	if got.Summary != "" {
		t.Errorf("Summary = %q, want empty", got.Summary)
	}

	batch, err := storage.GetUnsummarized(10)
	if err != nil {
		t.Fatalf("GetUnsummarized failed: %v", err)
	}
	if len(batch) != 0 {
		t.Fatal("marked note should not appear in the sweep again")
	}
}

func TestUpdateEmbeddingAndGetEmbedded(t *testing.T) {
	storage := newTestStorage(t)
	mustInsert(t, storage, "a", baseTime, "embedded note")
	mustInsert(t, storage, "b", baseTime.Add(time.Minute), "never embedded")

	vec := []float32{0.25, -1.5, 3.75}
	if err := storage.UpdateEmbedding("a", vec, "text-embedding-3-small"); err != nil {
		t.Fatalf("UpdateEmbedding failed: %v", err)
	}

	got, err := storage.GetByID("a")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(got.Embedding) != len(vec) {
		t.Fatalf("Embedding has %d dims, want %d", len(got.Embedding), len(vec))
	}
	for i := range vec {
		if got.Embedding[i] != vec[i] {
			t.Errorf("Embedding[%d] = %v, want %v", i, got.Embedding[i], vec[i])
		}
	}
	if got.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("EmbeddingModel = %q", got.EmbeddingModel)
	}

	embedded, err := storage.GetEmbedded("text-embedding-3-small")
	if err != nil {
		t.Fatalf("GetEmbedded failed: %v", err)
	}
	if len(embedded) != 1 || embedded[0].ID != "a" {
		t.Fatalf("GetEmbedded = %v, want just note a", embedded)
	}

	// Vectors from a different model are not comparable and must not be
	// returned as candidates.
	other, err := storage.GetEmbedded("some-other-model")
	if err != nil {
		t.Fatalf("GetEmbedded failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("GetEmbedded for a different model returned %d notes", len(other))
	}
}

func TestVectorCodecEmpty(t *testing.T) {
	if encodeVector(nil) != nil {
		t.Error("encodeVector(nil) should be nil so the column stays NULL")
	}
	if encodeVector([]float32{}) != nil {
		t.Error("encodeVector(empty) should be nil so the column stays NULL")
	}
	if decodeVector(nil) != nil {
		t.Error("decodeVector(nil) should be nil")
	}
}
