package sqlite

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/voxnote/voxnote/internal/notes"
	"github.com/voxnote/voxnote/pkg/logger"
)

// Import logger functions
var (
	String = logger.String
	Error  = logger.Error
)

// NotesStorage handles persistence of saved notes. It implements notes.Store.
type NotesStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewNotesStorage creates a SQLite notes storage on an open database,
// creating the schema if it does not exist yet.
func NewNotesStorage(db *sql.DB, log *logger.Logger) (*NotesStorage, error) {
	storage := &NotesStorage{
		db:     db,
		logger: log.Named("sqlite-notes"),
	}

	if err := storage.initDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize notes storage: %w", err)
	}
	return storage, nil
}

// initDB initializes the database tables
func (s *NotesStorage) initDB() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			content TEXT NOT NULL,
			summary TEXT,
			is_summarized BOOLEAN NOT NULL DEFAULT 0,
			embedding BLOB,
			embedding_model TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notes table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create created_at index: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_notes_is_summarized ON notes(is_summarized)`)
	if err != nil {
		return fmt.Errorf("failed to create is_summarized index: %w", err)
	}

	return nil
}

// Insert stores a new note.
func (s *NotesStorage) Insert(note *notes.Note) error {
	_, err := s.db.Exec(
		`INSERT INTO notes
		(id, created_at, content, summary, is_summarized, embedding, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID,
		note.CreatedAt.Format(time.RFC3339),
		note.Content,
		note.Summary,
		note.Summarized,
		encodeVector(note.Embedding),
		note.EmbeddingModel,
	)
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

// GetByID returns one note, or nil when no note has that ID.
func (s *NotesStorage) GetByID(id string) (*notes.Note, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, content, summary, is_summarized, embedding, embedding_model
		FROM notes
		WHERE id = ?`,
		id,
	)

	note, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	return note, nil
}

// List returns notes newest-first with pagination.
func (s *NotesStorage) List(limit, offset int) ([]*notes.Note, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, content, summary, is_summarized, embedding, embedding_model
		FROM notes
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// Delete removes a note and reports whether it existed.
func (s *NotesStorage) Delete(id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete note: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		s.logger.Debug("Deleted note", String("id", id))
	}
	return affected > 0, nil
}

// Count returns the total number of stored notes.
func (s *NotesStorage) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notes: %w", err)
	}
	return count, nil
}

// GetUnsummarized retrieves a batch of notes the enricher has not handled
// yet, oldest first so nothing starves.
func (s *NotesStorage) GetUnsummarized(batchSize int) ([]*notes.Note, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, content, summary, is_summarized, embedding, embedding_model
		FROM notes
		WHERE is_summarized = 0
		ORDER BY created_at ASC
		LIMIT ?`,
		batchSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsummarized notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// GetEmbedded returns all notes carrying an embedding produced by the given
// model. Vectors from other models are excluded because their spaces are not
// comparable.
func (s *NotesStorage) GetEmbedded(model string) ([]*notes.Note, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, content, summary, is_summarized, embedding, embedding_model
		FROM notes
		WHERE embedding IS NOT NULL AND length(embedding) > 0 AND embedding_model = ?
		ORDER BY created_at DESC`,
		model,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embedded notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

// UpdateSummary stores a generated summary and marks the note summarized.
func (s *NotesStorage) UpdateSummary(id, summary string) error {
	_, err := s.db.Exec(
		`UPDATE notes
		SET summary = ?, is_summarized = 1
		WHERE id = ?`,
		summary,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update note summary: %w", err)
	}
	return nil
}

// MarkSummarized marks a note handled without a summary, so a note that can
// never be summarized is not retried forever.
func (s *NotesStorage) MarkSummarized(id string) error {
	_, err := s.db.Exec(`UPDATE notes SET is_summarized = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark note summarized: %w", err)
	}
	return nil
}

// UpdateEmbedding stores a content vector and the model that produced it.
func (s *NotesStorage) UpdateEmbedding(id string, vec []float32, model string) error {
	_, err := s.db.Exec(
		`UPDATE notes
		SET embedding = ?, embedding_model = ?
		WHERE id = ?`,
		encodeVector(vec),
		model,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update note embedding: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*notes.Note, error) {
	var note notes.Note
	var createdAt string
	var summary, embeddingModel sql.NullString
	var embedding []byte

	if err := row.Scan(
		&note.ID,
		&createdAt,
		&note.Content,
		&summary,
		&note.Summarized,
		&embedding,
		&embeddingModel,
	); err != nil {
		return nil, err
	}

	var err error
	note.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	if summary.Valid {
		note.Summary = summary.String
	}
	if embeddingModel.Valid {
		note.EmbeddingModel = embeddingModel.String
	}
	note.Embedding = decodeVector(embedding)

	return &note, nil
}

func scanNotes(rows *sql.Rows) ([]*notes.Note, error) {
	var records []*notes.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		records = append(records, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return records, nil
}

// encodeVector packs an embedding as little-endian float32 bytes for the
// BLOB column. A nil or empty vector encodes as nil so the column stays NULL.
func encodeVector(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector. Trailing bytes that do not
// fill a float are ignored.
func decodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	if n == 0 {
		return nil
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
