package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/mpataki/playcheck/internal/models"
)

// ErrNotFound is returned when no submission with the given ID is stored.
var ErrNotFound = errors.New("submission not found")

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	decoder, _ = zstd.NewReader(nil)
)

// Storage keeps completed submissions so their feedback can be reviewed
// offline. Only records returned by a successful submit are stored.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		created_at TIMESTAMP,
		saved_at TIMESTAMP NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		playground_count INTEGER NOT NULL DEFAULT 0,
		toy_count INTEGER NOT NULL DEFAULT 0,
		record BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_saved ON submissions(saved_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveSubmission stores sub, replacing any earlier copy with the same ID.
func (s *Storage) SaveSubmission(sub *models.Submission) error {
	if sub == nil || sub.ID == "" {
		return fmt.Errorf("save submission: missing id")
	}
	data, err := sonic.Marshal(sub)
	if err != nil {
		return fmt.Errorf("save submission: encode: %w", err)
	}
	record := encoder.EncodeAll(data, nil)

	var createdAt sql.NullTime
	if !sub.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: sub.CreatedAt.UTC(), Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO submissions (id, created_at, saved_at, description, playground_count, toy_count, record)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			saved_at = excluded.saved_at,
			description = excluded.description,
			playground_count = excluded.playground_count,
			toy_count = excluded.toy_count,
			record = excluded.record`,
		sub.ID, createdAt, time.Now().UTC(), sub.ActivityDescription,
		len(sub.PlaygroundImageURLs), len(sub.ToyImageURLs), record,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	return nil
}

func (s *Storage) GetSubmission(id string) (*models.Submission, error) {
	var record []byte
	err := s.db.QueryRow(`SELECT record FROM submissions WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	data, err := decoder.DecodeAll(record, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress submission %s: %w", id, err)
	}
	var sub models.Submission
	if err := sonic.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("decode submission %s: %w", id, err)
	}
	return &sub, nil
}

// ListSubmissions returns the most recently saved entries first.
func (s *Storage) ListSubmissions(limit int) ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, created_at, saved_at, description, playground_count, toy_count
		 FROM submissions ORDER BY saved_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var createdAt sql.NullTime

		err := rows.Scan(&e.ID, &createdAt, &e.SavedAt, &e.Description, &e.PlaygroundCount, &e.ToyCount)
		if err != nil {
			return nil, err
		}
		if createdAt.Valid {
			e.CreatedAt = createdAt.Time
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (s *Storage) DeleteSubmission(id string) error {
	result, err := s.db.Exec(`DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
