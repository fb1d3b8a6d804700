package compile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteRecordStore implements RecordStore.
var _ RecordStore = (*SQLiteRecordStore)(nil)

const recordSchema = `
CREATE TABLE IF NOT EXISTS compilation_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	connection_id TEXT NOT NULL,
	connection_name TEXT NOT NULL DEFAULT '',
	public_id TEXT NOT NULL,
	url TEXT NOT NULL DEFAULT '',
	secure_url TEXT NOT NULL DEFAULT '',
	archive_url TEXT NOT NULL DEFAULT '',
	source_public_ids TEXT NOT NULL DEFAULT '[]',
	image_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_compilation_records_user
	ON compilation_records (user_id, created_at);
`

// SQLiteRecordStore persists compilation records in SQLite.
type SQLiteRecordStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteRecordStore opens or creates the record database at path.
func OpenSQLiteRecordStore(path string) (*SQLiteRecordStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("compile: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("compile: apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(recordSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("compile: init schema: %w", err)
	}

	return &SQLiteRecordStore{db: db, path: path}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}

// Save writes one record. Records are insert-only.
func (s *SQLiteRecordStore) Save(ctx context.Context, record *Record) error {
	sources, err := json.Marshal(record.SourcePublicIDs)
	if err != nil {
		return fmt.Errorf("compile: marshal source ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilation_records
			(id, user_id, connection_id, connection_name, public_id, url,
			 secure_url, archive_url, source_public_ids, image_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.UserID,
		record.ConnectionID,
		record.ConnectionName,
		record.PublicID,
		record.URL,
		record.SecureURL,
		record.ArchiveURL,
		string(sources),
		record.ImageCount,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("compile: insert record: %w", err)
	}
	return nil
}

// FindByID retrieves a record by id.
func (s *SQLiteRecordStore) FindByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, connection_id, connection_name, public_id, url,
		       secure_url, archive_url, source_public_ids, image_count, created_at
		FROM compilation_records WHERE id = ?`, id)

	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	return record, err
}

// ListByUser returns the user's records, newest first.
func (s *SQLiteRecordStore) ListByUser(ctx context.Context, userID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, connection_id, connection_name, public_id, url,
		       secure_url, archive_url, source_public_ids, image_count, created_at
		FROM compilation_records
		WHERE user_id = ?
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("compile: query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("compile: iterate records: %w", err)
	}
	return result, nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var record Record
	var sources string
	var createdAt string

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ConnectionID,
		&record.ConnectionName,
		&record.PublicID,
		&record.URL,
		&record.SecureURL,
		&record.ArchiveURL,
		&sources,
		&record.ImageCount,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sources), &record.SourcePublicIDs); err != nil {
		return nil, fmt.Errorf("compile: unmarshal source ids: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("compile: parse created_at: %w", err)
	}
	record.CreatedAt = ts
	return &record, nil
}
