package compile

import (
	"context"
	"errors"
)

// Static errors for compilation persistence.
var (
	// ErrNotFound is returned when a compilation cannot be found by id.
	ErrNotFound = errors.New("compile: compilation not found")
	// ErrRecordNotFound is returned when a record cannot be found by id.
	ErrRecordNotFound = errors.New("compile: record not found")
)

// Repository tracks in-flight compilation aggregates.
type Repository interface {
	// Save persists a compilation. Existing ids are updated.
	Save(ctx context.Context, comp *Compilation) error

	// FindByID retrieves a compilation by id.
	// Returns ErrNotFound if it does not exist.
	FindByID(ctx context.Context, id string) (*Compilation, error)
}

// RecordStore is the persistence sink for completed compilation records.
type RecordStore interface {
	// Save writes one record; records are immutable once written.
	Save(ctx context.Context, record *Record) error

	// FindByID retrieves a record by id.
	// Returns ErrRecordNotFound if it does not exist.
	FindByID(ctx context.Context, id string) (*Record, error)

	// ListByUser returns all records owned by a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Record, error)
}
