// Package connection manages a user's stored provider credentials.
// The API secret is encrypted at rest by the vault and only decrypted for
// the duration of one outbound request.
package connection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clipforge/clipforge-api/internal/mediacloud"
	"github.com/clipforge/clipforge-api/internal/vault"
)

// Static errors for connection operations.
var (
	// ErrNotFound is returned when a connection cannot be found by id.
	ErrNotFound = errors.New("connection: not found")
	// ErrAccountIDRequired is returned when a connection has no account id.
	ErrAccountIDRequired = errors.New("connection: account ID is required")
	// ErrAPIKeyRequired is returned when a connection has no API key.
	ErrAPIKeyRequired = errors.New("connection: API key is required")
)

// Connection is one user's credentials for a provider account.
// EncryptedSecret holds the vault envelope; the plaintext secret is never
// stored.
type Connection struct {
	ID              string
	UserID          string
	AccountID       string
	APIKey          string
	EncryptedSecret string
	Name            string
	Libraries       []string
	CreatedAt       time.Time
}

// Store defines the interface for connection persistence. The account
// CRUD surface is owned by an external collaborator; this core only needs
// lookup and registration.
type Store interface {
	// Save persists a connection.
	Save(ctx context.Context, conn *Connection) error

	// FindByID retrieves a connection by id for the given user.
	// Returns ErrNotFound if it does not exist or belongs to another user.
	FindByID(ctx context.Context, userID, id string) (*Connection, error)

	// ListByUser returns all connections owned by the user.
	ListByUser(ctx context.Context, userID string) ([]*Connection, error)
}

// Service registers connections and resolves their credentials through
// the vault.
type Service struct {
	store Store
	vault *vault.Vault
}

// NewService creates a connection Service.
func NewService(store Store, v *vault.Vault) *Service {
	return &Service{store: store, vault: v}
}

// Register encrypts the plaintext secret and persists a new connection.
func (s *Service) Register(ctx context.Context, userID, accountID, apiKey, apiSecret, name string) (*Connection, error) {
	if accountID == "" {
		return nil, ErrAccountIDRequired
	}
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	sealed, err := s.vault.Encrypt(apiSecret)
	if err != nil {
		return nil, err
	}

	conn := &Connection{
		ID:              uuid.NewString(),
		UserID:          userID,
		AccountID:       accountID,
		APIKey:          apiKey,
		EncryptedSecret: sealed,
		Name:            name,
		CreatedAt:       time.Now(),
	}
	if err := s.store.Save(ctx, conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// List returns the user's connections.
func (s *Service) List(ctx context.Context, userID string) ([]*Connection, error) {
	return s.store.ListByUser(ctx, userID)
}

// Resolve looks up a connection and decrypts its secret into provider
// credentials. An empty decrypted secret means the stored envelope is
// unusable; the caller gets ErrCredentialsMissing before any network call.
func (s *Service) Resolve(ctx context.Context, userID, connectionID string) (*Connection, mediacloud.Credentials, error) {
	conn, err := s.store.FindByID(ctx, userID, connectionID)
	if err != nil {
		return nil, mediacloud.Credentials{}, err
	}

	secret := s.vault.Decrypt(conn.EncryptedSecret)
	if secret == "" {
		return nil, mediacloud.Credentials{}, mediacloud.ErrCredentialsMissing
	}

	return conn, mediacloud.Credentials{
		AccountID: conn.AccountID,
		APIKey:    conn.APIKey,
		APISecret: secret,
	}, nil
}

// Compile-time check that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewMemoryStore creates a new in-memory connection store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{conns: make(map[string]*Connection)}
}

// Save persists a connection to the in-memory store.
func (s *MemoryStore) Save(_ context.Context, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *conn
	s.conns[conn.ID] = &clone
	return nil
}

// FindByID retrieves a connection scoped to its owning user.
func (s *MemoryStore) FindByID(_ context.Context, userID, id string) (*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.conns[id]
	if !ok || conn.UserID != userID {
		return nil, ErrNotFound
	}
	clone := *conn
	return &clone, nil
}

// ListByUser returns all connections owned by the user.
func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]*Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0)
	for _, conn := range s.conns {
		if conn.UserID == userID {
			clone := *conn
			result = append(result, &clone)
		}
	}
	return result, nil
}
