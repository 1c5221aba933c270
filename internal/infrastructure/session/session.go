package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/erp/chemstock/internal/domain/identity"
	"github.com/erp/chemstock/internal/infrastructure/config"
)

// ErrNotLoggedIn is returned when an operation needs a session and none is stored
var ErrNotLoggedIn = errors.New("not logged in")

// State is the persisted authentication state
type State struct {
	AccessToken     string         `json:"accessToken"`
	RefreshToken    string         `json:"refreshToken"`
	User            *identity.User `json:"user"`
	IsAuthenticated bool           `json:"isAuthenticated"`
}

// IsEmpty reports whether the state holds nothing worth persisting
func (s State) IsEmpty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil && !s.IsAuthenticated
}

// Backend persists the whole State
type Backend interface {
	Read(ctx context.Context) (State, error)
	Write(ctx context.Context, st State) error
}

// Store is the authentication state shared by the API client and the commands.
// Every setter is a read-modify-write of the backend under one mutex.
type Store struct {
	mu      sync.Mutex
	backend Backend
}

// New creates a store over the given backend
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open creates the store selected by cfg.Backend
func Open(cfg config.SessionConfig, profile string) (*Store, error) {
	switch cfg.Backend {
	case "", "file":
		return New(NewFileStore(cfg.Path)), nil
	case "memory":
		return New(NewMemoryStore()), nil
	case "redis":
		rs, err := NewRedisStore(RedisStoreConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Profile:  profile,
		})
		if err != nil {
			return nil, err
		}
		return New(rs), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

// State returns a snapshot of the stored state
func (s *Store) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Read(ctx)
}

// AccessToken returns the current access token, empty if none
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	st, err := s.State(ctx)
	return st.AccessToken, err
}

// RefreshToken returns the current refresh token, empty if none
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	st, err := s.State(ctx)
	return st.RefreshToken, err
}

// User returns the signed-in user or ErrNotLoggedIn
func (s *Store) User(ctx context.Context) (*identity.User, error) {
	st, err := s.State(ctx)
	if err != nil {
		return nil, err
	}
	if !st.IsAuthenticated || st.User == nil {
		return nil, ErrNotLoggedIn
	}
	return st.User, nil
}

// SetTokens stores a token pair and marks the session authenticated.
// An empty refresh token keeps the one already stored.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	return s.update(ctx, func(st *State) {
		st.AccessToken = access
		if refresh != "" {
			st.RefreshToken = refresh
		}
		st.IsAuthenticated = true
	})
}

// SetUser stores the profile of the signed-in user
func (s *Store) SetUser(ctx context.Context, user *identity.User) error {
	return s.update(ctx, func(st *State) {
		st.User = user
	})
}

// SetAccessToken replaces only the access token
func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.update(ctx, func(st *State) {
		st.AccessToken = token
	})
}

// Logout clears every field of the session
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Write(ctx, State{})
}

// Close releases the backend connection, if it holds one
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Store) update(ctx context.Context, mutate func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.backend.Read(ctx)
	if err != nil {
		return err
	}
	mutate(&st)
	return s.backend.Write(ctx, st)
}

// MemoryStore keeps the state in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	state State
}

// NewMemoryStore creates an empty in-memory backend
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Read returns the stored state
func (m *MemoryStore) Read(_ context.Context) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, nil
}

// Write replaces the stored state
func (m *MemoryStore) Write(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
	return nil
}

// Ensure backends implement Backend
var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*FileStore)(nil)
	_ Backend = (*RedisStore)(nil)
)
