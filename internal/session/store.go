// Package session holds the authenticated user's token and profile.
// The token is persisted in SQLite so it survives restarts; the profile is
// kept in memory only and refetched with the stored token when absent.
// If opening the DB fails, the store falls back to in-memory storage.
package session

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/folio-go/internal/errs"
	"github.com/comigor/folio-go/internal/logger"
	"github.com/comigor/folio-go/internal/model"
)

// TokenKey is the fixed key the credential is stored under.
const TokenKey = "authToken"

// ProfileFetcher resolves the profile for the current token.
type ProfileFetcher interface {
	CurrentUser(ctx context.Context) (*model.Profile, error)
}

// Store is the single session context shared by every command.
type Store struct {
	path string

	mu    sync.Mutex
	token string // in-memory copy, authoritative when db is nil
	user  *model.Profile

	dbOnce  sync.Once
	db      *sql.DB
	initErr error
}

// Open creates a store persisted at path. An empty path keeps everything in
// memory. The database is opened lazily on first use.
func Open(path string) *Store {
	return &Store{path: path}
}

// initDB lazily opens the SQLite database and creates the kv table if it doesn't exist.
func (s *Store) initDB() {
	if s.path == "" {
		s.initErr = errors.New("no session db path")
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.initErr = err
		logger.L.Warn("session dir creation failed; using in-memory session", "error", err)
		return
	}
	db, err := sql.Open("sqlite", "file:"+s.path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		s.initErr = err
		logger.L.Warn("sqlite open failed; using in-memory session", "error", err)
		return
	}
	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS kv (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`); err != nil {
		s.initErr = err
		db.Close()
		logger.L.Warn("sqlite table creation failed; using in-memory session", "error", err)
		return
	}
	var token string
	err = db.QueryRow(`SELECT value FROM kv WHERE key = ?;`, TokenKey).Scan(&token)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.L.Warn("failed to read stored token", "error", err)
	}
	s.token = token
	s.db = db
	logger.L.Debug("sqlite session DB initialized", "path", s.path)
}

func (s *Store) ensure() {
	s.dbOnce.Do(s.initDB)
}

// Token returns the stored credential.
func (s *Store) Token() (string, bool) {
	s.ensure()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// SetToken persists the credential. The in-memory copy changes only once the
// write succeeded.
func (s *Store) SetToken(token string) error {
	s.ensure()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO kv (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value;`, TokenKey, token)
		if err != nil {
			logger.L.Error("failed to store token in sqlite", "error", err)
			return err
		}
	}
	s.token = token
	return nil
}

// User returns the loaded profile, or nil.
func (s *Store) User() *model.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetUser replaces the in-memory profile.
func (s *Store) SetUser(p *model.Profile) {
	s.mu.Lock()
	s.user = p
	s.mu.Unlock()
}

// Snapshot returns the current session.
func (s *Store) Snapshot() model.Session {
	token, _ := s.Token()
	return model.Session{Token: token, User: s.User()}
}

// Clear forgets the profile and purges the persisted token.
func (s *Store) Clear() error {
	s.ensure()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?;`, TokenKey)
	return err
}

// Restore rehydrates the profile from the stored token. A failed fetch purges
// the token and the caller is treated as unauthenticated.
func (s *Store) Restore(ctx context.Context, f ProfileFetcher) (*model.Profile, error) {
	if _, ok := s.Token(); !ok {
		return nil, errs.ErrNoSession
	}
	if u := s.User(); u != nil {
		return u, nil
	}
	u, err := f.CurrentUser(ctx)
	if err != nil {
		logger.L.Warn("failed to fetch user; purging token", "error", err)
		if cerr := s.Clear(); cerr != nil {
			logger.L.Error("failed to purge token", "error", cerr)
		}
		return nil, &errs.AuthError{Message: "Your session has expired. Please log in again.", Err: err}
	}
	s.SetUser(u)
	return u, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
