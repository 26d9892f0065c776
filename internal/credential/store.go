package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/behome-bridge/internal/cloud"
)

// Refresher exchanges a refresh token for a new token pair.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (cloud.Token, error)
}

// Logger is the minimal logging interface the store needs.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Mode identifies how the store obtained its credential.
type Mode string

const (
	ModeUnconfigured Mode = "unconfigured"
	ModeStatic       Mode = "static"
	ModeOAuth        Mode = "oauth"
)

// Status is a point-in-time snapshot of the credential for diagnostics.
type Status struct {
	Mode           Mode      `json:"mode"`
	ExpiresAt      time.Time `json:"expires_at,omitempty"`
	ReauthRequired bool      `json:"reauth_required"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Store holds the cloud credential, refreshing it on expiry and persisting
// it to SQLite.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Acquire's release function must be called exactly once.
type Store struct {
	db     *sql.DB
	oauth  Refresher
	logger Logger
	onAuth func() // notified when re-authentication becomes required

	// mu serialises credential usage against refreshes. Requests hold the
	// read lock for their full duration; a refresh takes the write lock.
	mu sync.RWMutex

	staticKey  string
	token      cloud.Token
	privateKey string
	reauth     bool
	updatedAt  time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(logger Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithReauthCallback registers a function invoked when a refresh grant is
// rejected and user interaction is needed. Called outside the store's lock.
func WithReauthCallback(fn func()) Option {
	return func(s *Store) { s.onAuth = fn }
}

// NewStore creates a credential store backed by db.
//
// A non-empty staticKey puts the store in static mode, which takes
// precedence over any persisted OAuth state. Otherwise the store loads a
// previously persisted token pair, if any.
//
// Parameters:
//   - db: open database with the credentials table migrated
//   - oauth: token refresher, required unless staticKey is set
//   - staticKey: user-supplied private key, may be empty
func NewStore(db *sql.DB, oauth Refresher, staticKey string, opts ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		oauth:     oauth,
		staticKey: staticKey,
		logger:    noopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if staticKey != "" {
		return s, nil
	}
	if oauth == nil {
		return nil, fmt.Errorf("credential: refresher is required without a static key")
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// load restores persisted credential state. Missing rows are not an error;
// the store starts unconfigured.
func (s *Store) load() error {
	row := s.db.QueryRow(`
		SELECT access_token, refresh_token, expires_at, private_key, updated_at
		FROM credentials WHERE id = 1
	`)

	var accessToken, refreshToken, privateKey string
	var expiresAt, updatedAt sql.NullString
	err := row.Scan(&accessToken, &refreshToken, &expiresAt, &privateKey, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credential: load: %w", err)
	}

	s.token = cloud.Token{AccessToken: accessToken, RefreshToken: refreshToken}
	s.privateKey = privateKey
	if expiresAt.Valid {
		if t, perr := time.Parse(time.RFC3339, expiresAt.String); perr == nil {
			s.token.ExpiresAt = t
		}
	}
	if updatedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, updatedAt.String); perr == nil {
			s.updatedAt = t
		}
	}
	return nil
}

// persist writes the current token state. Caller must hold the write lock.
func (s *Store) persist() error {
	var expiresAt any
	if !s.token.ExpiresAt.IsZero() {
		expiresAt = s.token.ExpiresAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, access_token, refresh_token, expires_at, private_key, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			private_key = excluded.private_key,
			updated_at = excluded.updated_at
	`, s.token.AccessToken, s.token.RefreshToken, expiresAt, s.privateKey,
		s.updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("credential: persist: %w", err)
	}
	return nil
}

// Acquire returns the private key for an API request. The release function
// must be called when the request completes.
//
// If the OAuth token has expired, Acquire refreshes it first. Concurrent
// callers observing the same expiry trigger a single refresh; the rest
// wait and then use the fresh key.
//
// Returns:
//   - key: the private key to authenticate with
//   - release: must be called exactly once after the request finishes
//   - error: ErrNotConfigured, ErrReauthRequired, or a refresh failure
func (s *Store) Acquire(ctx context.Context) (string, func(), error) {
	for attempt := 0; attempt < 2; attempt++ {
		s.mu.RLock()

		if s.staticKey != "" {
			return s.staticKey, s.mu.RUnlock, nil
		}
		if s.reauth {
			s.mu.RUnlock()
			return "", nil, ErrReauthRequired
		}
		if s.privateKey == "" && s.token.RefreshToken == "" {
			s.mu.RUnlock()
			return "", nil, ErrNotConfigured
		}
		if s.privateKey != "" && !s.token.Expired(time.Now()) {
			return s.privateKey, s.mu.RUnlock, nil
		}

		s.mu.RUnlock()
		if err := s.refresh(ctx); err != nil {
			return "", nil, err
		}
	}
	return "", nil, ErrStaleToken
}

// refresh replaces the expired token pair. It re-checks expiry under the
// write lock so only one caller per expiry hits the token endpoint.
func (s *Store) refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reauth {
		return ErrReauthRequired
	}
	// Another caller won the race and already refreshed.
	if s.privateKey != "" && !s.token.Expired(time.Now()) {
		return nil
	}
	if s.token.RefreshToken == "" {
		return ErrNotConfigured
	}

	s.logger.Info("refreshing cloud token", "expires_at", s.token.ExpiresAt)

	tok, err := s.oauth.Refresh(ctx, s.token.RefreshToken)
	if err != nil {
		if cloud.IsAuthError(err) {
			s.reauth = true
			s.logger.Error("refresh grant rejected, re-authentication required", "error", err)
			s.notifyReauth()
			return fmt.Errorf("%w: %w", ErrReauthRequired, err)
		}
		s.logger.Warn("token refresh failed", "error", err)
		return fmt.Errorf("credential: refresh: %w", err)
	}

	return s.adoptLocked(tok)
}

// adoptLocked installs a new token pair and persists it. Caller must hold
// the write lock.
func (s *Store) adoptLocked(tok cloud.Token) error {
	key, err := cloud.PrivateKeyFromToken(tok.AccessToken)
	if err != nil {
		return fmt.Errorf("credential: %w", err)
	}

	s.token = tok
	s.privateKey = key
	s.reauth = false
	s.updatedAt = time.Now()

	if err := s.persist(); err != nil {
		// The in-memory credential still works; persistence catches up on
		// the next refresh.
		s.logger.Error("failed to persist credential", "error", err)
	}

	s.logger.Info("cloud token refreshed", "expires_at", tok.ExpiresAt)
	return nil
}

// SetToken installs a token pair obtained from an authorization-code
// exchange, clearing any re-authentication flag.
func (s *Store) SetToken(tok cloud.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adoptLocked(tok)
}

// Clear removes the stored credential. Subsequent Acquire calls return
// ErrNotConfigured until a new token is set.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = cloud.Token{}
	s.privateKey = ""
	s.reauth = false
	s.updatedAt = time.Now()

	if _, err := s.db.Exec(`DELETE FROM credentials WHERE id = 1`); err != nil {
		return fmt.Errorf("credential: clear: %w", err)
	}
	return nil
}

// Status returns a snapshot of the credential state for diagnostics.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		ReauthRequired: s.reauth,
		UpdatedAt:      s.updatedAt,
	}
	switch {
	case s.staticKey != "":
		st.Mode = ModeStatic
	case s.privateKey != "" || s.token.RefreshToken != "":
		st.Mode = ModeOAuth
		st.ExpiresAt = s.token.ExpiresAt
	default:
		st.Mode = ModeUnconfigured
	}
	return st
}

func (s *Store) notifyReauth() {
	if s.onAuth != nil {
		go s.onAuth()
	}
}
