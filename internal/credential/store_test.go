package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nerrad567/behome-bridge/internal/cloud"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE credentials (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TEXT,
		private_key TEXT NOT NULL DEFAULT '',
		updated_at TEXT
	) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

// fakeRefresher counts refresh calls and returns canned results.
type fakeRefresher struct {
	mu    sync.Mutex
	calls int32
	token cloud.Token
	err   error
	delay time.Duration
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (cloud.Token, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return cloud.Token{}, f.err
	}
	return f.token, nil
}

func (f *fakeRefresher) callCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

func freshToken() cloud.Token {
	return cloud.Token{
		AccessToken:  "aaaaFRESHKEYbbbb",
		RefreshToken: "rt-next",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

func TestStore_StaticMode(t *testing.T) {
	db := setupTestDB(t)
	s, err := NewStore(db, nil, "my-static-key")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	key, release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer release()

	if key != "my-static-key" {
		t.Errorf("key = %q", key)
	}
	if st := s.Status(); st.Mode != ModeStatic {
		t.Errorf("mode = %q, want static", st.Mode)
	}
}

func TestStore_Unconfigured(t *testing.T) {
	db := setupTestDB(t)
	s, err := NewStore(db, &fakeRefresher{}, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if _, _, err := s.Acquire(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
	if st := s.Status(); st.Mode != ModeUnconfigured {
		t.Errorf("mode = %q, want unconfigured", st.Mode)
	}
}

func TestStore_RequiresRefresherWithoutStaticKey(t *testing.T) {
	db := setupTestDB(t)
	if _, err := NewStore(db, nil, ""); err == nil {
		t.Fatal("expected an error")
	}
}

func TestStore_SetTokenThenAcquire(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{}
	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	if err := s.SetToken(freshToken()); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	key, release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	release()

	if key != "FRESHKEY" {
		t.Errorf("key = %q, want derived FRESHKEY", key)
	}
	if got := ref.callCount(); got != 0 {
		t.Errorf("refresh calls = %d, want 0 for a fresh token", got)
	}
}

func TestStore_RefreshOnExpiry(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{token: freshToken()}
	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	expired := cloud.Token{
		AccessToken:  "aaaaOLDKEYbbbb",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	if err := s.SetToken(expired); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	key, release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	release()

	if key != "FRESHKEY" {
		t.Errorf("key = %q, want refreshed key", key)
	}
	if got := ref.callCount(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

func TestStore_SingleFlightRefresh(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{token: freshToken(), delay: 50 * time.Millisecond}
	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	expired := cloud.Token{
		AccessToken:  "aaaaOLDKEYbbbb",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	if err := s.SetToken(expired); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, release, err := s.Acquire(context.Background())
			if err != nil {
				errs <- err
				return
			}
			defer release()
			if key != "FRESHKEY" {
				errs <- fmt.Errorf("key = %q", key)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Acquire: %v", err)
	}

	if got := ref.callCount(); got != 1 {
		t.Errorf("refresh calls = %d, want exactly 1", got)
	}
}

func TestStore_RefreshWaitsForInFlightRequests(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{token: freshToken()}
	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if err := s.SetToken(freshToken()); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	// Hold a request open, then start a refresh. The refresh must not
	// complete until the request releases.
	_, release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.refresh(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("refresh completed while a request was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh did not proceed after request released")
	}
}

func TestStore_RejectedGrantRequiresReauth(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{err: fmt.Errorf("%w: invalid_grant", cloud.ErrAuth)}

	notified := make(chan struct{}, 1)
	s, err := NewStore(db, ref, "", WithReauthCallback(func() {
		notified <- struct{}{}
	}))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	expired := cloud.Token{
		AccessToken:  "aaaaOLDKEYbbbb",
		RefreshToken: "rt-revoked",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	if err := s.SetToken(expired); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	if _, _, err := s.Acquire(context.Background()); !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("got %v, want ErrReauthRequired", err)
	}

	// Later acquisitions fail fast without hitting the endpoint again.
	if _, _, err := s.Acquire(context.Background()); !errors.Is(err, ErrReauthRequired) {
		t.Errorf("got %v, want ErrReauthRequired", err)
	}
	if got := ref.callCount(); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if st := s.Status(); !st.ReauthRequired {
		t.Error("status should report reauth required")
	}

	select {
	case <-notified:
	case <-time.After(time.Second):
		t.Error("reauth callback not invoked")
	}

	// A fresh token clears the flag.
	if err := s.SetToken(freshToken()); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if _, release, err := s.Acquire(context.Background()); err != nil {
		t.Errorf("Acquire() after new token: %v", err)
	} else {
		release()
	}
}

func TestStore_TransientRefreshFailureDoesNotRequireReauth(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{err: fmt.Errorf("%w: connection refused", cloud.ErrTransient)}
	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}

	expired := cloud.Token{
		AccessToken:  "aaaaOLDKEYbbbb",
		RefreshToken: "rt-old",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	if err := s.SetToken(expired); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	if _, _, err := s.Acquire(context.Background()); !cloud.IsTransientError(err) {
		t.Fatalf("got %v, want transient error", err)
	}
	if st := s.Status(); st.ReauthRequired {
		t.Error("transient failure must not require reauth")
	}

	// The next acquisition retries the refresh.
	ref.mu.Lock()
	ref.err = nil
	ref.token = freshToken()
	ref.mu.Unlock()

	key, release, err := s.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after recovery: %v", err)
	}
	release()
	if key != "FRESHKEY" {
		t.Errorf("key = %q", key)
	}
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	db := setupTestDB(t)
	ref := &fakeRefresher{}

	s, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if err := s.SetToken(freshToken()); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	// Same database, new store instance.
	s2, err := NewStore(db, ref, "")
	if err != nil {
		t.Fatalf("NewStore() reload error: %v", err)
	}

	key, release, err := s2.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() after reload: %v", err)
	}
	release()
	if key != "FRESHKEY" {
		t.Errorf("key = %q, want persisted key", key)
	}
	if got := ref.callCount(); got != 0 {
		t.Errorf("refresh calls = %d, want 0", got)
	}
}

func TestStore_Clear(t *testing.T) {
	db := setupTestDB(t)
	s, err := NewStore(db, &fakeRefresher{}, "")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	if err := s.SetToken(freshToken()); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, _, err := s.Acquire(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}

	// Cleared state survives a reload.
	s2, err := NewStore(db, &fakeRefresher{}, "")
	if err != nil {
		t.Fatalf("NewStore() reload error: %v", err)
	}
	if _, _, err := s2.Acquire(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("after reload: got %v, want ErrNotConfigured", err)
	}
}
