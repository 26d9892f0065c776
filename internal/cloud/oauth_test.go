package cloud

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrivateKeyFromToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		want    string
		wantErr bool
	}{
		{"normal token", "aaaaSECRETKEYbbbb", "SECRETKEY", false},
		{"minimum length", "aaaaXbbbb", "X", false},
		{"too short", "aaaabbbb", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PrivateKeyFromToken(tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrTokenTooShort) {
					t.Errorf("got err %v, want ErrTokenTooShort", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOAuth_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "aaaaNEWKEYbbbb", "refresh_token": "new-refresh",
			"token_type": "bearer", "expires_in": 3600}`))
	}))
	defer srv.Close()

	o := NewOAuth("secret", srv.URL)
	tok, err := o.Refresh(context.Background(), "old-refresh")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if tok.AccessToken != "aaaaNEWKEYbbbb" {
		t.Errorf("access token = %q", tok.AccessToken)
	}
	if tok.RefreshToken != "new-refresh" {
		t.Errorf("refresh token = %q", tok.RefreshToken)
	}
	if time.Until(tok.ExpiresAt) < 30*time.Minute {
		t.Errorf("expiry too soon: %v", tok.ExpiresAt)
	}
}

func TestOAuth_Refresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "aaaaKEYbbbb", "token_type": "bearer", "expires_in": 3600}`))
	}))
	defer srv.Close()

	o := NewOAuth("secret", srv.URL)
	tok, err := o.Refresh(context.Background(), "keep-me")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if tok.RefreshToken != "keep-me" {
		t.Errorf("refresh token = %q, want carried forward", tok.RefreshToken)
	}
}

func TestOAuth_Refresh_RejectedGrantIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer srv.Close()

	o := NewOAuth("secret", srv.URL)
	_, err := o.Refresh(context.Background(), "revoked")
	if !IsAuthError(err) {
		t.Errorf("got %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error should carry endpoint body: %v", err)
	}
}

func TestOAuth_Refresh_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := NewOAuth("secret", srv.URL)
	if _, err := o.Refresh(context.Background(), "rt"); !IsTransientError(err) {
		t.Errorf("got %v, want transient error", err)
	}
}

func TestOAuth_Refresh_NoRefreshToken(t *testing.T) {
	o := NewOAuth("secret", "http://unused")
	if _, err := o.Refresh(context.Background(), ""); !IsAuthError(err) {
		t.Errorf("got %v, want auth error", err)
	}
}

func TestToken_Expired(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		tok  Token
		want bool
	}{
		{"fresh", Token{ExpiresAt: now.Add(time.Hour)}, false},
		{"lapsed", Token{ExpiresAt: now.Add(-time.Minute)}, true},
		{"about to lapse", Token{ExpiresAt: now.Add(10 * time.Second)}, true},
		{"no expiry", Token{}, false},
	}

	for _, tt := range tests {
		if got := tt.tok.Expired(now); got != tt.want {
			t.Errorf("%s: Expired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
