package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// OAuth2 constants fixed by the BeHome cloud. The client ID is shared by
// all installations; only the client secret is per-account.
const (
	DefaultClientID = "88ac425b4558463aa813aed1690db730"
	AuthorizeURL    = "https://cloud.bemfa.com/web/mi/index.html"
	DefaultTokenURL = "https://pro.bemfa.com/vs/speaker/v1/v2SpeakerToken"
)

// minTokenLength is the shortest access token the private key can be
// derived from: the key is the token with its first and last four
// characters removed, so anything at or below eight characters is empty.
const minTokenLength = 9

// ErrTokenTooShort indicates the cloud issued an access token too short
// to derive a private key from.
var ErrTokenTooShort = errors.New("cloud: access token too short")

// Token is an OAuth2 token pair with its expiry.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the token has passed its expiry, with a small
// margin so a token about to lapse is treated as already stale.
func (t Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(30 * time.Second).Before(t.ExpiresAt)
}

// OAuth performs authorization-code exchange and token refresh against
// the BeHome cloud.
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuth creates an OAuth helper.
//
// Parameters:
//   - clientSecret: the per-account secret issued by the cloud
//   - tokenURL: token endpoint, defaults to DefaultTokenURL when empty
func NewOAuth(clientSecret, tokenURL string) *OAuth {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     DefaultClientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  AuthorizeURL,
				TokenURL: tokenURL,
			},
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// AuthCodeURL returns the browser URL a user visits to authorise the
// bridge. The state value is echoed back on the redirect for CSRF checks.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair.
func (o *OAuth) Exchange(ctx context.Context, code string) (Token, error) {
	tok, err := o.config.Exchange(o.withClient(ctx), code)
	if err != nil {
		return Token{}, classifyOAuthError("exchange", err)
	}
	return fromOAuth2Token(tok), nil
}

// Refresh obtains a new token pair from a refresh token. When the provider
// does not rotate the refresh token, the previous one is carried forward.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if refreshToken == "" {
		return Token{}, fmt.Errorf("%w: no refresh token", ErrAuth)
	}

	src := o.config.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return Token{}, classifyOAuthError("refresh", err)
	}

	t := fromOAuth2Token(tok)
	if t.RefreshToken == "" {
		t.RefreshToken = refreshToken
	}
	return t, nil
}

func (o *OAuth) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func fromOAuth2Token(tok *oauth2.Token) Token {
	return Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
}

// classifyOAuthError maps token endpoint failures to the client sentinels.
// A definitive rejection from the endpoint means the grant is bad (ErrAuth);
// anything else is assumed recoverable.
func classifyOAuthError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		body := strings.TrimSpace(string(retrieveErr.Body))
		status := retrieveErr.Response.StatusCode
		if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
			return fmt.Errorf("%w: token %s failed %d: %s", ErrAuth, op, status, body)
		}
		return fmt.Errorf("%w: token %s failed %d: %s", ErrTransient, op, status, body)
	}
	return fmt.Errorf("%w: token %s: %w", ErrTransient, op, err)
}

// PrivateKeyFromToken derives the API private key from an OAuth access
// token by stripping its first and last four characters.
func PrivateKeyFromToken(accessToken string) (string, error) {
	if len(accessToken) < minTokenLength {
		return "", fmt.Errorf("%w: %d characters", ErrTokenTooShort, len(accessToken))
	}
	return accessToken[4 : len(accessToken)-4], nil
}
