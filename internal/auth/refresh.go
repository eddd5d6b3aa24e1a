package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"trainlog/internal/store"
)

// ErrReauthRequired means the stored credentials cannot be refreshed and the
// user has to log in again.
var ErrReauthRequired = errors.New("re-authentication required: run 'trainlog login'")

// TokenStore persists refreshed tokens
type TokenStore interface {
	GetAuth(ctx context.Context) (*store.Auth, error)
	UpdateTokens(ctx context.Context, accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenSource hands out a valid access token, refreshing it shortly before
// expiry and persisting the new pair. Concurrent callers share one refresh.
type TokenSource struct {
	ctx    context.Context
	config *oauth2.Config
	store  TokenStore
	now    func() time.Time

	mu    sync.Mutex
	token *oauth2.Token
	group singleflight.Group
}

// NewTokenSource loads the stored credentials. ctx bounds every refresh the
// source performs.
func NewTokenSource(ctx context.Context, cfg *oauth2.Config, ts TokenStore) (*TokenSource, error) {
	a, err := ts.GetAuth(ctx)
	if errors.Is(err, store.ErrNoAuth) {
		return nil, fmt.Errorf("no stored credentials: %w", ErrReauthRequired)
	}
	if err != nil {
		return nil, err
	}

	return &TokenSource{
		ctx:    ctx,
		config: cfg,
		store:  ts,
		now:    time.Now,
		token:  tokenFromAuth(a),
	}, nil
}

// Token returns a valid token, refreshing if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	if tok := ts.current(); ts.fresh(tok) {
		return tok, nil
	}

	v, err, _ := ts.group.Do("refresh", func() (any, error) {
		return ts.refresh()
	})
	if err != nil {
		return nil, err
	}
	return v.(*oauth2.Token), nil
}

// CurrentToken returns the current token without refreshing
func (ts *TokenSource) CurrentToken() *oauth2.Token {
	return ts.current()
}

func (ts *TokenSource) current() *oauth2.Token {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.token
}

func (ts *TokenSource) fresh(tok *oauth2.Token) bool {
	return tok.AccessToken != "" && tok.Expiry.Sub(ts.now()) > refreshBuffer
}

func (ts *TokenSource) refresh() (*oauth2.Token, error) {
	old := ts.current()
	if ts.fresh(old) {
		return old, nil
	}
	if old.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token: %w", ErrReauthRequired)
	}

	ctx, cancel := context.WithTimeout(ts.ctx, 30*time.Second)
	defer cancel()

	tok, err := ts.config.TokenSource(ctx, &oauth2.Token{RefreshToken: old.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest || retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return nil, fmt.Errorf("%w: %v", ErrReauthRequired, err)
		}
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = old.RefreshToken
	}

	if err := ts.store.UpdateTokens(ctx, tok.AccessToken, tok.RefreshToken, tok.Expiry); err != nil {
		return nil, fmt.Errorf("saving refreshed token: %w", err)
	}

	ts.mu.Lock()
	ts.token = tok
	ts.mu.Unlock()
	return tok, nil
}
