package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// TokenStore holds the bearer token issued by the backend.
type TokenStore interface {
	Token() (string, error)
	SetToken(token string) error
	ClearToken() error
}

// MemoryTokens keeps the token in process memory.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokens) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokens) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) ClearToken() error {
	return m.SetToken("")
}

// Login exchanges a username and password for a bearer token using the
// OAuth2 password grant against POST /auth/token, and stores it.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w: %w", domain.ErrTransport, err)
	}

	conf := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.baseURL + "/auth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			switch rerr.Response.StatusCode {
			case http.StatusUnauthorized, http.StatusBadRequest, http.StatusForbidden:
				return fmt.Errorf("login rejected: %w", domain.ErrUnauthenticated)
			}
			if rerr.Response.StatusCode < 500 {
				return fmt.Errorf("login: HTTP %d: %w", rerr.Response.StatusCode, domain.ErrUnknown)
			}
		}
		return fmt.Errorf("login: %w: %w", domain.ErrTransport, err)
	}

	if err := c.tokens.SetToken(tok.AccessToken); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	c.logger.Info("logged in")
	return nil
}

// Logout forgets the held token.
func (c *Client) Logout() error {
	return c.tokens.ClearToken()
}

// LoggedIn reports whether a token is held.
func (c *Client) LoggedIn() bool {
	tok, err := c.tokens.Token()
	return err == nil && tok != ""
}

// Me returns the profile of the authenticated user.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	r, err := jsonRequest(http.MethodGet, "/auth/me", nil)
	if err != nil {
		return domain.User{}, err
	}
	var u domain.User
	if err := c.do(ctx, r, &u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}
