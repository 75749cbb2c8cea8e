// Package account creates and logs in a throwaway peer user, so operations
// that need a second participant (creating a chat) have someone to address.
package account

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/waftester/chatprobe/pkg/classify"
	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/httpclient"
	"github.com/waftester/chatprobe/pkg/iohelper"
	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/jwt"
	"github.com/waftester/chatprobe/pkg/retry"
)

// DefaultPassword is used for generated accounts.
const DefaultPassword = "password123"

// tokenRules finds the issued token in a login reply.
var tokenRules = classify.Rules{Extract: []string{"access_token", "token", "data.access_token", "data.token"}}

// Credentials identify an account.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Generate returns credentials for a fresh account. The local part starts
// with prefix so test users are easy to find and clean up server-side.
func Generate(prefix string) Credentials {
	if prefix == "" {
		prefix = defaults.ToolName
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return Credentials{
		Email:    fmt.Sprintf("%s_%s@example.com", prefix, id),
		Password: DefaultPassword,
	}
}

// Account is a logged-in user.
type Account struct {
	Email  string `json:"email"`
	Token  string `json:"-"`
	UserID string `json:"user_id"`
}

// Client talks to the auth endpoints.
type Client struct {
	http   *http.Client
	base   *url.URL
	retry  retry.Config
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetry replaces the login retry policy.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger. nil means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client for the backend at baseURL.
func New(client *http.Client, baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base address %q", baseURL)
	}
	c := &Client{http: client, base: u, retry: retry.DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = orDefault(c.logger)
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Debug("login retry", slog.Int("attempt", attempt), slog.String("error", err.Error()), slog.Duration("delay", delay))
		}
	}
	return c, nil
}

// Signup creates the account. It is sent exactly once: a lost reply may
// still mean the user exists, and a second signup would fail for the wrong
// reason. A 200 or any reply mentioning "created" counts as success.
func (c *Client) Signup(ctx context.Context, creds Credentials) error {
	status, body, err := c.post(ctx, defaults.PathSignup, creds)
	if err != nil {
		return err
	}
	if status == http.StatusOK || strings.Contains(strings.ToLower(string(body)), "created") {
		c.logger.Debug("signup accepted", slog.String("email", creds.Email), slog.Int("status", status))
		return nil
	}
	return fmt.Errorf("%w: status %d: %s", ErrSignup, status, snippet(body))
}

// Login exchanges credentials for a bearer token. Transport failures are
// retried; an answer without a token is not.
func (c *Client) Login(ctx context.Context, creds Credentials) (string, error) {
	var token string
	err := retry.Do(ctx, c.retry, func(ctx context.Context) error {
		status, body, err := c.post(ctx, defaults.PathLogin, creds)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return retry.Permanent(fmt.Errorf("%w: status %d: %s", ErrLogin, status, snippet(body)))
		}
		var reply any
		if err := jsonutil.Unmarshal(body, &reply); err != nil {
			return retry.Permanent(fmt.Errorf("%w: reply is not JSON: %s", ErrLogin, snippet(body)))
		}
		t, ok := tokenRules.Identifier(reply)
		if !ok {
			return retry.Permanent(fmt.Errorf("%w: reply carries no token", ErrLogin))
		}
		token = t
		return nil
	})
	return token, err
}

// Bootstrap logs in with creds, signing the account up first when the
// login is refused, and resolves the user id from the issued token.
func (c *Client) Bootstrap(ctx context.Context, creds Credentials) (*Account, error) {
	token, err := c.Login(ctx, creds)
	if errors.Is(err, ErrLogin) {
		c.logger.Info("peer login refused, signing up", slog.String("email", creds.Email))
		if err := c.Signup(ctx, creds); err != nil {
			return nil, err
		}
		token, err = c.Login(ctx, creds)
	}
	if err != nil {
		return nil, err
	}

	userID, err := jwt.UserIDFromToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: issued token: %w", ErrLogin, err)
	}
	c.logger.Info("peer ready", slog.String("email", creds.Email), slog.String("user_id", userID))
	return &Account{Email: creds.Email, Token: token, UserID: userID}, nil
}

func (c *Client) post(ctx context.Context, path string, v any) (int, []byte, error) {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		return 0, nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(path).String(), bytes.NewReader(data))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set(defaults.HeaderContentType, defaults.ContentTypeJSON)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, httpclient.Classify(err)
	}
	defer iohelper.DrainAndClose(resp.Body)

	body, err := iohelper.ReadBodyDefault(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading %s reply: %w", path, err)
	}
	return resp.StatusCode, body, nil
}

func snippet(body []byte) string {
	return iohelper.Snippet(string(body), 200)
}

func orDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
