package account

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waftester/chatprobe/pkg/jsonutil"
	"github.com/waftester/chatprobe/pkg/retry"
)

func fakeToken(userID string) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payload := enc.EncodeToString([]byte(`{"user_id":"` + userID + `"}`))
	return header + "." + payload + ".sig"
}

// authServer mimics the backend auth endpoints with an in-memory user set.
type authServer struct {
	mu       sync.Mutex
	users    map[string]string
	signups  atomic.Int32
	logins   atomic.Int32
	tokenKey string
}

func decodeCredentials(t *testing.T, req *http.Request) (Credentials, bool) {
	var c Credentials
	data, err := io.ReadAll(req.Body)
	if !assert.NoError(t, err) {
		return c, false
	}
	return c, assert.NoError(t, jsonutil.Unmarshal(data, &c))
}

func newAuthServer(t *testing.T) (*authServer, *httptest.Server) {
	t.Helper()
	a := &authServer{users: map[string]string{}, tokenKey: "access_token"}
	r := chi.NewRouter()
	r.Post("/api/v1/auth/signup", func(w http.ResponseWriter, req *http.Request) {
		a.signups.Add(1)
		c, ok := decodeCredentials(t, req)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		if _, ok := a.users[c.Email]; ok {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"detail":"already registered"}`))
			return
		}
		a.users[c.Email] = c.Password
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"User created successfully"}`))
	})
	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, req *http.Request) {
		a.logins.Add(1)
		c, ok := decodeCredentials(t, req)
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		a.mu.Lock()
		pw, ok := a.users[c.Email]
		a.mu.Unlock()
		if !ok || pw != c.Password {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"` + a.tokenKey + `":"` + fakeToken("u-"+strings.Split(c.Email, "@")[0]) + `"}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return a, srv
}

func noWait() retry.Config {
	return retry.Config{MaxAttempts: 3, InitDelay: time.Millisecond, MaxDelay: time.Millisecond, Strategy: retry.Constant}
}

func TestGenerate(t *testing.T) {
	a := Generate("peer")
	b := Generate("")
	assert.True(t, strings.HasPrefix(a.Email, "peer_"))
	assert.True(t, strings.HasSuffix(a.Email, "@example.com"))
	assert.True(t, strings.HasPrefix(b.Email, "chatprobe_"))
	assert.NotEqual(t, a.Email, Generate("peer").Email)
	assert.Equal(t, DefaultPassword, a.Password)
}

func TestNew_InvalidBase(t *testing.T) {
	_, err := New(http.DefaultClient, "not a url")
	assert.Error(t, err)
}

func TestBootstrap_SignsUpUnknownUser(t *testing.T) {
	a, srv := newAuthServer(t)
	c, err := New(srv.Client(), srv.URL, WithRetry(noWait()))
	require.NoError(t, err)

	creds := Credentials{Email: "peer_1@example.com", Password: "pw"}
	acct, err := c.Bootstrap(context.Background(), creds)
	require.NoError(t, err)

	assert.Equal(t, "u-peer_1", acct.UserID)
	assert.Equal(t, creds.Email, acct.Email)
	assert.NotEmpty(t, acct.Token)
	assert.EqualValues(t, 1, a.signups.Load())
	assert.EqualValues(t, 2, a.logins.Load(), "login refused once, then accepted")
}

func TestBootstrap_ExistingUserSkipsSignup(t *testing.T) {
	a, srv := newAuthServer(t)
	a.users["old@example.com"] = "pw"
	a.tokenKey = "token"
	c, err := New(srv.Client(), srv.URL)
	require.NoError(t, err)

	acct, err := c.Bootstrap(context.Background(), Credentials{Email: "old@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "u-old", acct.UserID)
	assert.Zero(t, a.signups.Load())
}

func TestBootstrap_WrongPasswordFailsSignup(t *testing.T) {
	a, srv := newAuthServer(t)
	a.users["taken@example.com"] = "other"
	c, err := New(srv.Client(), srv.URL, WithRetry(noWait()))
	require.NoError(t, err)

	_, err = c.Bootstrap(context.Background(), Credentials{Email: "taken@example.com", Password: "pw"})
	require.ErrorIs(t, err, ErrSignup)
	assert.Contains(t, err.Error(), "already registered")
	assert.EqualValues(t, 1, a.logins.Load())
}

func TestSignup_AcceptsCreatedText(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/v1/auth/signup", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("Account CREATED"))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := New(srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.NoError(t, c.Signup(context.Background(), Generate("x")))
}

func TestSignup_NeverRetried(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/v1/auth/signup", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := New(srv.Client(), srv.URL, WithRetry(noWait()))
	require.NoError(t, err)
	err = c.Signup(context.Background(), Generate("x"))
	assert.ErrorIs(t, err, ErrSignup)
	assert.EqualValues(t, 1, calls.Load())
}

func TestLogin_RetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			// Drop the connection to produce a transport error.
			hj, ok := w.(http.Hijacker)
			if !assert.True(t, ok) {
				return
			}
			conn, _, err := hj.Hijack()
			if assert.NoError(t, err) {
				_ = conn.Close()
			}
			return
		}
		_, _ = w.Write([]byte(`{"data":{"access_token":"` + fakeToken("7") + `"}}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := New(srv.Client(), srv.URL, WithRetry(noWait()))
	require.NoError(t, err)
	token, err := c.Login(context.Background(), Generate("x"))
	require.NoError(t, err)
	assert.Equal(t, fakeToken("7"), token)
	assert.EqualValues(t, 3, calls.Load())
}

func TestLogin_NoTokenIsPermanent(t *testing.T) {
	var calls atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	c, err := New(srv.Client(), srv.URL, WithRetry(noWait()))
	require.NoError(t, err)
	_, err = c.Login(context.Background(), Generate("x"))
	assert.ErrorIs(t, err, ErrLogin)
	assert.EqualValues(t, 1, calls.Load())
}

func TestBootstrap_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(http.DefaultClient, base, WithRetry(noWait()))
	require.NoError(t, err)
	_, err = c.Bootstrap(context.Background(), Generate("x"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLogin))
	assert.False(t, errors.Is(err, ErrSignup))
}
