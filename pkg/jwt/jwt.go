// Package jwt reads the payload of a bearer credential. Nothing here
// verifies a signature: the server is the only party that can, and the
// probe only needs the claims to address per-user endpoints.
package jwt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	gojwt "github.com/golang-jwt/jwt/v4"
)

// UserIDClaims are the claim names checked, in order, for the user id.
var UserIDClaims = []string{"user_id", "uid", "sub"}

// Token is a decoded, unverified JWT.
type Token struct {
	Raw    string
	Header map[string]any
	Claims gojwt.MapClaims
}

// Decode splits and decodes token without checking its signature.
func Decode(token string) (*Token, error) {
	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	claims, ok := parsed.Claims.(gojwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type %T", ErrMalformed, parsed.Claims)
	}
	return &Token{Raw: token, Header: parsed.Header, Claims: claims}, nil
}

// UserID returns the first non-empty claim from UserIDClaims.
func (t *Token) UserID() (string, error) {
	for _, name := range UserIDClaims {
		if s := claimString(t.Claims[name]); s != "" {
			return s, nil
		}
	}
	return "", ErrNoUserID
}

// ExpiresAt returns the exp claim. ok is false when the token has none.
func (t *Token) ExpiresAt() (exp time.Time, ok bool) {
	switch v := t.Claims["exp"].(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	}
	return time.Time{}, false
}

// Expired reports whether the token carries an exp claim at or before now.
// A token without exp never expires as far as the probe can tell.
func (t *Token) Expired(now time.Time) bool {
	exp, ok := t.ExpiresAt()
	return ok && !now.Before(exp)
}

// Algorithm returns the alg header value.
func (t *Token) Algorithm() string {
	alg, _ := t.Header["alg"].(string)
	return alg
}

// UserIDFromToken is a convenience for Decode followed by UserID.
func UserIDFromToken(token string) (string, error) {
	tok, err := Decode(token)
	if err != nil {
		return "", err
	}
	return tok.UserID()
}

func claimString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	}
	return ""
}
