// Package csrf issues and validates per-session anti-forgery tokens.
//
// A token is a crypto-random value bound to exactly one session key. The
// binding substrate is abstracted behind [Binding] so the transport layer can
// choose server-side storage (in-process or Redis) or a double-submit cookie
// scheme without changing the contract: Issue binds a fresh token, Verify
// compares the submitted value against the bound one in constant time.
package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"time"
)

// tokenBytes is the raw entropy per token; 32 bytes is twice the 128-bit
// floor the scheme requires.
const tokenBytes = 32

// ErrUnavailable means the binding backend could not be reached.
var ErrUnavailable = errors.New("csrf binding unavailable")

// Binding stores the single token bound to each session key. Bind overwrites
// any previous token for the session (issue-rotates-the-binding semantics).
type Binding interface {
	Bind(ctx context.Context, session, token string, ttl time.Duration) error
	// Token returns the bound token, or "" when none is bound.
	Token(ctx context.Context, session string) (string, error)
}

// Guard issues and verifies anti-forgery tokens over a Binding.
type Guard struct {
	binding Binding
	ttl     time.Duration
}

// NewGuard returns a Guard whose bindings live for ttl.
func NewGuard(binding Binding, ttl time.Duration) *Guard {
	return &Guard{binding: binding, ttl: ttl}
}

// Issue generates a fresh token, binds it to session, and returns it for
// embedding into the next rendered form. Any previously bound token for the
// session stops verifying.
func (g *Guard) Issue(ctx context.Context, session string) (string, error) {
	if session == "" {
		return "", errors.New("empty csrf session key")
	}

	raw := make([]byte, tokenBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)

	if err := g.binding.Bind(ctx, session, token, g.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Verify reports whether submitted equals the token bound to session.
// Absent, empty, or mismatching values are all hard rejections; backend
// failures also report false.
func (g *Guard) Verify(ctx context.Context, session, submitted string) bool {
	if session == "" || submitted == "" {
		return false
	}

	bound, err := g.binding.Token(ctx, session)
	if err != nil || bound == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(bound), []byte(submitted)) == 1
}
