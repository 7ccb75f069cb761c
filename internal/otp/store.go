// Package otp stores short-lived one-time secrets keyed by email: the
// 6-digit password-reset codes mailed to users, and the one-shot grants that
// authorize a single password submission after a code verifies.
//
// At most one secret is live per key (a new Put overwrites), every secret
// carries a TTL, and Consume deletes on match so replay is impossible. The
// compare-and-delete sequence is a single critical section per key.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrUnavailable means the backing store failed.
var ErrUnavailable = errors.New("one-time code store unavailable")

// Store holds one live secret per key.
type Store interface {
	// Put stores the secret for key with the given TTL, overwriting any
	// prior secret.
	Put(ctx context.Context, key, secret string, ttl time.Duration) error

	// Consume deletes the stored secret and reports true when it matches.
	// A mismatch, a missing record, or an expired record all report false;
	// a mismatch leaves the stored secret in place.
	Consume(ctx context.Context, key, secret string) (bool, error)
}

// GenerateCode returns a zero-padded numeric code of the given number of
// digits drawn from crypto/rand. A general-purpose PRNG would make codes
// guessable, so one is never used here.
func GenerateCode(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("code digits out of range")
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
