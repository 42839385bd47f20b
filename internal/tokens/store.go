// Package tokens issues short-lived login tokens. A token is an opaque
// alphanumeric key in Redis whose value identifies the Telegram user;
// the web backend consumes it once during login.
package tokens

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/itamhq/teambot/pkg/config"
	pkgerrors "github.com/itamhq/teambot/pkg/errors"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Collisions are vanishingly rare at 16 alphanumeric characters; the
// cap only guards against a broken randomness source spinning forever.
const maxAttempts = 32

type keyValueStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
}

// Store issues unique tokens against a set-if-absent key/value store.
type Store struct {
	kv       keyValueStore
	ttl      time.Duration
	length   int
	now      func() time.Time
	generate func(int) (string, error)
}

// NewStore wires a token store over the given key/value backend.
func NewStore(kv keyValueStore, cfg config.TokenConfig) (*Store, error) {
	if kv == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token key/value store required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 600 * time.Second
	}
	length := cfg.Length
	if length <= 0 {
		length = 16
	}
	return &Store{
		kv:       kv,
		ttl:      ttl,
		length:   length,
		now:      time.Now,
		generate: randomString,
	}, nil
}

// Issue creates a fresh token for the user. The value format
// "{userId};{username};{HH:MM}" is consumed verbatim by the backend
// during login. Each collision triggers one independent probe-and-set
// attempt with a new candidate; the write itself is a single SETNX
// round trip, so concurrent issuers can never share a token.
func (s *Store) Issue(ctx context.Context, userID int64, username string) (string, error) {
	if username == "" {
		username = "-"
	}
	value := fmt.Sprintf("%d;%s;%s", userID, username, s.now().Format("15:04"))

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate, err := s.generate(s.length)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating token")
		}
		stored, err := s.kv.SetNX(ctx, candidate, value, s.ttl)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storing token")
		}
		if stored {
			return candidate, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "token space exhausted")
}

func randomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}
