// Package metadata stores small key/value facts about the local session:
// the username, KDF salt, password verifier, sealed tokens and the last
// synced version.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyUsername    = "username"
	KeySalt        = "salt"
	KeyVerifier    = "verifier"
	KeyTokens      = "tokens"
	KeyLastVersion = "last_version"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
