// Package cache stores rendered simulation runs by content key.
//
// A run is fully determined by its scenario and output options, so the
// rendered bytes can be reused: the CLI keeps them on disk ([FileCache]),
// the HTTP server shares them between instances through Redis
// ([RedisCache]), and [NullCache] disables caching altogether.
//
// Keys come from a [Keyer]; the default keyer hashes the canonical JSON of
// the key inputs, so any change to the scenario produces a new key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with optional expiry.
type Cache interface {
	// Get returns the value for key. hit is false on a miss or an expired
	// entry; err is reserved for backend failures.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl <= 0 never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// DefaultTTL is the lifetime of cached runs.
const DefaultTTL = 7 * 24 * time.Hour

// RunKeyOpts are the inputs that change a rendered run besides the scenario.
type RunKeyOpts struct {
	Format   string `json:"format"`
	Selector string `json:"selector"`
	Decimals int    `json:"decimals"`
	Time     bool   `json:"time"`
	Initial  bool   `json:"initial"`
}

// Keyer builds cache keys.
type Keyer interface {
	// RunKey keys a rendered run. scenario is any JSON-encodable value that
	// identifies the simulation setup. It fails when scenario cannot be
	// encoded, in which case the run must not be cached.
	RunKey(scenario any, opts RunKeyOpts) (string, error)
}

// DefaultKeyer hashes key inputs under a fixed version prefix. Bumping
// keyVersion invalidates every stored entry.
type DefaultKeyer struct{}

const keyVersion = "v1"

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RunKey implements Keyer.
func (DefaultKeyer) RunKey(scenario any, opts RunKeyOpts) (string, error) {
	return hashKey("run:"+keyVersion, scenario, opts)
}

// ScopedKeyer prefixes the keys of another keyer, so that several tenants
// can share one backend without colliding.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (DefaultKeyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// RunKey implements Keyer.
func (k *ScopedKeyer) RunKey(scenario any, opts RunKeyOpts) (string, error) {
	key, err := k.inner.RunKey(scenario, opts)
	if err != nil {
		return "", err
	}
	return k.prefix + key, nil
}
