package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// ProviderConfig holds the configuration needed to create a cache instance.
type ProviderConfig struct {
	// Size is the maximum number of archives kept in the cache.
	Size int

	// TTL bounds how long an archive stays cached. Redis counts it from the
	// last store; the disk provider counts it from the last store or hit.
	// Zero keeps archives until they are evicted.
	TTL time.Duration

	// OnEvict is called when an entry is evicted or expires.
	OnEvict EvictCallback

	// Logger receives errors the cache swallows. If nil, errors are dropped.
	Logger Logger

	// Dir is the directory of the disk provider.
	Dir string

	// Fs is the filesystem of the disk provider. Defaults to the OS filesystem.
	Fs afero.Fs

	RedisAddress  string
	RedisPassword string
	RedisDB       int

	// KeyPrefix namespaces the redis keys. Defaults to "zipfetch:".
	KeyPrefix string

	// Group labels the Prometheus metrics of this instance.
	// When non-empty the cache is wrapped with metric instrumentation.
	Group string
}

// Provider builds a Cache from its configuration.
type Provider func(cfg ProviderConfig) (Cache, error)

var (
	mu        sync.RWMutex
	providers = make(map[string]Provider)
)

// Register makes a provider available to New under name.
// It panics on a nil provider or a duplicate name.
func Register(name string, p Provider) {
	mu.Lock()
	defer mu.Unlock()

	if p == nil {
		panic("cache: Register provider is nil")
	}
	if _, exists := providers[name]; exists {
		panic(fmt.Sprintf("cache: provider %q already registered", name))
	}
	providers[name] = p
}

// New creates a cache with the named provider. A non-empty cfg.Group wraps
// the result with hit, miss, eviction and stored-bytes metrics.
func New(name string, cfg ProviderConfig) (Cache, error) {
	mu.RLock()
	p, ok := providers[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("cache: unknown provider %q (registered: %v)", name, RegisteredProviders())
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("cache: size must be positive, got %d", cfg.Size)
	}
	if cfg.Group == "" {
		return p(cfg)
	}

	cfg.OnEvict = countEvictions(cfg.Group, cfg.OnEvict)
	inner, err := p(cfg)
	if err != nil {
		return nil, err
	}
	return newInstrumentedCache(inner, cfg.Group), nil
}

// countEvictions chains an eviction counter in front of next.
func countEvictions(group string, next EvictCallback) EvictCallback {
	return func(key string) {
		EvictionsTotal.WithLabelValues(group).Inc()
		if next != nil {
			next(key)
		}
	}
}

// RegisteredProviders returns the registered provider names, sorted.
func RegisteredProviders() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
