package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

const (
	diskEntrySuffix = ".zip"
	diskTempPrefix  = ".store-"
)

func init() {
	Register("disk", newDiskCache)
}

// diskCache keeps one file per archive in a directory so entries survive
// between runs. An LRU index over the file names bounds the entry count; it is
// rebuilt from modification times on start, and a hit refreshes the time.
type diskCache struct {
	fs      afero.Fs
	dir     string
	ttl     time.Duration
	onEvict EvictCallback
	logger  Logger

	mu    sync.Mutex
	index *lru.Cache[string, struct{}]
}

func newDiskCache(cfg ProviderConfig) (Cache, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache: disk provider needs a directory")
	}
	fsys := cfg.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if err := fsys.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: failed to create %s: %w", cfg.Dir, err)
	}

	d := &diskCache{
		fs:      fsys,
		dir:     cfg.Dir,
		ttl:     cfg.TTL,
		onEvict: cfg.OnEvict,
		logger:  cfg.Logger,
	}
	index, err := lru.NewWithEvict[string, struct{}](cfg.Size, d.evicted)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	d.index = index

	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// load indexes the archives already in the directory, oldest first, so the
// index evicts them in least-recently-used order.
func (d *diskCache) load() error {
	infos, err := afero.ReadDir(d.fs, d.dir)
	if err != nil {
		return fmt.Errorf("cache: failed to read %s: %w", d.dir, err)
	}

	entries := infos[:0]
	for _, info := range infos {
		name := info.Name()
		if info.Mode().IsRegular() && strings.HasSuffix(name, diskEntrySuffix) && !strings.HasPrefix(name, ".") {
			entries = append(entries, info)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ModTime().Before(entries[j].ModTime())
	})

	for _, info := range entries {
		if d.expired(info.ModTime()) {
			d.evicted(info.Name(), struct{}{})
			continue
		}
		d.index.Add(info.Name(), struct{}{})
	}
	return nil
}

// evicted deletes the file of an entry dropped from the index.
func (d *diskCache) evicted(name string, _ struct{}) {
	if err := d.fs.Remove(d.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logError("disk cache remove failed", err)
	}
	if d.onEvict != nil {
		d.onEvict(name)
	}
}

func (d *diskCache) expired(modTime time.Time) bool {
	return d.ttl > 0 && time.Since(modTime) > d.ttl
}

func (d *diskCache) path(name string) string {
	return filepath.Join(d.dir, name)
}

func (d *diskCache) logError(msg string, err error) {
	if d.logger != nil {
		d.logger.Error(msg, err)
	}
}

// entryName maps a URL to a file name that is safe on any filesystem.
func entryName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]) + diskEntrySuffix
}

func (d *diskCache) Open(_ context.Context, key string) (io.ReadCloser, bool) {
	name := entryName(key)
	path := d.path(name)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index.Get(name); !ok {
		return nil, false
	}

	info, err := d.fs.Stat(path)
	if err != nil || d.expired(info.ModTime()) {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			d.logError("disk cache stat failed", err)
		}
		d.index.Remove(name)
		return nil, false
	}

	now := time.Now()
	if err := d.fs.Chtimes(path, now, now); err != nil {
		d.logError("disk cache touch failed", err)
	}

	f, err := d.fs.Open(path)
	if err != nil {
		d.logError("disk cache open failed", err)
		return nil, false
	}
	return f, true
}

func (d *diskCache) Store(ctx context.Context, key string, r io.Reader) {
	if ctx.Err() != nil {
		return
	}

	tmp, err := afero.TempFile(d.fs, d.dir, diskTempPrefix+"*")
	if err != nil {
		d.logError("disk cache create failed", err)
		return
	}
	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = d.fs.Remove(tmp.Name())
		d.logError("disk cache write failed", err)
		return
	}

	name := entryName(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.fs.Rename(tmp.Name(), d.path(name)); err != nil {
		_ = d.fs.Remove(tmp.Name())
		d.logError("disk cache rename failed", err)
		return
	}
	d.index.Add(name, struct{}{})
}

func (d *diskCache) Len() int {
	return d.index.Len()
}

// Close keeps the files; they are the cache.
func (d *diskCache) Close() error {
	return nil
}
