package kvstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileExt = ".kv"

// FileStore keeps one zstd-compressed file per key in a directory. Expiry is
// recorded in the entry and enforced on read.
type FileStore struct {
	dir   string
	codec *codec
	now   func() time.Time

	mu sync.RWMutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	c, err := newCodec()
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, codec: c, now: time.Now}, nil
}

// Dir returns the directory backing the store.
func (fs *FileStore) Dir() string {
	return fs.dir
}

func (fs *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	data, err := os.ReadFile(fs.path(key))
	fs.mu.RUnlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}

	e, err := fs.codec.decodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %q: %w", key, err)
	}
	if expired(fs.now(), e.ExpiresAt) {
		_ = fs.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return e.Value, nil
}

func (fs *FileStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := fs.codec.encodeEnvelope(envelope{
		Key:       key,
		ExpiresAt: expiryFor(fs.now(), ttl),
		Value:     value,
	})
	if err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp, err := os.CreateTemp(fs.dir, "tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()        //nolint:errcheck
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("closing %q: %w", key, err)
	}
	if err := os.Rename(tmpName, fs.path(key)); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return fmt.Errorf("renaming %q: %w", key, err)
	}
	return nil
}

func (fs *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := os.Remove(fs.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every stored key starting with prefix.
func (fs *FileStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return 0, fmt.Errorf("reading store directory: %w", err)
	}

	n := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != fileExt {
			continue
		}
		key, ok := decodeFileName(entry.Name())
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(fs.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return n, fmt.Errorf("deleting %q: %w", key, err)
		}
		n++
	}
	return n, nil
}

// Close releases the compression codec.
func (fs *FileStore) Close() error {
	fs.codec.close()
	return nil
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.dir, base64.RawURLEncoding.EncodeToString([]byte(key))+fileExt)
}

func decodeFileName(name string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileExt))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

var (
	_ Store         = (*FileStore)(nil)
	_ PrefixDeleter = (*FileStore)(nil)
	_ Closer        = (*FileStore)(nil)
)
