package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore saves documents to disk under a base directory. Links point at
// baseURL, which the API serves from the same directory.
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates the base directory if missing.
func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("storage base path is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("storage base url is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir is the directory objects are written to.
func (l *LocalStore) Dir() string {
	return l.basePath
}

func (l *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(out, readerWithContext(ctx, r)); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return fmt.Errorf("write file: %w", err)
	}
	return out.Close()
}

func (l *LocalStore) URL(_ context.Context, key string) (string, error) {
	if _, err := l.path(key); err != nil {
		return "", err
	}
	return joinURL(l.baseURL, key)
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	target, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// path resolves key below basePath and rejects traversal.
func (l *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	if clean == string(os.PathSeparator) {
		return "", errors.New("object key is required")
	}
	for _, seg := range strings.Split(filepath.ToSlash(key), "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid object key %q", key)
		}
	}
	return filepath.Join(l.basePath, clean), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
