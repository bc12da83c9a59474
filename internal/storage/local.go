package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// localStorage keeps artifacts as flat files inside a single directory,
// mirroring the original uploads/ layout. It is the default backend.
type localStorage struct {
	dir string
}

// NewLocal creates a directory-backed artifact store. The directory is
// created if absent.
func NewLocal(dir string) (Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &localStorage{dir: dir}, nil
}

// resolve maps an artifact name to a path inside the directory, rejecting
// anything that could escape it.
func (l *localStorage) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(l.dir, name), nil
}

func (l *localStorage) Save(ctx context.Context, name string, r io.Reader, opt SaveOptions) (ObjectInfo, error) {
	path, err := l.resolve(name)
	if err != nil {
		return ObjectInfo{}, err
	}

	f, err := os.Create(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create artifact: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return ObjectInfo{}, fmt.Errorf("write artifact: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat artifact: %w", err)
	}
	return ObjectInfo{
		Name:        name,
		Size:        n,
		ContentType: contentTypeFor(name, opt.ContentType),
		ModTime:     st.ModTime(),
	}, nil
}

func (l *localStorage) Open(ctx context.Context, name string) (io.ReadCloser, ObjectInfo, error) {
	path, err := l.resolve(name)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ObjectInfo{}, ErrNotExist
		}
		return nil, ObjectInfo{}, fmt.Errorf("open artifact: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat artifact: %w", err)
	}
	info := ObjectInfo{
		Name:        name,
		Size:        st.Size(),
		ContentType: contentTypeFor(name, ""),
		ModTime:     st.ModTime(),
	}
	return f, info, nil
}

func (l *localStorage) Delete(ctx context.Context, name string) error {
	path, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

func (l *localStorage) Healthcheck(ctx context.Context) error {
	st, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("upload directory unavailable: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("upload path %q is not a directory", l.dir)
	}
	return nil
}

// contentTypeFor prefers an explicit content type and falls back to the
// extension. Generated audio is always mp3.
func contentTypeFor(name, explicit string) string {
	if explicit != "" {
		return explicit
	}
	// The builtin mime table has no mp3 entry on some platforms.
	if strings.EqualFold(filepath.Ext(name), ".mp3") {
		return "audio/mpeg"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
