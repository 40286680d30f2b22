package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

var _ Store = (*Local)(nil)

// Local reads videos from a directory. Lookups cannot escape the directory.
type Local struct {
	root *os.Root
}

// NewLocal opens dir.
func NewLocal(dir string) (*Local, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("media: open dir: %w", err)
	}
	return &Local{root: root}, nil
}

// Close releases the directory handle.
func (l *Local) Close() error {
	return l.root.Close()
}

// Open implements Store. The returned Video also implements io.Seeker.
func (l *Local) Open(ctx context.Context, id string) (*Video, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ValidID(id) {
		return nil, ErrNotFound
	}
	f, err := l.root.Open(id + Extension)
	if err != nil {
		return nil, notFound(id, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("media: stat %q: %w", id, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}
	return &Video{
		ReadCloser:  f,
		Size:        info.Size(),
		ContentType: ContentType,
		ModTime:     info.ModTime(),
	}, nil
}

// Exists implements Store.
func (l *Local) Exists(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !ValidID(id) {
		return false, nil
	}
	info, err := l.root.Stat(id + Extension)
	if err != nil {
		if errors.Is(notFound(id, err), ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("media: stat %q: %w", id, err)
	}
	return !info.IsDir(), nil
}

func notFound(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return fmt.Errorf("media: open %q: %w", id, err)
}
