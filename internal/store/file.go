package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const defaultLockPollInterval = 10 * time.Millisecond

// FileBackend stores a document in a single file. Writers are serialized by
// an in-process mutex and by flock(2) on a sidecar "<path>.lock" file, so
// several processes may share the same document. Writes land in a temp file
// that is fsynced and renamed over the target, which keeps the previous
// content intact when a write fails.
type FileBackend struct {
	path         string
	lockPath     string
	perm         os.FileMode
	pollInterval time.Duration

	mu sync.Mutex
}

// NewFileBackend creates a backend for the document at path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{
		path:         path,
		lockPath:     path + ".lock",
		perm:         0o644,
		pollInterval: defaultLockPollInterval,
	}
}

// Location returns the document path.
func (b *FileBackend) Location() string {
	return b.path
}

// Read returns the file content. Renames are atomic, so readers never see a
// partially written document and need no lock.
func (b *FileBackend) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", b.path, err)
	}
	return data, nil
}

// Update runs fn under the exclusive lock and writes its result.
func (b *FileBackend) Update(ctx context.Context, fn func(current []byte) ([]byte, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	unlock, err := b.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := os.ReadFile(b.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", b.path, err)
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}

	if err := b.write(next); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (b *FileBackend) lock(ctx context.Context) (func(), error) {
	f, err := os.OpenFile(b.lockPath, os.O_CREATE|os.O_RDWR, b.perm)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}

	for {
		acquired, err := tryLockFile(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
		}
		if acquired {
			return func() {
				_ = unlockFile(f)
				_ = f.Close()
			}, nil
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, ctx.Err())
		case <-time.After(b.pollInterval):
		}
	}
}

func (b *FileBackend) write(data []byte) error {
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(b.path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	// After a successful rename this is a no-op.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, b.perm); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path)
}
