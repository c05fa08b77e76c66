package transaction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute

	lockPollInterval = 25 * time.Millisecond
)

var (
	ErrLockExists = errors.New("lock exists: another operation on this id is in progress")
	ErrLockName   = errors.New("invalid lock name")
)

// Lock is an exclusive lock file held for one identifier.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock takes the lock dir/<name>.lock, waiting while another holder
// owns it. Locks older than StaleLockThreshold are broken. When ctx ends
// first the error wraps ErrLockExists.
func AcquireLock(ctx context.Context, dir, name string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("%w: %q", ErrLockName, name)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, name+".lock")
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		file, err := tryLock(lockPath)
		if err == nil {
			return &Lock{path: lockPath, file: file}, nil
		}
		if !errors.Is(err, ErrLockExists) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockExists, ctx.Err())
		case <-ticker.C:
		}
	}
}

func tryLock(lockPath string) (*os.File, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if isStale, _ := isLockStale(lockPath); !isStale {
			return nil, ErrLockExists
		}
		// Remove stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}
	return file, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
