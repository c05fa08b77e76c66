// Package transaction provides the file primitives every install and removal
// goes through: atomic single-file writes, a multi-file commit with rollback,
// and per-identifier lock files.
package transaction

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// State represents the state of one staged path.
type State string

const (
	StatePending    State = "pending"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateRolledBack State = "rolled_back"
)

// WriteFileAtomic writes data to path through a uniquely named temporary
// file in the same directory, then renames it into place. Readers see either
// the old content or the new content, never a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}

	// Sync directory for durability
	if df, err := os.Open(dir); err == nil {
		df.Sync()
		df.Close()
	}
	return nil
}

// PathTxn is one file staged in a transaction.
type PathTxn struct {
	Path      string
	State     State
	LastError string

	data    []byte
	perm    os.FileMode
	backup  []byte
	existed bool
}

// Txn groups several file writes so that either all of them land or none
// of them do.
type Txn struct {
	ID        string
	Timestamp time.Time
	Paths     []PathTxn
}

// New creates an empty transaction.
func New() *Txn {
	return &Txn{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
	}
}

// Stage queues a write. Staging the same path again replaces the earlier data.
func (t *Txn) Stage(path string, data []byte, perm os.FileMode) {
	for i := range t.Paths {
		if t.Paths[i].Path == path {
			t.Paths[i].data = data
			t.Paths[i].perm = perm
			return
		}
	}
	t.Paths = append(t.Paths, PathTxn{Path: path, State: StatePending, data: data, perm: perm})
}

// Commit writes every staged path in order. If one write fails, the paths
// already written are restored to their previous content (or removed when
// they did not exist) and the write error is returned.
func (t *Txn) Commit() error {
	for i := range t.Paths {
		p := &t.Paths[i]

		prev, err := os.ReadFile(p.Path)
		switch {
		case err == nil:
			p.backup, p.existed = prev, true
		case !errors.Is(err, os.ErrNotExist):
			p.State = StateFailed
			p.LastError = err.Error()
			t.rollback(i)
			return fmt.Errorf("read %s: %w", p.Path, err)
		}

		if err := WriteFileAtomic(p.Path, p.data, p.perm); err != nil {
			p.State = StateFailed
			p.LastError = err.Error()
			t.rollback(i)
			return fmt.Errorf("write %s: %w", p.Path, err)
		}
		p.State = StateCompleted
	}
	return nil
}

func (t *Txn) rollback(failed int) {
	for i := failed - 1; i >= 0; i-- {
		p := &t.Paths[i]
		if p.State != StateCompleted {
			continue
		}
		if p.existed {
			WriteFileAtomic(p.Path, p.backup, p.perm)
		} else {
			os.Remove(p.Path)
		}
		p.State = StateRolledBack
	}
}

// Written returns the paths committed so far.
func (t *Txn) Written() []string {
	var out []string
	for _, p := range t.Paths {
		if p.State == StateCompleted {
			out = append(out, p.Path)
		}
	}
	return out
}

