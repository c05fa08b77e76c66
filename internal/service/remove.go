package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
)

// RemoveRequest names the title to remove.
type RemoveRequest struct {
	ID string
}

// RemoveAll deletes the script for an id, its metadata sidecar, and every
// revision cache and stats file belonging to an id the script referenced.
// It succeeds when at least one file was deleted.
func (s *ManifestService) RemoveAll(ctx context.Context, req RemoveRequest) (*RemoveResult, error) {
	const op = "remove"
	id, ok := ident.Normalize(req.ID)
	if !ok {
		return &RemoveResult{Result: invalidID(op, req.ID, s.metrics)}, fmt.Errorf("%w: id %q", ErrInvalidRequest, req.ID)
	}
	log := logging.ForOperation(s.logger, op, id)

	lock, err := s.lock(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.metrics.IncOperation(op, string(CodeBusy))
		return &RemoveResult{Result: newResult(CodeBusy, map[string]string{"id": id})}, nil
	}
	defer func() { _ = lock.Release() }()

	associated := []string{id}
	doc, err := s.readLocal(id)
	if err != nil {
		log.Warn("local script unreadable, removing by id only", logging.Err(err))
	} else if doc != nil {
		associated = appendUnique(associated, doc.AssociatedIDs()...)
	}

	targets := []string{
		s.scriptPath(id),
		filepath.Join(s.scriptDir, id+".json"),
	}
	targets = append(targets, s.matching(log, s.revisionCacheDir, func(name string) bool {
		return hasIDPrefix(name, associated)
	})...)
	if s.statsPrefix != "" {
		prefix := strings.ToLower(s.statsPrefix) + "_"
		targets = append(targets, s.matching(log, s.statsDir, func(name string) bool {
			lower := strings.ToLower(name)
			return strings.HasPrefix(lower, prefix) && hasIDPrefix(lower[len(prefix):], associated)
		})...)
	}

	var deleted []string
	var failures []string
	for _, p := range targets {
		err := os.Remove(p)
		switch {
		case err == nil:
			deleted = append(deleted, p)
			log.Debug("deleted", logging.Path(p))
		case errors.Is(err, os.ErrNotExist):
		default:
			failures = append(failures, err.Error())
			log.Warn("delete failed", logging.Path(p), logging.Err(err))
		}
	}

	code := CodeRemoveDone
	params := map[string]string{"id": id, "count": fmt.Sprint(len(deleted))}
	switch {
	case len(deleted) > 0:
	case len(failures) > 0:
		code = CodeWriteFailed
		params["detail"] = strings.Join(failures, "; ")
	default:
		code = CodeRemoveNothing
	}

	log.Info("remove finished", zap.String("code", string(code)), zap.Int("deleted", len(deleted)), zap.Int("failed", len(failures)))
	s.metrics.IncOperation(op, string(code))
	res := newResult(code, params)
	if code == CodeRemoveNothing {
		res.Success = false
	}
	return &RemoveResult{Result: res, DeletedPaths: deleted}, nil
}

// matching lists regular files in dir whose names satisfy match.
func (s *ManifestService) matching(log *zap.Logger, dir string, match func(name string) bool) []string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("cannot list directory", logging.Path(dir), logging.Err(err))
		}
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && match(e.Name()) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out
}

// hasIDPrefix reports whether name starts with one of ids followed by a
// separator, so that id 10 does not match 100_1.manifest.
func hasIDPrefix(name string, ids []string) bool {
	for _, id := range ids {
		if !strings.HasPrefix(name, id) {
			continue
		}
		if rest := name[len(id):]; rest == "" || rest[0] == '_' || rest[0] == '.' {
			return true
		}
	}
	return false
}

func appendUnique(dst []string, ids ...string) []string {
	seen := make(map[string]bool, len(dst))
	for _, id := range dst {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			dst = append(dst, id)
		}
	}
	return dst
}
