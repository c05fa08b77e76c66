// Package service implements the manifest operations an embedding host
// calls: installing a title's base script, listing and installing optional
// entries, and removing everything installed for a title.
//
// Installed state is inferred from the filesystem alone: a title is
// installed when its script exists at the canonical path. Every operation
// on one id holds a per-id lock file for its read-modify-write cycle, and
// every write replaces files atomically.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
	"github.com/ZebulonRouseFrantzich/manifold/internal/credential"
	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/keys"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metrics"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
	"github.com/ZebulonRouseFrantzich/manifold/internal/source"
	"github.com/ZebulonRouseFrantzich/manifold/internal/transaction"
)

const (
	// ScriptFilePermissions is the mode of written script files.
	ScriptFilePermissions = 0644
	// DefaultLockTimeout bounds how long an operation waits for another
	// operation on the same id.
	DefaultLockTimeout = 30 * time.Second

	scriptExt = ".lua"
)

// ErrInvalidRequest is returned alongside an error.invalid_id result.
var ErrInvalidRequest = errors.New("invalid request")

// Config holds the collaborators and directories of a ManifestService.
type Config struct {
	ScriptDir        string
	RevisionCacheDir string
	StatsDir         string
	StatsPrefix      string
	// LockDir holds the per-id lock files.
	LockDir     string
	LockTimeout time.Duration

	Source        *source.Source
	Credentials   *credential.Store
	ArchiveLimits archive.Limits
	Metrics       metrics.Metrics
	Logger        *zap.Logger
}

// ManifestService runs the public operations.
type ManifestService struct {
	root             string
	scriptDir        string
	revisionCacheDir string
	statsDir         string
	statsPrefix      string
	lockDir          string
	lockTimeout      time.Duration

	source      *source.Source
	keys        *keys.Engine
	extractor   *archive.Extractor
	credentials *credential.Store
	limits      archive.Limits
	metrics     metrics.Metrics
	logger      *zap.Logger
}

// New creates a ManifestService. Source and ScriptDir are required. A
// credential change purges the alternate source's cached responses.
func New(cfg Config) (*ManifestService, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.ScriptDir == "" {
		return nil, fmt.Errorf("script directory is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.LockDir == "" {
		cfg.LockDir = filepath.Join(cfg.ScriptDir, ".locks")
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if cfg.ArchiveLimits == (archive.Limits{}) {
		cfg.ArchiveLimits = archive.DefaultLimits()
	}

	s := &ManifestService{
		scriptDir:        cfg.ScriptDir,
		revisionCacheDir: cfg.RevisionCacheDir,
		statsDir:         cfg.StatsDir,
		statsPrefix:      cfg.StatsPrefix,
		lockDir:          cfg.LockDir,
		lockTimeout:      cfg.LockTimeout,
		source:           cfg.Source,
		keys:             keys.NewEngine(cfg.Source, cfg.Metrics, cfg.Logger.Named("keys")),
		extractor:        archive.NewExtractor(cfg.StatsPrefix, cfg.ArchiveLimits, cfg.Logger.Named("archive")),
		credentials:      cfg.Credentials,
		limits:           cfg.ArchiveLimits,
		metrics:          cfg.Metrics,
		logger:           cfg.Logger,
	}

	if s.credentials != nil {
		s.credentials.OnChange(func() {
			n := s.source.PurgeAlternate()
			s.logger.Debug("credential changed, purged alternate cache", zap.Int("entries", n))
		})
	}
	return s, nil
}

func (s *ManifestService) scriptPath(id string) string {
	return filepath.Join(s.scriptDir, id+scriptExt)
}

func (s *ManifestService) destinations() archive.Destinations {
	return archive.Destinations{
		ScriptDir:        s.scriptDir,
		RevisionCacheDir: s.revisionCacheDir,
		StatsDir:         s.statsDir,
	}
}

// IsInstalled reports whether the script for id exists.
func (s *ManifestService) IsInstalled(id string) bool {
	id, ok := ident.Normalize(id)
	if !ok {
		return false
	}
	fi, err := os.Stat(s.scriptPath(id))
	return err == nil && fi.Mode().IsRegular()
}

// readLocal parses the installed script for id. A missing file yields nil
// without error.
func (s *ManifestService) readLocal(id string) (*script.Document, error) {
	data, err := os.ReadFile(s.scriptPath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read script: %w", err)
	}
	return script.Parse(string(data)), nil
}

func (s *ManifestService) writeScript(id string, doc *script.Document) error {
	if err := transaction.WriteFileAtomic(s.scriptPath(id), []byte(doc.String()), ScriptFilePermissions); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// lock serializes operations on one id.
func (s *ManifestService) lock(ctx context.Context, id string) (*transaction.Lock, error) {
	lctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return transaction.AcquireLock(lctx, s.lockDir, id)
}

// DisplayName returns the best known name for id: the name lookup
// endpoint, then the metadata sidecar, then the comment on the primary
// entry of the installed script.
func (s *ManifestService) DisplayName(ctx context.Context, id string) (string, bool) {
	id, ok := ident.Normalize(id)
	if !ok {
		return "", false
	}
	if name, err := s.source.Name(ctx, id); err == nil {
		return name, true
	}
	if meta, err := s.source.Metadata(ctx, id); err == nil && meta.Name() != "" {
		return meta.Name(), true
	}
	if doc, err := s.readLocal(id); err == nil && doc != nil {
		if e, ok := doc.Entry(id); ok && e.Comment != "" {
			return e.Comment, true
		}
	}
	return "", false
}

// SetCredential stores token for the alternate source. An empty token
// clears it.
func (s *ManifestService) SetCredential(token string) Result {
	params := map[string]string{"mirror": mirror.Alternate.String()}
	if s.credentials == nil {
		s.metrics.IncOperation("set_credential", string(CodeNoCredential))
		return newResult(CodeNoCredential, params)
	}

	code := CodeCredentialSaved
	if err := s.credentials.Set(token); err != nil {
		code = classify(err)
		if code == CodeMirrorUnavailable {
			code = CodeWriteFailed
		}
		params["detail"] = err.Error()
		s.logger.Warn("credential update failed", logging.Err(err))
	} else if s.credentials.Token() == "" {
		code = CodeCredentialCleared
	}
	s.metrics.IncOperation("set_credential", string(code))
	return newResult(code, params)
}

// ReloadCredential re-reads the credential file.
func (s *ManifestService) ReloadCredential() Result {
	params := map[string]string{"mirror": mirror.Alternate.String()}
	if s.credentials == nil {
		return newResult(CodeNoCredential, params)
	}
	changed, err := s.credentials.Reload()
	if err != nil {
		s.logger.Warn("credential reload failed", logging.Err(err))
		params["detail"] = err.Error()
		return newResult(CodeInvalidCredential, params)
	}
	params["changed"] = fmt.Sprint(changed)
	return newResult(CodeCredentialReloaded, params)
}

// normalizeIDs validates ids, dropping duplicates and primaryID while
// keeping caller order. The first invalid id is returned with ok false.
func normalizeIDs(ids []string, primaryID string) (out []string, bad string, ok bool) {
	seen := map[string]bool{primaryID: true}
	for _, raw := range ids {
		id, valid := ident.Normalize(raw)
		if !valid {
			return nil, raw, false
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, "", true
}

func invalidID(op, id string, m metrics.Metrics) Result {
	m.IncOperation(op, string(CodeInvalidID))
	return newResult(CodeInvalidID, map[string]string{"id": id})
}
