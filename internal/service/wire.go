package service

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/cache"
	"github.com/ZebulonRouseFrantzich/manifold/internal/config"
	"github.com/ZebulonRouseFrantzich/manifold/internal/credential"
	"github.com/ZebulonRouseFrantzich/manifold/internal/fetch"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metrics"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/platform"
	"github.com/ZebulonRouseFrantzich/manifold/internal/source"
)

// Options supplies the process-level collaborators for NewFromConfig. Zero
// values select the production implementations.
type Options struct {
	Fetcher  fetch.Fetcher
	Metrics  metrics.Metrics
	Logger   *zap.Logger
	Clock    cache.Clock
	Detector platform.Detector
}

// NewFromConfig locates the install root and builds a ManifestService with
// its own cache and credential store from cfg.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts Options) (*ManifestService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Fetcher == nil {
		opts.Fetcher = fetch.NewHTTPFetcher()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Noop{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Detector == nil {
		opts.Detector = platform.NewDetector()
	}

	locator := &platform.Locator{Root: cfg.InstallRoot, Detector: opts.Detector}
	root, err := locator.LocateInstallRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("locate install root: %w", err)
	}
	opts.Logger.Debug("install root located", zap.String("root", root))

	creds := credential.NewStore(cfg.CredentialFile, cfg.CredentialPrefix)
	src, err := source.New(source.Config{
		Resolver:        mirror.NewResolver(cfg.Mirrors.Endpoints()),
		Fetcher:         opts.Fetcher,
		Cache:           cache.New(opts.Clock),
		Tokens:          creds,
		Metrics:         opts.Metrics,
		Logger:          opts.Logger.Named("source"),
		MetadataTimeout: cfg.Timeouts.Metadata,
		DownloadTimeout: cfg.Timeouts.Download,
	})
	if err != nil {
		return nil, err
	}

	svc, err := New(Config{
		ScriptDir:        cfg.Resolve(root, cfg.Layout.ScriptDir),
		RevisionCacheDir: cfg.Resolve(root, cfg.Layout.RevisionCacheDir),
		StatsDir:         cfg.Resolve(root, cfg.Layout.StatsDir),
		StatsPrefix:      cfg.Layout.StatsPrefix,
		LockDir:          filepath.Join(cfg.StateDir, "locks"),
		Source:           src,
		Credentials:      creds,
		ArchiveLimits:    cfg.Archive,
		Metrics:          opts.Metrics,
		Logger:           opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	svc.root = root
	return svc, nil
}

// Root returns the install root the service was built for, if known.
func (s *ManifestService) Root() string { return s.root }
