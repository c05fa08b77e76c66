// Package source retrieves manifest documents from the configured mirrors.
// Every successful retrieval is cached, so repeated lookups within the cache
// lifetime do not touch the network.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
	"github.com/ZebulonRouseFrantzich/manifold/internal/cache"
	"github.com/ZebulonRouseFrantzich/manifold/internal/fetch"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metadata"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metrics"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
)

var (
	// ErrUnavailable means no mirror produced usable content.
	ErrUnavailable = errors.New("mirror unavailable")
	// ErrNotPublished means every mirror answered that the document does not exist.
	ErrNotPublished = errors.New("not published")
	// ErrNoCredential means the authenticated source was requested without a token.
	ErrNoCredential = errors.New("no credential configured")
)

// Cache kinds.
const (
	KindScript    = "script"
	KindMetadata  = "metadata"
	KindName      = "name"
	KindAlternate = "alternate"
)

// Default timeouts.
const (
	DefaultMetadataTimeout = 10 * time.Second
	DefaultDownloadTimeout = 30 * time.Second
)

// TokenProvider supplies the bearer token for the authenticated source.
type TokenProvider interface {
	Token() string
}

// Config holds the collaborators of a Source.
type Config struct {
	Resolver *mirror.Resolver
	Fetcher  fetch.Fetcher
	Cache    *cache.Cache
	Tokens   TokenProvider
	Metrics  metrics.Metrics
	Logger   *zap.Logger

	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
}

// Source fetches documents through the cache.
type Source struct {
	resolver *mirror.Resolver
	fetcher  fetch.Fetcher
	cache    *cache.Cache
	tokens   TokenProvider
	metrics  metrics.Metrics
	logger   *zap.Logger

	metadataTimeout time.Duration
	downloadTimeout time.Duration
}

// New creates a Source. Resolver and Fetcher are required.
func New(cfg Config) (*Source, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.New(nil)
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	return &Source{
		resolver:        cfg.Resolver,
		fetcher:         cfg.Fetcher,
		cache:           cfg.Cache,
		tokens:          cfg.Tokens,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		metadataTimeout: cfg.MetadataTimeout,
		downloadTimeout: cfg.DownloadTimeout,
	}, nil
}

// HasAlternate reports whether the authenticated source is configured.
func (s *Source) HasAlternate() bool { return s.resolver.HasAlternate() }

// Script returns the public script for id from the first mirror that serves
// a document that compiles.
func (s *Source) Script(ctx context.Context, id string) (string, error) {
	v, err := s.firstPublic(ctx, mirror.KindScript, KindScript, id, func(text string) (any, error) {
		if err := script.Validate(text); err != nil {
			return nil, err
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Metadata returns the public metadata sidecar for id.
func (s *Source) Metadata(ctx context.Context, id string) (*metadata.Document, error) {
	v, err := s.firstPublic(ctx, mirror.KindMetadata, KindMetadata, id, func(text string) (any, error) {
		return metadata.Parse([]byte(text))
	})
	if err != nil {
		return nil, err
	}
	return v.(*metadata.Document), nil
}

func (s *Source) firstPublic(ctx context.Context, kind mirror.Kind, cacheKind, id string, decode func(string) (any, error)) (any, error) {
	key := cache.Key{Kind: cacheKind, Mirror: mirror.Public.String(), ID: id}
	if v, ok := s.cache.Get(key); ok {
		s.metrics.IncCacheLookup(cacheKind, true)
		return v, nil
	}
	s.metrics.IncCacheLookup(cacheKind, false)

	urls := s.resolver.Resolve(kind, id)
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no %s mirrors configured", ErrUnavailable, kind)
	}

	var lastErr error
	allNotFound := true
	for _, url := range urls {
		text, err := s.fetcher.FetchText(ctx, url, fetch.Options{Timeout: s.metadataTimeout})
		if err != nil {
			cat := fetch.CategoryOf(err)
			s.metrics.IncFetch(mirror.Public.String(), cacheKind, cat.String())
			s.logger.Debug("mirror fetch failed", logging.ID(id), logging.URL(url), logging.Err(err))
			if cat != fetch.CategoryNotFound {
				allNotFound = false
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		v, err := decode(text)
		if err != nil {
			s.metrics.IncFetch(mirror.Public.String(), cacheKind, "invalid")
			s.logger.Debug("mirror returned unusable document", logging.ID(id), logging.URL(url), logging.Err(err))
			allNotFound = false
			lastErr = err
			continue
		}

		s.metrics.IncFetch(mirror.Public.String(), cacheKind, "ok")
		s.cache.Put(key, v)
		return v, nil
	}

	if allNotFound {
		return nil, fmt.Errorf("%w: %s for %s", ErrNotPublished, kind, id)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Name returns the display name of id from the name lookup endpoint. The
// endpoint may answer with a JSON object carrying "name" or with plain text.
func (s *Source) Name(ctx context.Context, id string) (string, error) {
	key := cache.Key{Kind: KindName, Mirror: mirror.Public.String(), ID: id}
	if v, ok := cache.GetTyped[string](s.cache, key); ok {
		s.metrics.IncCacheLookup(KindName, true)
		return v, nil
	}
	s.metrics.IncCacheLookup(KindName, false)

	url := s.resolver.NameURL(id)
	if url == "" {
		return "", fmt.Errorf("%w: no name lookup configured", ErrUnavailable)
	}

	text, err := s.fetcher.FetchText(ctx, url, fetch.Options{Timeout: s.metadataTimeout, Accept: "application/json, text/plain"})
	if err != nil {
		s.metrics.IncFetch(mirror.Public.String(), KindName, fetch.CategoryOf(err).String())
		return "", err
	}

	name := parseName(text)
	if name == "" {
		s.metrics.IncFetch(mirror.Public.String(), KindName, "invalid")
		return "", fmt.Errorf("%w: empty name for %s", ErrUnavailable, id)
	}
	s.metrics.IncFetch(mirror.Public.String(), KindName, "ok")
	s.cache.Put(key, name)
	return name, nil
}

func parseName(text string) string {
	text = strings.TrimSpace(text)
	var obj struct {
		Name string `json:"name"`
	}
	if strings.HasPrefix(text, "{") {
		if json.Unmarshal([]byte(text), &obj) == nil {
			return strings.TrimSpace(obj.Name)
		}
		return ""
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Alternate downloads the authenticated source's payload for id, which is
// either a zip archive or a script.
func (s *Source) Alternate(ctx context.Context, id string) (fetch.Binary, error) {
	if !s.HasAlternate() {
		return fetch.Binary{}, fmt.Errorf("%w: alternate source not configured", ErrUnavailable)
	}
	token := ""
	if s.tokens != nil {
		token = s.tokens.Token()
	}
	if token == "" {
		return fetch.Binary{}, ErrNoCredential
	}

	key := cache.Key{Kind: KindAlternate, Mirror: mirror.Alternate.String(), ID: id}
	if v, ok := cache.GetTyped[fetch.Binary](s.cache, key); ok {
		s.metrics.IncCacheLookup(KindAlternate, true)
		return v, nil
	}
	s.metrics.IncCacheLookup(KindAlternate, false)

	bin, err := s.fetcher.FetchBinary(ctx, s.resolver.AlternateURL(id), fetch.Options{
		Authenticated: true,
		Token:         token,
		Timeout:       s.downloadTimeout,
	})
	if err != nil {
		s.metrics.IncFetch(mirror.Alternate.String(), KindAlternate, fetch.CategoryOf(err).String())
		s.logger.Debug("alternate fetch failed", logging.ID(id), logging.Err(err))
		if fetch.IsNotFound(err) {
			return fetch.Binary{}, fmt.Errorf("%w: %v", ErrNotPublished, err)
		}
		return fetch.Binary{}, err
	}

	s.metrics.IncFetch(mirror.Alternate.String(), KindAlternate, "ok")
	s.cache.Put(key, bin)
	return bin, nil
}

// AlternateScript returns the script the authenticated source serves for
// id, unpacking it from an archive when needed.
func (s *Source) AlternateScript(ctx context.Context, id string) (*script.Document, error) {
	bin, err := s.Alternate(ctx, id)
	if err != nil {
		return nil, err
	}

	if archive.IsArchive(bin.Data, bin.ContentType) {
		text, ok, err := archive.FindScript(bin.Data, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: archive for %s has no script", ErrUnavailable, id)
		}
		return script.Parse(text), nil
	}

	text := string(bin.Data)
	if !script.LooksLikeScript(text) {
		return nil, fmt.Errorf("%w: alternate response for %s is not a script", ErrUnavailable, id)
	}
	return script.Parse(text), nil
}

// PurgeAlternate drops every cached alternate-source entry.
func (s *Source) PurgeAlternate() int {
	return s.cache.PurgeMirror(mirror.Alternate.String())
}
