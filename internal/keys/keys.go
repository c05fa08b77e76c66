// Package keys resolves decryption keys and tokens for a set of entry ids.
package keys

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metadata"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metrics"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
)

const (
	// MaxWorkers caps concurrent per-id lookups.
	MaxWorkers = 5
	// ItemTimeout bounds a single per-id lookup.
	ItemTimeout = 10 * time.Second
)

// Source is what the engine needs from the mirrors.
type Source interface {
	Metadata(ctx context.Context, id string) (*metadata.Document, error)
	AlternateScript(ctx context.Context, id string) (*script.Document, error)
}

// Request describes one resolution pass.
type Request struct {
	IDs       []string
	PrimaryID string
	// PrimaryMetadata is fetched through the source when nil.
	PrimaryMetadata *metadata.Document
	Mirror          mirror.Class
}

// Resolution is what was found for one id.
type Resolution struct {
	Key   string
	Token string
}

// Engine resolves keys with bounded fan-out.
type Engine struct {
	source  Source
	metrics metrics.Metrics
	logger  *zap.Logger

	maxWorkers  int
	itemTimeout time.Duration
}

// NewEngine creates an engine over source.
func NewEngine(source Source, m metrics.Metrics, logger *zap.Logger) *Engine {
	if m == nil {
		m = metrics.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source:      source,
		metrics:     m,
		logger:      logger,
		maxWorkers:  MaxWorkers,
		itemTimeout: ItemTimeout,
	}
}

type found struct {
	id  string
	res Resolution
}

// Resolve returns the resolution for every id it could find one for. Ids
// without a key or token are absent from the result; that is not an error,
// callers emit a bare directive for them. Individual lookup failures are
// logged and absorbed.
func (e *Engine) Resolve(ctx context.Context, req Request) map[string]Resolution {
	start := time.Now()
	defer func() { e.metrics.ObserveKeyResolution(time.Since(start).Seconds()) }()

	out := make(map[string]Resolution)
	ids := dedupe(req.IDs)
	if len(ids) == 0 {
		return out
	}

	var lookup func(ctx context.Context, id string) (Resolution, bool)
	remaining := ids

	if req.Mirror == mirror.Alternate {
		lookup = e.alternateLookup
	} else {
		primary := req.PrimaryMetadata
		if primary == nil && req.PrimaryID != "" {
			doc, err := e.source.Metadata(ctx, req.PrimaryID)
			if err != nil {
				e.logger.Debug("primary metadata unavailable", logging.ID(req.PrimaryID), logging.Err(err))
			}
			primary = doc
		}

		remaining = remaining[:0:0]
		for _, id := range ids {
			if primary != nil {
				if key, ok := primary.LookupKey(id); ok {
					out[id] = Resolution{Key: key}
					continue
				}
			}
			remaining = append(remaining, id)
		}
		lookup = e.metadataLookup
	}

	for _, f := range e.fanOut(ctx, remaining, lookup) {
		out[f.id] = f.res
	}
	return out
}

// fanOut runs lookup for every id with at most min(maxWorkers, len(ids))
// in flight. Workers only send; the collector below is the single reader.
func (e *Engine) fanOut(ctx context.Context, ids []string, lookup func(context.Context, string) (Resolution, bool)) []found {
	if len(ids) == 0 {
		return nil
	}

	results := make(chan found, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(e.maxWorkers, len(ids)))

	for _, id := range ids {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, e.itemTimeout)
			defer cancel()
			if res, ok := lookup(itemCtx, id); ok {
				results <- found{id: id, res: res}
			}
			return nil
		})
	}
	g.Wait()
	close(results)

	var out []found
	for f := range results {
		out = append(out, f)
	}
	return out
}

func (e *Engine) metadataLookup(ctx context.Context, id string) (Resolution, bool) {
	doc, err := e.source.Metadata(ctx, id)
	if err != nil {
		e.logger.Debug("key lookup failed", logging.ID(id), logging.Err(err))
		return Resolution{}, false
	}
	key, ok := doc.LookupKey(id)
	if !ok {
		key, ok = doc.PrimaryKey()
	}
	if !ok {
		return Resolution{}, false
	}
	return Resolution{Key: key}, true
}

func (e *Engine) alternateLookup(ctx context.Context, id string) (Resolution, bool) {
	doc, err := e.source.AlternateScript(ctx, id)
	if err != nil {
		e.logger.Debug("alternate key lookup failed", logging.ID(id), logging.Err(err))
		return Resolution{}, false
	}

	var res Resolution
	if entry, ok := doc.Entry(id); ok {
		res.Key = entry.Key
	}
	res.Token, _ = doc.Token(id)
	if res.Key == "" && res.Token == "" {
		return Resolution{}, false
	}
	return res, true
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
