package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/metadata"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
)

// Candidate origins.
const (
	OriginMetadata  = "metadata"
	OriginLocal     = "local"
	OriginAlternate = "alternate"
)

// ListRequest selects the title and the source used for listing.
type ListRequest struct {
	ID     string
	Mirror mirror.Class
}

// ListOptionalEntries lists the optional entries available for an id. The
// base script must be retrievable from the chosen source, but it need not
// be installed locally. AlreadyInstalled reflects the local script only.
func (s *ManifestService) ListOptionalEntries(ctx context.Context, req ListRequest) (*ListResult, error) {
	const op = "list"
	id, ok := ident.Normalize(req.ID)
	if !ok {
		return &ListResult{Result: invalidID(op, req.ID, s.metrics)}, fmt.Errorf("%w: id %q", ErrInvalidRequest, req.ID)
	}
	class := classOrDefault(req.Mirror)
	log := logging.ForOperation(s.logger, op, id).With(logging.Mirror(class.String()))

	local, err := s.readLocal(id)
	if err != nil {
		log.Warn("local script unreadable", logging.Err(err))
	}

	candidates, err := s.candidates(ctx, log, id, class, local)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		code := classify(err)
		if code == CodeMirrorUnavailable {
			code = CodeListFailed
		}
		log.Warn("listing failed", zap.String("code", string(code)), logging.Err(err))
		s.metrics.IncOperation(op, string(code))
		return &ListResult{Result: newResult(code, map[string]string{
			"id":     id,
			"mirror": class.String(),
			"detail": err.Error(),
		})}, nil
	}

	s.metrics.IncOperation(op, string(CodeListReady))
	return &ListResult{
		Result: newResult(CodeListReady, map[string]string{
			"id":     id,
			"mirror": class.String(),
			"count":  fmt.Sprint(len(candidates)),
		}),
		Candidates: candidates,
	}, nil
}

// candidates builds the union of advertised, locally present and (for the
// alternate source) alternately discovered entries. An error means the base
// script could not be retrieved from the chosen source.
func (s *ManifestService) candidates(ctx context.Context, log *zap.Logger, id string, class mirror.Class, local *script.Document) ([]Candidate, error) {
	var alternate *script.Document
	if class == mirror.Alternate {
		doc, err := s.source.AlternateScript(ctx, id)
		if err != nil {
			return nil, err
		}
		alternate = doc
	} else if _, err := s.source.Script(ctx, id); err != nil {
		return nil, err
	}

	meta, err := s.source.Metadata(ctx, id)
	if err != nil {
		log.Debug("metadata unavailable for listing", logging.Err(err))
		meta = nil
	}

	b := candidateBuilder{primary: id, local: local, index: make(map[string]int)}
	if meta != nil {
		for _, adv := range meta.Advertised() {
			if adv.HasDepot && !hasKey(meta, adv.ID) {
				continue
			}
			b.add(adv.ID, adv.Name, OriginMetadata)
		}
	}
	if local != nil {
		for _, e := range local.Entries() {
			b.add(e.ID, e.Comment, OriginLocal)
		}
	}
	if alternate != nil {
		for _, e := range alternate.Entries() {
			b.add(e.ID, e.Comment, OriginAlternate)
		}
	}
	return b.list(), nil
}

func hasKey(meta *metadata.Document, id string) bool {
	_, ok := meta.LookupKey(id)
	return ok
}

type candidateBuilder struct {
	primary string
	local   *script.Document
	index   map[string]int
	out     []Candidate
}

// add records id once; a later source only fills in a missing name.
func (b *candidateBuilder) add(id, name, origin string) {
	if id == "" || id == b.primary {
		return
	}
	if i, ok := b.index[id]; ok {
		if b.out[i].Name == "" {
			b.out[i].Name = name
		}
		return
	}
	b.index[id] = len(b.out)
	b.out = append(b.out, Candidate{
		ID:               id,
		Name:             name,
		AlreadyInstalled: b.local != nil && b.local.HasEntry(id),
		Origin:           origin,
	})
}

func (b *candidateBuilder) list() []Candidate {
	out := make([]Candidate, len(b.out))
	for i, c := range b.out {
		if c.Name == "" {
			c.Name = fallbackName(c.ID)
		}
		out[i] = c
	}
	return out
}

func fallbackName(id string) string {
	return "Entry " + id
}
