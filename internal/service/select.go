package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/keys"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
)

// InstallSelectedRequest replaces the optional entries of a title. An
// empty Selected clears every optional entry; a selection naming only the
// title itself leaves them alone.
type InstallSelectedRequest struct {
	ID       string
	Selected []string
	Mirror   mirror.Class
}

// InstallSelected installs the base script if needed, then rewrites the
// optional entries so that exactly Selected follow it, in caller order.
// Repeating a call with the same selection leaves the file unchanged.
func (s *ManifestService) InstallSelected(ctx context.Context, req InstallSelectedRequest) (*InstallSelectedResult, error) {
	const op = "install_selected"
	id, ok := ident.Normalize(req.ID)
	if !ok {
		return &InstallSelectedResult{Result: invalidID(op, req.ID, s.metrics)}, fmt.Errorf("%w: id %q", ErrInvalidRequest, req.ID)
	}
	selected, bad, ok := normalizeIDs(req.Selected, id)
	if !ok {
		return &InstallSelectedResult{Result: invalidID(op, bad, s.metrics)}, fmt.Errorf("%w: selected id %q", ErrInvalidRequest, bad)
	}
	class := classOrDefault(req.Mirror)
	log := logging.ForOperation(s.logger, op, id).With(logging.Mirror(class.String()), zap.Int("selected", len(selected)))

	fail := func(err error) *InstallSelectedResult {
		code := classify(err)
		log.Warn("install selected failed", zap.String("code", string(code)), logging.Err(err))
		s.metrics.IncOperation(op, string(code))
		return &InstallSelectedResult{
			Result: newResult(code, map[string]string{
				"id":     id,
				"mirror": class.String(),
				"detail": err.Error(),
			}),
			InstalledIDs: []string{},
			FailedIDs:    selected,
		}
	}

	lock, err := s.lock(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return fail(err), nil
	}
	defer func() { _ = lock.Release() }()

	if _, err := s.ensureBase(ctx, log, id, class); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return fail(err), nil
	}

	doc, err := s.readLocal(id)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrWriteFailed, err)), nil
	}
	if doc == nil {
		return fail(fmt.Errorf("%w: script for %s vanished after install", ErrWriteFailed, id)), nil
	}

	resolved := s.keys.Resolve(ctx, keys.Request{IDs: selected, PrimaryID: id, Mirror: class})
	selections := s.selections(ctx, id, selected, resolved, doc)

	switch {
	case len(req.Selected) == 0:
		doc = doc.RemoveAllOptional(id).Append(nil)
	case len(selected) > 0:
		doc = doc.RemoveEntries(selected, id).Append(selections)
	}

	if err := s.writeScript(id, doc); err != nil {
		return fail(err), nil
	}

	log.Info("optional entries applied", zap.Int("keyed", countKeyed(selections)))
	s.metrics.IncOperation(op, string(CodeInstallChangesApplied))
	return &InstallSelectedResult{
		Result: newResult(CodeInstallChangesApplied, map[string]string{
			"id":     id,
			"mirror": class.String(),
			"count":  fmt.Sprint(len(selected)),
		}),
		InstalledIDs: append([]string{}, selected...),
		FailedIDs:    []string{},
	}, nil
}

// selections pairs each selected id with its resolved key and token. Keys
// and tokens already present in the document are kept when resolution finds
// nothing, and names fall back from metadata to the existing comment.
func (s *ManifestService) selections(ctx context.Context, id string, selected []string, resolved map[string]keys.Resolution, doc *script.Document) []script.Selection {
	names := make(map[string]string)
	if meta, err := s.source.Metadata(ctx, id); err == nil {
		for _, adv := range meta.Advertised() {
			names[adv.ID] = adv.Name
		}
	}

	out := make([]script.Selection, 0, len(selected))
	for _, sid := range selected {
		sel := script.Selection{ID: sid, Name: names[sid]}
		res := resolved[sid]
		sel.Key, sel.Token = res.Key, res.Token

		if existing, ok := doc.Entry(sid); ok {
			sel.Secondary = existing.Secondary
			if sel.Key == "" {
				sel.Key = existing.Key
			}
			if sel.Name == "" {
				sel.Name = existing.Comment
			}
		}
		if sel.Token == "" {
			sel.Token, _ = doc.Token(sid)
		}
		if sel.Name == "" {
			sel.Name = fallbackName(sid)
		}
		out = append(out, sel)
	}
	return out
}

func countKeyed(sels []script.Selection) int {
	n := 0
	for _, s := range sels {
		if s.Key != "" {
			n++
		}
	}
	return n
}
