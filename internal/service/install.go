package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/archive"
	"github.com/ZebulonRouseFrantzich/manifold/internal/ident"
	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/mirror"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
	"github.com/ZebulonRouseFrantzich/manifold/internal/source"
	"github.com/ZebulonRouseFrantzich/manifold/internal/transaction"
)

// InstallBaseRequest selects the title to install and the source to use.
type InstallBaseRequest struct {
	ID     string
	Mirror mirror.Class
}

// InstallBase installs the base script for an id. When the script already
// exists nothing is fetched for it, but the candidate list is always
// recomputed so newly published optional entries show up.
func (s *ManifestService) InstallBase(ctx context.Context, req InstallBaseRequest) (*InstallResult, error) {
	const op = "install_base"
	id, ok := ident.Normalize(req.ID)
	if !ok {
		return &InstallResult{Result: invalidID(op, req.ID, s.metrics)}, fmt.Errorf("%w: id %q", ErrInvalidRequest, req.ID)
	}
	class := classOrDefault(req.Mirror)
	log := logging.ForOperation(s.logger, op, id).With(logging.Mirror(class.String()))

	lock, err := s.lock(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return s.installFailure(ctx, log, op, id, class, err), nil
	}
	defer func() { _ = lock.Release() }()

	code, err := s.ensureBase(ctx, log, id, class)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return s.installFailure(ctx, log, op, id, class, err), nil
	}

	local, err := s.readLocal(id)
	if err != nil {
		return s.installFailure(ctx, log, op, id, class, fmt.Errorf("%w: %v", ErrWriteFailed, err)), nil
	}
	candidates, err := s.candidates(ctx, log, id, class, local)
	if err != nil {
		log.Info("candidate listing failed after install", logging.Err(err))
	}

	name, _ := s.DisplayName(ctx, id)
	s.metrics.IncOperation(op, string(code))
	log.Info("base installed", zap.String("code", string(code)), zap.Int("candidates", len(candidates)))
	return &InstallResult{
		Result:     newResult(code, map[string]string{"id": id, "name": name, "mirror": class.String()}),
		Name:       name,
		Candidates: candidates,
	}, nil
}

func (s *ManifestService) installFailure(ctx context.Context, log *zap.Logger, op, id string, class mirror.Class, err error) *InstallResult {
	code := classify(err)
	name, _ := s.DisplayName(ctx, id)
	log.Warn("install failed", zap.String("code", string(code)), logging.Err(err))
	s.metrics.IncOperation(op, string(code))
	return &InstallResult{
		Result: newResult(code, map[string]string{
			"id":     id,
			"name":   name,
			"mirror": class.String(),
			"detail": err.Error(),
		}),
		Name: name,
	}
}

// ensureBase installs the base script for id if it is absent. The caller
// holds the lock for id.
func (s *ManifestService) ensureBase(ctx context.Context, log *zap.Logger, id string, class mirror.Class) (Code, error) {
	if s.IsInstalled(id) {
		return CodeInstallAlready, nil
	}
	var err error
	if class == mirror.Alternate {
		err = s.installAlternate(ctx, log, id)
	} else {
		err = s.installPublic(ctx, log, id)
	}
	if err != nil {
		return "", err
	}
	return CodeInstallAdded, nil
}

func (s *ManifestService) installPublic(ctx context.Context, log *zap.Logger, id string) error {
	text, err := s.source.Script(ctx, id)
	if err != nil {
		return err
	}
	doc := script.Parse(text)

	meta, err := s.source.Metadata(ctx, id)
	if err != nil {
		// The script is still usable without keys.
		log.Info("metadata unavailable, saving script unprocessed", logging.Err(err))
	} else {
		doc = doc.InjectKeys(id, meta)
	}
	return s.writeScript(id, doc)
}

// installAlternate installs from the authenticated source, which serves
// either an archive or a bare script.
func (s *ManifestService) installAlternate(ctx context.Context, log *zap.Logger, id string) error {
	bin, err := s.source.Alternate(ctx, id)
	if err != nil {
		return err
	}

	if !archive.IsArchive(bin.Data, bin.ContentType) {
		text := string(bin.Data)
		if err := script.Validate(text); err != nil {
			return fmt.Errorf("%w: %v", source.ErrUnavailable, err)
		}
		if !script.LooksLikeScript(text) {
			return fmt.Errorf("%w: response for %s has no directives", source.ErrUnavailable, id)
		}
		return s.writeScript(id, script.Parse(text))
	}

	if err := archive.Validate(bin.Data, s.limits); err != nil {
		return err
	}
	res := s.extractor.Extract(bin.Data, s.destinations())
	if !res.Success {
		if errors.Is(res.Cause, archive.ErrMalformedArchive) || errors.Is(res.Cause, archive.ErrNoScripts) {
			return res.Cause
		}
		return fmt.Errorf("%w: %s", ErrWriteFailed, res.Error)
	}
	log.Info("archive extracted", zap.Int("files", len(res.InstalledPaths)))

	// An archive whose script is named for another id still installs this one.
	if !s.IsInstalled(id) {
		if err := transaction.WriteFileAtomic(s.scriptPath(id), []byte(res.MainScript), ScriptFilePermissions); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}
	return nil
}

func classOrDefault(c mirror.Class) mirror.Class {
	if c == "" {
		return mirror.Public
	}
	return c
}
