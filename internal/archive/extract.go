// Package archive validates and unpacks the zip bundles served by the
// authenticated source, routing each entry to its destination directory.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ZebulonRouseFrantzich/manifold/internal/logging"
	"github.com/ZebulonRouseFrantzich/manifold/internal/script"
	"github.com/ZebulonRouseFrantzich/manifold/internal/transaction"
)

const (
	extScript   = ".lua"
	extRevision = ".manifest"
	extStats    = ".bin"
	extMetadata = ".json"
)

// Destinations are the directories entries are routed to.
type Destinations struct {
	ScriptDir        string
	RevisionCacheDir string
	StatsDir         string
}

// Result reports an extraction.
type Result struct {
	Success bool
	// MainScript is the final content of the first script file written.
	MainScript     string
	InstalledPaths []string
	Error          string
	// Cause is the underlying error when Success is false.
	Cause error `json:"-"`
}

// ErrNoScripts is the Cause of an extraction that found no script file.
var ErrNoScripts = errors.New("archive contains no script files")

func failed(err error) Result {
	return Result{Error: err.Error(), Cause: err}
}

// Extractor unpacks archives.
type Extractor struct {
	statsPrefix string
	limits      Limits
	logger      *zap.Logger
}

// NewExtractor creates an extractor. Stats files are recognized by
// statsPrefix; an empty prefix disables stats routing.
func NewExtractor(statsPrefix string, limits Limits, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{statsPrefix: statsPrefix, limits: limits, logger: logger}
}

type entry struct {
	name string
	data []byte
}

// Extract routes every entry of the archive into dest. All entries are read
// into memory before anything is written, and the writes are committed as
// one transaction. An archive without any script file installs nothing.
func (e *Extractor) Extract(data []byte, dest Destinations) Result {
	entries, err := e.readAll(data)
	if err != nil {
		return failed(err)
	}

	txn := transaction.New()
	var mainScript string
	scripts := 0

	for _, ent := range entries {
		lower := strings.ToLower(ent.name)
		switch {
		case strings.HasSuffix(lower, extScript):
			target := filepath.Join(dest.ScriptDir, ent.name)
			content, err := mergeScript(target, ent.name, ent.data)
			if err != nil {
				return failed(err)
			}
			if scripts == 0 {
				mainScript = content
			}
			scripts++
			txn.Stage(target, []byte(content), 0644)

		case strings.HasSuffix(lower, extRevision):
			txn.Stage(filepath.Join(dest.RevisionCacheDir, ent.name), ent.data, 0644)

		case e.isStats(lower):
			txn.Stage(filepath.Join(dest.StatsDir, ent.name), ent.data, 0644)

		case strings.HasSuffix(lower, extMetadata):
			txn.Stage(filepath.Join(dest.ScriptDir, ent.name), ent.data, 0644)

		default:
			e.logger.Debug("skipping archive entry", zap.String("entry", ent.name))
		}
	}

	if scripts == 0 {
		return failed(ErrNoScripts)
	}

	if err := txn.Commit(); err != nil {
		return failed(err)
	}
	for _, p := range txn.Written() {
		e.logger.Debug("installed archive entry", logging.Path(p))
	}
	return Result{Success: true, MainScript: mainScript, InstalledPaths: txn.Written()}
}

func (e *Extractor) isStats(lowerName string) bool {
	if e.statsPrefix == "" || !strings.HasSuffix(lowerName, extStats) {
		return false
	}
	return strings.HasPrefix(lowerName, strings.ToLower(e.statsPrefix)+"_")
}

// readAll decompresses every regular entry. Entry names are reduced to
// their base name; directory structure inside the archive is not kept.
func (e *Extractor) readAll(data []byte) ([]entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	var out []entry
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := checkEntryName(f.Name); err != nil {
			return nil, err
		}
		name := path.Base(strings.ReplaceAll(f.Name, `\`, "/"))
		if name == "." || name == "/" {
			continue
		}

		body, err := e.readEntry(f)
		if err != nil {
			return nil, err
		}
		out = append(out, entry{name: name, data: body})
	}
	return out, nil
}

func (e *Extractor) readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrMalformedArchive, f.Name, err)
	}
	defer rc.Close()

	limit := e.limits.MaxEntrySize
	if limit <= 0 {
		limit = DefaultLimits().MaxEntrySize
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, f.Name, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: entry too large: %s", ErrMalformedArchive, f.Name)
	}
	return body, nil
}

// mergeScript carries user-added entries from an existing script at target
// into the extracted content.
func mergeScript(target, name string, data []byte) (string, error) {
	content := script.Parse(string(data))

	existing, err := os.ReadFile(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return content.String(), nil
		}
		return "", fmt.Errorf("read existing script: %w", err)
	}

	primaryID := strings.TrimSuffix(name, filepath.Ext(name))
	prev := script.Parse(string(existing))
	return content.AppendEntries(prev.UserEntries(primaryID), prev.Tokens()).String(), nil
}

// FindScript returns the script inside an archive that belongs to id: the
// entry named <id>.lua, or else the first script entry.
func FindScript(data []byte, id string) (string, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}

	var fallback *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := path.Base(strings.ReplaceAll(f.Name, `\`, "/"))
		if !strings.EqualFold(filepath.Ext(name), extScript) {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == id {
			return readScript(f)
		}
		if fallback == nil {
			fallback = f
		}
	}
	if fallback == nil {
		return "", false, nil
	}
	return readScript(fallback)
}

func readScript(f *zip.File) (string, bool, error) {
	rc, err := f.Open()
	if err != nil {
		return "", false, fmt.Errorf("%w: open %s: %v", ErrMalformedArchive, f.Name, err)
	}
	defer rc.Close()

	body, err := io.ReadAll(io.LimitReader(rc, DefaultLimits().MaxEntrySize))
	if err != nil {
		return "", false, fmt.Errorf("%w: read %s: %v", ErrMalformedArchive, f.Name, err)
	}
	return string(body), true, nil
}
