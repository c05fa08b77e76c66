package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedArchive is returned for archives that are unreadable or
// outside the safety limits.
var ErrMalformedArchive = errors.New("malformed archive")

// Limits bounds what an archive may contain.
type Limits struct {
	MaxArchiveSize int64   `yaml:"max_archive_size"`
	MaxEntries     int     `yaml:"max_entries"`
	MaxEntrySize   int64   `yaml:"max_entry_size"`
	MaxTotalSize   int64   `yaml:"max_total_size"`
	MaxRatio       float64 `yaml:"max_ratio"`
}

// DefaultLimits returns the standard safety limits.
func DefaultLimits() Limits {
	return Limits{
		MaxArchiveSize: 100 << 20,
		MaxEntries:     1000,
		MaxEntrySize:   50 << 20,
		MaxTotalSize:   500 << 20,
		MaxRatio:       100,
	}
}

// Validate checks an archive against limits before anything is extracted.
// Declared sizes are checked here; Extract enforces the per-entry limit
// again on the actual decompressed bytes.
func Validate(data []byte, limits Limits) error {
	if int64(len(data)) > limits.MaxArchiveSize {
		return fmt.Errorf("%w: archive too large: %d bytes (max %d)", ErrMalformedArchive, len(data), limits.MaxArchiveSize)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedArchive, err)
	}
	if len(zr.File) > limits.MaxEntries {
		return fmt.Errorf("%w: too many entries: %d (max %d)", ErrMalformedArchive, len(zr.File), limits.MaxEntries)
	}

	var total uint64
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if err := checkEntryName(f.Name); err != nil {
			return err
		}
		if f.UncompressedSize64 > uint64(limits.MaxEntrySize) {
			return fmt.Errorf("%w: entry too large: %s (%d bytes)", ErrMalformedArchive, f.Name, f.UncompressedSize64)
		}
		total += f.UncompressedSize64
		if total > uint64(limits.MaxTotalSize) {
			return fmt.Errorf("%w: total uncompressed size exceeds %d bytes", ErrMalformedArchive, limits.MaxTotalSize)
		}
	}

	if len(data) > 0 && limits.MaxRatio > 0 {
		if ratio := float64(total) / float64(len(data)); ratio > limits.MaxRatio {
			return fmt.Errorf("%w: suspicious compression ratio %.1f:1", ErrMalformedArchive, ratio)
		}
	}
	return nil
}

func checkEntryName(name string) error {
	if strings.Contains(name, "..") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return fmt.Errorf("%w: path traversal: %s", ErrMalformedArchive, name)
	}
	// Drive letters and other volume markers.
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: absolute path: %s", ErrMalformedArchive, name)
	}
	return nil
}

var zipMagic = []byte("PK\x03\x04")

// IsArchive reports whether a response body is a zip archive, judged by its
// leading bytes or its declared content type.
func IsArchive(data []byte, contentType string) bool {
	if bytes.HasPrefix(data, zipMagic) {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "application/zip") || strings.Contains(ct, "application/x-zip")
}
