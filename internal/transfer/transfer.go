// Copyright (c) 2026 PassGuard Team
// PassGuard - password rule profile manager
// This source code is licensed under the MIT license found in the LICENSE file.

// Package transfer writes and restores compressed profile backups. An
// archive is a zstd stream holding one pretty-printed JSON envelope.
package transfer // import "github.com/TomPlanche/PassGuard/internal/transfer"

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/TomPlanche/PassGuard/internal/model"
)

// SchemaVersion is the envelope version written by WriteArchive.
const SchemaVersion = 1

// ErrUnsupportedVersion is returned for archives written by a newer release.
var ErrUnsupportedVersion = errors.New("unsupported archive schema version")

// Archive is the envelope stored inside a backup.
type Archive struct {
	SchemaVersion int                 `json:"schemaVersion"`
	ExportedAt    int64               `json:"exportedAt"`
	Profiles      []model.RuleProfile `json:"profiles"`
}

// Restorer is the part of the repository a restore writes through.
type Restorer interface {
	ImportProfilesFromJSON(ctx context.Context, text string) (int, error)
	ReplaceProfiles(ctx context.Context, profiles []model.RuleProfile) error
}

// Options controls Restore.
type Options struct {
	// Full replaces the whole collection instead of merging into it.
	Full bool
}

// DefaultArchiveName returns the file name used when none is given.
func DefaultArchiveName(now time.Time) string {
	return fmt.Sprintf("passguard-backup-%s.json.zst", now.Format("2006-01-02"))
}

// WriteArchive writes profiles to w as a compressed archive.
func WriteArchive(w io.Writer, profiles []model.RuleProfile, now time.Time) error {
	if profiles == nil {
		profiles = []model.RuleProfile{}
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Archive{
		SchemaVersion: SchemaVersion,
		ExportedAt:    model.Millis(now),
		Profiles:      profiles,
	}); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush archive: %w", err)
	}
	return nil
}

// ReadArchive decodes an archive written by WriteArchive.
func ReadArchive(r io.Reader) (*Archive, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()
	var a Archive
	if err := json.NewDecoder(zr).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	if a.SchemaVersion < 1 || a.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, a.SchemaVersion)
	}
	if a.Profiles == nil {
		a.Profiles = []model.RuleProfile{}
	}
	return &a, nil
}

// Restore reads an archive from r and applies it through repo. By default
// the archived profiles are merged like an import, dropping invalid entries;
// with Options.Full they replace the collection and any invalid entry aborts
// the restore. It returns the number of profiles applied.
func Restore(ctx context.Context, repo Restorer, r io.Reader, opts Options) (int, error) {
	a, err := ReadArchive(r)
	if err != nil {
		return 0, err
	}
	if opts.Full {
		if err := repo.ReplaceProfiles(ctx, a.Profiles); err != nil {
			return 0, fmt.Errorf("replace profiles: %w", err)
		}
		return len(a.Profiles), nil
	}
	text, err := json.Marshal(a.Profiles)
	if err != nil {
		return 0, fmt.Errorf("encode profiles: %w", err)
	}
	n, err := repo.ImportProfilesFromJSON(ctx, string(text))
	if err != nil {
		return 0, fmt.Errorf("merge profiles: %w", err)
	}
	return n, nil
}
