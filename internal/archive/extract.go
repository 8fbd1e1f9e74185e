package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/Belphemur/zipfetch/internal/config"
)

// Extraction summarises what ExtractAll wrote
type Extraction struct {
	Files []string // regular files, relative to the target, in archive order
	Dirs  int
	Bytes int64
}

// ExtractAll writes every verified entry below targetDir on fsys, creating
// targetDir when needed. Existing files are truncated and rewritten.
func (a *Archive) ExtractAll(ctx context.Context, fsys afero.Fs, targetDir string) (*Extraction, error) {
	if !a.verified {
		return nil, errors.New("archive must be verified before extraction")
	}
	logger := config.GetLogger()

	if err := fsys.MkdirAll(targetDir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("failed to create target directory: %w", err)
	}

	result := &Extraction{Files: make([]string, 0, len(a.entries))}
	for _, e := range a.entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		dest := filepath.Join(targetDir, filepath.FromSlash(e.Name))
		if e.Dir {
			if err := fsys.MkdirAll(dest, e.Mode); err != nil {
				return result, fmt.Errorf("failed to create directory %s: %w", e.Name, err)
			}
			result.Dirs++
			continue
		}

		written, err := extractFile(fsys, e, dest)
		if err != nil {
			return result, err
		}

		logger.Debug().
			Str("entry", e.Name).
			Int64("size", written).
			Msg("Extracted archive entry")

		result.Files = append(result.Files, e.Name)
		result.Bytes += written
	}

	return result, nil
}

func extractFile(fsys afero.Fs, e entry, dest string) (int64, error) {
	if err := fsys.MkdirAll(filepath.Dir(dest), defaultDirMode); err != nil {
		return 0, fmt.Errorf("failed to create parent directory for %s: %w", e.Name, err)
	}

	rc, err := e.file.Open()
	if err != nil {
		return 0, wrapReadError(e.Name, err)
	}
	defer rc.Close()

	out, err := fsys.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, e.Mode)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", e.Name, err)
	}

	written, copyErr := io.Copy(out, rc)
	closeErr := out.Close()
	if copyErr != nil {
		return written, wrapReadError(e.Name, copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("failed to write %s: %w", e.Name, closeErr)
	}
	return written, nil
}
