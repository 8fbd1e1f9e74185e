// Package archive verifies and expands ZIP archives.
//
// Every entry is checked before the first byte is written, so a rejected
// archive leaves the target directory untouched.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"
	"golang.org/x/text/encoding/charmap"

	"github.com/Belphemur/zipfetch/internal/apperrors"
	"github.com/Belphemur/zipfetch/internal/models"
)

const (
	defaultFileMode fs.FileMode = 0o644
	defaultDirMode  fs.FileMode = 0o755
)

// Limits bounds what an archive may expand to. Zero values mean unlimited.
type Limits struct {
	MaxEntries       int
	MaxExtractedSize int64
}

type entry struct {
	models.ArchiveEntry
	file *zip.File
}

// Archive is an opened ZIP archive
type Archive struct {
	reader   *zip.Reader
	closer   io.Closer
	entries  []entry
	verified bool
}

// Open reads the central directory of the ZIP archive in r.
func Open(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &apperrors.ErrInvalidArchive{Reason: "reading central directory", Err: err}
	}
	return &Archive{reader: zr}, nil
}

// OpenFile opens the archive stored at name on fsys. The caller must Close it.
func OpenFile(fsys afero.Fs, name string) (*Archive, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat archive file: %w", err)
	}

	a, err := Open(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// Close releases the underlying file when the archive was opened with OpenFile.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// Verify checks every entry name and the archive totals against limits.
// It must succeed before ExtractAll can be called.
func (a *Archive) Verify(limits Limits) ([]models.ArchiveEntry, error) {
	if limits.MaxEntries > 0 && len(a.reader.File) > limits.MaxEntries {
		return nil, &apperrors.ErrLimitExceeded{
			Limit:  "entry count",
			Max:    int64(limits.MaxEntries),
			Actual: int64(len(a.reader.File)),
		}
	}

	entries := make([]entry, 0, len(a.reader.File))
	var total uint64
	for _, f := range a.reader.File {
		rawName := decodeName(f)
		mode := f.Mode()

		if mode&fs.ModeSymlink != 0 {
			return nil, apperrors.NewUnsafeEntryPathError(rawName, "symbolic links are not extracted")
		}
		if !mode.IsRegular() && !mode.IsDir() {
			return nil, apperrors.NewUnsafeEntryPathError(rawName, "unsupported entry type "+mode.Type().String())
		}

		name, err := sanitizeName(rawName)
		if err != nil {
			return nil, err
		}
		// "./" and similar resolve to the target itself
		if name == "" {
			continue
		}

		isDir := mode.IsDir() || strings.HasSuffix(rawName, "/")
		if !isDir {
			if f.UncompressedSize64 > math.MaxInt64-total {
				return nil, &apperrors.ErrInvalidArchive{Reason: "declared sizes overflow"}
			}
			total += f.UncompressedSize64
			if limits.MaxExtractedSize > 0 && total > uint64(limits.MaxExtractedSize) {
				return nil, &apperrors.ErrLimitExceeded{
					Limit:  "extracted size",
					Max:    limits.MaxExtractedSize,
					Actual: int64(total),
				}
			}
		}

		entries = append(entries, entry{
			ArchiveEntry: models.ArchiveEntry{
				Name: name,
				Dir:  isDir,
				Size: f.UncompressedSize64,
				Mode: entryMode(mode, isDir),
			},
			file: f,
		})
	}

	a.entries = entries
	a.verified = true

	verified := make([]models.ArchiveEntry, len(entries))
	for i, e := range entries {
		verified[i] = e.ArchiveEntry
	}
	return verified, nil
}

// sanitizeName returns the cleaned, slash-separated relative path of an entry,
// or an ErrUnsafeEntryPath when the entry could land outside the target.
func sanitizeName(name string) (string, error) {
	if name == "" {
		return "", apperrors.NewUnsafeEntryPathError(name, "empty name")
	}
	if strings.ContainsRune(name, 0) {
		return "", apperrors.NewUnsafeEntryPathError(name, "NUL byte in name")
	}

	// archives built on Windows may use backslashes as separators
	normalized := strings.ReplaceAll(name, `\`, "/")

	if strings.HasPrefix(normalized, "/") {
		return "", apperrors.NewUnsafeEntryPathError(name, "absolute path")
	}
	if len(normalized) >= 2 && normalized[1] == ':' {
		return "", apperrors.NewUnsafeEntryPathError(name, "drive letter")
	}
	for _, segment := range strings.Split(normalized, "/") {
		if segment == ".." {
			return "", apperrors.NewUnsafeEntryPathError(name, "parent directory reference")
		}
	}

	cleaned := path.Clean(normalized)
	if cleaned == "." {
		return "", nil
	}
	if !fs.ValidPath(cleaned) {
		return "", apperrors.NewUnsafeEntryPathError(name, "invalid path")
	}
	return cleaned, nil
}

// decodeName returns the entry name as UTF-8. Names written without the
// UTF-8 flag are CP437 by the ZIP format.
func decodeName(f *zip.File) string {
	if !f.NonUTF8 || utf8.ValidString(f.Name) {
		return f.Name
	}
	decoded, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return decoded
}

// entryMode keeps the stored permission bits and makes sure the owner can
// rewrite the file on a later run.
func entryMode(mode fs.FileMode, isDir bool) fs.FileMode {
	perm := mode.Perm()
	if isDir {
		if perm == 0 {
			return defaultDirMode
		}
		return perm | 0o700
	}
	if perm == 0 {
		return defaultFileMode
	}
	return perm | 0o600
}

// wrapReadError marks corruption detected while inflating an entry.
func wrapReadError(name string, err error) error {
	if errors.Is(err, zip.ErrChecksum) || errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return &apperrors.ErrInvalidArchive{Reason: "reading entry " + name, Err: err}
	}
	return fmt.Errorf("failed to read entry %s: %w", name, err)
}
