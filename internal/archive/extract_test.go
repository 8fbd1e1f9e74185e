package archive

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/spf13/afero"

	"github.com/Belphemur/zipfetch/internal/apperrors"
)

func TestExtractAll_WritesEveryEntry(t *testing.T) {
	t.Parallel()
	a := openTestZip(t, createTestZip(t,
		zipEntry{name: "a.txt", content: "alpha"},
		zipEntry{name: "empty/"},
		zipEntry{name: "nested/deep/b.txt", content: "bravo"},
	))
	if _, err := a.Verify(Limits{}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	fsys := afero.NewMemMapFs()
	result, err := a.ExtractAll(context.Background(), fsys, "/target")
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}

	if len(result.Files) != 2 || result.Files[0] != "a.txt" || result.Files[1] != "nested/deep/b.txt" {
		t.Errorf("Unexpected files: %v", result.Files)
	}
	if result.Dirs != 1 {
		t.Errorf("Expected 1 directory, got %d", result.Dirs)
	}
	if result.Bytes != int64(len("alpha")+len("bravo")) {
		t.Errorf("Expected 10 bytes, got %d", result.Bytes)
	}

	for path, want := range map[string]string{
		"/target/a.txt":             "alpha",
		"/target/nested/deep/b.txt": "bravo",
	} {
		got, err := afero.ReadFile(fsys, path)
		if err != nil {
			t.Fatalf("ReadFile %s: %v", path, err)
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if isDir, _ := afero.IsDir(fsys, "/target/empty"); !isDir {
		t.Error("Expected directory entry to be created")
	}
}

func TestExtractAll_Idempotent(t *testing.T) {
	t.Parallel()
	data := createTestZip(t,
		zipEntry{name: "a.txt", content: "first"},
		zipEntry{name: "dir/b.txt", content: "second"},
	)
	fsys := afero.NewMemMapFs()

	// pre-existing longer content must be truncated
	if err := afero.WriteFile(fsys, "/target/a.txt", []byte("stale content that is longer"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	for run := 0; run < 2; run++ {
		a := openTestZip(t, data)
		if _, err := a.Verify(Limits{}); err != nil {
			t.Fatalf("run %d: Verify: %v", run, err)
		}
		if _, err := a.ExtractAll(context.Background(), fsys, "/target"); err != nil {
			t.Fatalf("run %d: ExtractAll: %v", run, err)
		}
	}

	got, _ := afero.ReadFile(fsys, "/target/a.txt")
	if string(got) != "first" {
		t.Errorf("Expected 'first', got %q", got)
	}

	var files []string
	_ = afero.Walk(fsys, "/target", func(path string, info fs.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			files = append(files, path)
		}
		return err
	})
	if len(files) != 2 {
		t.Errorf("Expected exactly 2 files after two runs, got %v", files)
	}
}

func TestVerify_ReadOnlyEntryKeepsOwnerWrite(t *testing.T) {
	t.Parallel()
	a := openTestZip(t, createTestZip(t, zipEntry{name: "ro.txt", content: "x", mode: 0o444}))
	entries, err := a.Verify(Limits{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if entries[0].Mode&0o200 == 0 {
		t.Errorf("Expected owner write bit to be added, got %v", entries[0].Mode)
	}
}

func TestExtractAll_ChecksumMismatch(t *testing.T) {
	t.Parallel()
	data := createTestZip(t, zipEntry{name: "a.txt", content: "hello world", store: true})

	idx := bytes.Index(data, []byte("hello world"))
	if idx < 0 {
		t.Fatal("stored content not found in archive bytes")
	}
	data[idx] = 'j'

	a := openTestZip(t, data)
	if _, err := a.Verify(Limits{}); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	_, err := a.ExtractAll(context.Background(), afero.NewMemMapFs(), "/target")
	if !errors.Is(err, &apperrors.ErrInvalidArchive{}) {
		t.Fatalf("Expected ErrInvalidArchive for checksum mismatch, got %v", err)
	}
}

func TestExtractAll_RequiresVerify(t *testing.T) {
	t.Parallel()
	a := openTestZip(t, createTestZip(t, zipEntry{name: "a.txt", content: "x"}))
	if _, err := a.ExtractAll(context.Background(), afero.NewMemMapFs(), "/target"); err == nil {
		t.Fatal("Expected error when extracting an unverified archive")
	}
}

func TestExtractAll_ContextCancelled(t *testing.T) {
	t.Parallel()
	a := openTestZip(t, createTestZip(t, zipEntry{name: "a.txt", content: "x"}))
	if _, err := a.Verify(Limits{}); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fsys := afero.NewMemMapFs()
	_, err := a.ExtractAll(ctx, fsys, "/target")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if exists, _ := afero.Exists(fsys, "/target/a.txt"); exists {
		t.Error("No entry may be written after cancellation")
	}
}

func TestOpenFile(t *testing.T) {
	t.Parallel()
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, "/tmp/a.zip", createTestZip(t, zipEntry{name: "a.txt", content: "x"}), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a, err := OpenFile(fsys, "/tmp/a.zip")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer a.Close()

	entries, err := a.Verify(Limits{})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "a.txt" {
		t.Errorf("Expected the single entry a.txt, got %+v", entries)
	}

	if _, err := OpenFile(fsys, "/tmp/missing.zip"); err == nil {
		t.Error("Expected error for missing archive file")
	}
}
