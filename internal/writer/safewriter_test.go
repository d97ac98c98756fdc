package writer

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func newTestWriter(t *testing.T) (afero.Fs, *SafeWriter) {
	t.Helper()
	fs := afero.NewMemMapFs()
	w, err := New(fs, "/work/gen", "/work/private")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fs, w
}

func writeFile(t *testing.T, fs afero.Fs, w *SafeWriter, relPath, content string) error {
	t.Helper()
	privatePath, err := w.BeforeWrite(relPath)
	if err != nil {
		return err
	}
	if err := afero.WriteFile(fs, privatePath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", privatePath, err)
	}
	return w.AfterWrite(relPath)
}

func TestBasicFileWriting(t *testing.T) {
	fs, w := newTestWriter(t)
	if err := writeFile(t, fs, w, "test.txt", "Hello, World!"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	content, err := afero.ReadFile(fs, filepath.Join("/work/gen", "test.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "Hello, World!" {
		t.Errorf("content = %q, want %q", content, "Hello, World!")
	}
}

func TestUnmodifiedFileUpdate(t *testing.T) {
	fs, w := newTestWriter(t)
	cfg := w.Config()
	cfg.ModificationCheck = false
	w.SetConfig(cfg)

	if err := writeFile(t, fs, w, "test.txt", "Initial content"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := writeFile(t, fs, w, "test.txt", "New content"); err != nil {
		t.Fatalf("second write: %v", err)
	}

	content, err := afero.ReadFile(fs, filepath.Join("/work/gen", "test.txt"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "New content" {
		t.Errorf("content = %q, want %q", content, "New content")
	}
}

func TestBackupCreation(t *testing.T) {
	fs, w := newTestWriter(t)
	if err := writeFile(t, fs, w, "test.txt", "Test content"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	backupPath := filepath.Join("/work/private", "__old__", "test.txt")
	content, err := afero.ReadFile(fs, backupPath)
	if err != nil {
		t.Fatalf("backup should exist: %v", err)
	}
	if string(content) != "Test content" {
		t.Errorf("backup content = %q, want %q", content, "Test content")
	}
}

func TestNestedDirectoryCreation(t *testing.T) {
	fs, w := newTestWriter(t)
	if err := writeFile(t, fs, w, "dir1/dir2/test.txt", "Nested content"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	for _, dir := range []string{
		filepath.Join("/work/gen", "dir1", "dir2"),
		filepath.Join("/work/private", "__old__", "dir1", "dir2"),
		filepath.Join("/work/private", "dir1", "dir2"),
	} {
		info, err := fs.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("expected directory to exist: %s", dir)
		}
	}
}

func TestModificationDetection(t *testing.T) {
	fs, w := newTestWriter(t)
	if err := writeFile(t, fs, w, "test.txt", "Initial content"); err != nil {
		t.Fatalf("first write: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	outPath := filepath.Join("/work/gen", "test.txt")
	if err := afero.WriteFile(fs, outPath, []byte("Modified content"), 0o644); err != nil {
		t.Fatalf("external write: %v", err)
	}

	err := writeFile(t, fs, w, "test.txt", "New content")
	if err == nil {
		t.Fatal("expected ModifiedExternally error")
	}
	if _, ok := err.(*ModifiedExternally); !ok {
		t.Fatalf("error type = %T, want *ModifiedExternally", err)
	}

	content, readErr := afero.ReadFile(fs, outPath)
	if readErr != nil {
		t.Fatalf("ReadFile: %v", readErr)
	}
	if string(content) != "Modified content" {
		t.Errorf("content = %q, want externally modified content preserved", content)
	}
}

func TestCopyIfDifferentWithSameContent(t *testing.T) {
	fs, w := newTestWriter(t)
	content := "Same content"
	if err := writeFile(t, fs, w, "test.txt", content); err != nil {
		t.Fatalf("first write: %v", err)
	}

	outPath := filepath.Join("/work/gen", "test.txt")
	info, err := fs.Stat(outPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	initialMtime := info.ModTime()

	time.Sleep(10 * time.Millisecond)
	if err := writeFile(t, fs, w, "test.txt", content); err != nil {
		t.Fatalf("second write: %v", err)
	}

	info, err = fs.Stat(outPath)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.ModTime().Equal(initialMtime) {
		t.Error("expected mtime to be unchanged when content is identical")
	}
}

func TestInvalidPath(t *testing.T) {
	_, w := newTestWriter(t)
	_, err := w.BeforeWrite("/nonexistent/path/test.txt")
	if err == nil {
		t.Fatal("expected SecurityViolation error")
	}
	sv, ok := err.(*SecurityViolation)
	if !ok {
		t.Fatalf("error type = %T, want *SecurityViolation", err)
	}
	if sv.Reason == "" {
		t.Error("expected a non-empty reason")
	}
}

func TestConfigChangesAllowOverwrite(t *testing.T) {
	fs, w := newTestWriter(t)
	if err := writeFile(t, fs, w, "test.txt", "Initial content"); err != nil {
		t.Fatalf("first write: %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	outPath := filepath.Join("/work/gen", "test.txt")
	if err := afero.WriteFile(fs, outPath, []byte("Modified externally"), 0o644); err != nil {
		t.Fatalf("external write: %v", err)
	}

	cfg := w.Config()
	cfg.AllowOverwrites = true
	w.SetConfig(cfg)

	if err := writeFile(t, fs, w, "test.txt", "New content"); err != nil {
		t.Fatalf("expected overwrite to succeed, got: %v", err)
	}

	content, err := afero.ReadFile(fs, outPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "New content" {
		t.Errorf("content = %q, want %q", content, "New content")
	}
}

func TestBackupDisabled(t *testing.T) {
	fs, w := newTestWriter(t)
	cfg := w.Config()
	cfg.BackupEnabled = false
	w.SetConfig(cfg)

	if err := writeFile(t, fs, w, "test.txt", "Test content"); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	backupPath := filepath.Join("/work/private", "__old__", "test.txt")
	if _, err := fs.Stat(backupPath); err == nil {
		t.Error("expected no backup file when backups are disabled")
	}
}
