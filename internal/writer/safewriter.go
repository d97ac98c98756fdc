// Package writer implements the safe-write protocol: atomic, modification-
// aware commits into a generation directory staged through a private
// directory, with a parallel backup directory used to detect externally
// edited outputs.
package writer

import (
	"bytes"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/my-mcp/azadi-tangle/pkg/pathsafe"
)

// Config controls the safe-write protocol's behavior.
type Config struct {
	// BackupEnabled maintains a mirror of committed content under the
	// private directory's __old__ subtree, used for modification detection.
	BackupEnabled bool
	// AllowOverwrites disables the ModifiedExternally guard.
	AllowOverwrites bool
	// ModificationCheck compares the generated output's mtime against the
	// backup's mtime before committing.
	ModificationCheck bool
	// BufferSize is carried in the configuration but not read: the content
	// comparison loads both files whole rather than through buffered readers.
	BufferSize int
}

// DefaultConfig returns the writer's default behavior: backups on,
// overwrites disallowed, modification checking on.
func DefaultConfig() Config {
	return Config{
		BackupEnabled:     true,
		AllowOverwrites:   false,
		ModificationCheck: true,
		BufferSize:        8192,
	}
}

// SafeWriter commits generated files into genBase through privateDir,
// refusing to clobber outputs that changed since the last commit.
type SafeWriter struct {
	fs         afero.Fs
	genBase    string
	privateDir string
	oldDir     string
	config     Config

	oldTimestamp  time.Time
	haveOldBackup bool
}

// New creates a SafeWriter with the default configuration, creating
// genBase, privateDir, and privateDir/__old__ if they do not exist.
func New(fs afero.Fs, genBase, privateDir string) (*SafeWriter, error) {
	return NewWithConfig(fs, genBase, privateDir, DefaultConfig())
}

// NewWithConfig is like New but with an explicit Config.
func NewWithConfig(fs afero.Fs, genBase, privateDir string, config Config) (*SafeWriter, error) {
	oldDir := filepath.Join(privateDir, "__old__")

	for _, dir := range []string{genBase, privateDir, oldDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, &DirectoryCreationFailed{Dir: dir, Err: err}
		}
	}

	return &SafeWriter{
		fs:         fs,
		genBase:    genBase,
		privateDir: privateDir,
		oldDir:     oldDir,
		config:     config,
	}, nil
}

// Config returns the writer's current configuration.
func (w *SafeWriter) Config() Config { return w.config }

// Fs returns the filesystem the writer stages and commits through, so
// callers can write staged bytes with the same afero.Fs implementation.
func (w *SafeWriter) Fs() afero.Fs { return w.fs }

// SetConfig replaces the writer's configuration.
func (w *SafeWriter) SetConfig(c Config) { w.config = c }

// BeforeWrite validates relPath, ensures its parent directories exist under
// all three managed roots, records the backup's mtime if one exists, and
// returns the private-staging path the caller should write bytes to.
func (w *SafeWriter) BeforeWrite(relPath string) (string, error) {
	if err := pathsafe.Validate(relPath); err != nil {
		return "", &SecurityViolation{Reason: err.Error()}
	}

	if err := w.prepareDirs(relPath); err != nil {
		return "", err
	}

	w.haveOldBackup = false
	if w.config.BackupEnabled {
		oldPath := filepath.Join(w.oldDir, relPath)
		if info, err := w.fs.Stat(oldPath); err == nil && !info.IsDir() {
			w.oldTimestamp = info.ModTime()
			w.haveOldBackup = true
		}
	}

	return filepath.Join(w.privateDir, relPath), nil
}

// AfterWrite re-validates relPath, stages a backup copy, checks for
// external modification of the committed output, and atomically commits
// the staged content if it differs from what is already there.
func (w *SafeWriter) AfterWrite(relPath string) error {
	if err := pathsafe.Validate(relPath); err != nil {
		return &SecurityViolation{Reason: err.Error()}
	}
	if err := w.prepareDirs(relPath); err != nil {
		return err
	}

	privatePath := filepath.Join(w.privateDir, relPath)
	outputPath := filepath.Join(w.genBase, relPath)
	backupPath := filepath.Join(w.oldDir, relPath)

	if w.config.BackupEnabled {
		if err := w.atomicCopy(privatePath, backupPath); err != nil {
			return &BackupFailed{Path: backupPath, Err: err}
		}
	}

	if w.config.ModificationCheck {
		if info, err := w.fs.Stat(outputPath); err == nil && !info.IsDir() {
			if w.haveOldBackup && info.ModTime().After(w.oldTimestamp) && !w.config.AllowOverwrites {
				return &ModifiedExternally{Path: outputPath}
			}
		}
	}

	if err := w.copyIfDifferent(privatePath, outputPath); err != nil {
		return err
	}

	// The backup is written before the output is committed, so give it the
	// output's mtime; otherwise the next modification check would see this
	// very commit as an external edit.
	if w.config.BackupEnabled {
		if info, err := w.fs.Stat(outputPath); err == nil {
			if err := w.fs.Chtimes(backupPath, info.ModTime(), info.ModTime()); err != nil {
				return &BackupFailed{Path: backupPath, Err: err}
			}
		}
	}

	return nil
}

func (w *SafeWriter) prepareDirs(relPath string) error {
	destDir := filepath.Dir(relPath)
	for _, root := range []string{w.genBase, w.oldDir, w.privateDir} {
		dir := filepath.Join(root, destDir)
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return &DirectoryCreationFailed{Dir: dir, Err: err}
		}
	}
	return nil
}

// atomicCopy copies source to destination by writing to a sibling ".tmp"
// path and renaming over destination, so readers never observe a partial
// write.
func (w *SafeWriter) atomicCopy(source, destination string) error {
	data, err := afero.ReadFile(w.fs, source)
	if err != nil {
		return err
	}
	tmpPath := destination + ".tmp"
	if err := afero.WriteFile(w.fs, tmpPath, data, 0o644); err != nil {
		return err
	}
	return w.fs.Rename(tmpPath, destination)
}

// copyIfDifferent commits source over destination only when their contents
// differ, so an unchanged output keeps its original mtime.
func (w *SafeWriter) copyIfDifferent(source, destination string) error {
	if _, err := w.fs.Stat(destination); err != nil {
		if err := w.atomicCopy(source, destination); err != nil {
			return &IoError{Err: err}
		}
		return nil
	}

	sourceContent, err := afero.ReadFile(w.fs, source)
	if err != nil {
		return &IoError{Err: err}
	}
	destContent, err := afero.ReadFile(w.fs, destination)
	if err != nil {
		return &IoError{Err: err}
	}

	if !bytes.Equal(sourceContent, destContent) {
		if err := w.atomicCopy(source, destination); err != nil {
			return &IoError{Err: err}
		}
	}

	return nil
}
