// Package tangler wires the chunk store and safe writer together: it feeds
// text into the store under a stable file-name index, drives expansion of
// every @file chunk into the writer, and surfaces unused-chunk warnings.
package tangler

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/my-mcp/azadi-tangle/internal/chunking"
	"github.com/my-mcp/azadi-tangle/internal/writer"
)

// Tangler orchestrates one chunk Store against one SafeWriter.
type Tangler struct {
	store  *chunking.Store
	writer *writer.SafeWriter
	logger *zap.Logger
}

// New composes a Store from the given delimiter configuration and retains
// w as the destination for tangled @file chunks.
func New(w *writer.SafeWriter, openDelim, closeDelim, chunkEnd string, commentMarkers []string, logger *zap.Logger) (*Tangler, error) {
	store, err := chunking.NewStore(openDelim, closeDelim, chunkEnd, commentMarkers)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tangler{store: store, writer: w, logger: logger}, nil
}

// Read registers fileName in the store's file-name table and feeds text
// into it under that index.
func (tg *Tangler) Read(text, fileName string) {
	idx := tg.store.RegisterFile(fileName)
	tg.store.Read(text, idx)
}

// WriteFiles expands every @file chunk and commits it through the safe
// writer, then logs unused-chunk warnings. It aborts at the first chunk
// that fails to expand or commit.
func (tg *Tangler) WriteFiles() error {
	names := tg.store.FileChunks()

	for _, name := range names {
		relPath := strings.TrimPrefix(name, "@file ")

		lines, err := tg.store.Expand(name, "")
		if err != nil {
			return fmt.Errorf("tangling %s: %w", relPath, err)
		}

		privatePath, err := tg.writer.BeforeWrite(relPath)
		if err != nil {
			return fmt.Errorf("preparing %s: %w", relPath, err)
		}

		content := strings.Join(lines, "")
		if err := afero.WriteFile(tg.writer.Fs(), privatePath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("staging %s: %w", relPath, err)
		}

		if err := tg.writer.AfterWrite(relPath); err != nil {
			return fmt.Errorf("committing %s: %w", relPath, err)
		}
	}

	for _, warning := range tg.store.CheckUnusedChunks() {
		tg.logger.Warn(warning)
	}

	return nil
}

// GetChunk expands name and streams its bytes to out, followed by a single
// trailing newline.
func (tg *Tangler) GetChunk(name string, out io.Writer) error {
	lines, err := tg.store.Expand(name, "")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(out, strings.Join(lines, "")); err != nil {
		return err
	}
	_, err = io.WriteString(out, "\n")
	return err
}

// Expand is a pass-through to the underlying store.
func (tg *Tangler) Expand(name, indent string) ([]string, error) {
	return tg.store.Expand(name, indent)
}

// Reset clears the underlying store.
func (tg *Tangler) Reset() {
	tg.store.Reset()
}

// Store exposes the underlying chunk store for callers that need direct
// introspection (has_chunk, file chunk listing) outside the write path.
func (tg *Tangler) Store() *chunking.Store {
	return tg.store
}
