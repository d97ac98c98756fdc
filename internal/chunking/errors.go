package chunking

import (
	"fmt"

	"github.com/my-mcp/azadi-tangle/pkg/location"
)

// UndefinedChunk is returned when expansion encounters a reference to a
// name that has no definition in the store.
type UndefinedChunk struct {
	Chunk    string
	Location location.Location
}

func (e *UndefinedChunk) Error() string {
	return e.Location.Render(location.LevelError,
		fmt.Sprintf("referenced chunk '%s' is undefined", e.Chunk))
}

// RecursiveReference is returned when the cycle guard in Expand fires,
// either for direct or mutual recursion. Location is the re-entering
// reference line, not the chunk's original definition.
type RecursiveReference struct {
	Chunk    string
	Location location.Location
}

func (e *RecursiveReference) Error() string {
	return e.Location.Render(location.LevelError,
		fmt.Sprintf("recursive reference detected in chunk '%s'", e.Chunk))
}

// RecursionLimit is returned when expansion depth exceeds maxExpandDepth.
type RecursionLimit struct {
	Chunk    string
	Location location.Location
}

func (e *RecursionLimit) Error() string {
	return e.Location.Render(location.LevelError,
		fmt.Sprintf("maximum recursion depth exceeded while expanding chunk '%s'", e.Chunk))
}

// FileChunkRedefinition is returned when a second @file definition for the
// same path appears without @replace.
type FileChunkRedefinition struct {
	Path     string
	Location location.Location
}

func (e *FileChunkRedefinition) Error() string {
	return e.Location.Render(location.LevelError,
		fmt.Sprintf("file chunk '@file %s' redefined without @replace", e.Path))
}
