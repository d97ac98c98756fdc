// Package chunking implements the chunk store: the tokenizer that
// recognizes chunk boundaries, the multi-definition chunk store, and the
// recursive expander with indentation recomposition and cycle detection.
package chunking

import (
	"sort"
	"strings"

	"github.com/my-mcp/azadi-tangle/pkg/location"
	"github.com/my-mcp/azadi-tangle/pkg/pathsafe"
)

// maxExpandDepth bounds recursive expansion; it is the only non-termination
// guard since the core never times out or cancels.
const maxExpandDepth = 100

// ChunkDef is one definition of a NamedChunk: an ordered sequence of
// newline-terminated body lines plus the indentation and source position of
// its opening header.
type ChunkDef struct {
	Body       []string
	BaseIndent int
	Location   location.Location
}

// NamedChunk is a chunk name together with every definition given for it,
// in source order across all Read calls, and how many times it has been
// successfully expanded.
type NamedChunk struct {
	Name     string
	Defs     []*ChunkDef
	RefCount int
}

// Store parses "web" text into named chunks and expands references. It is
// single-threaded: callers that want to tangle independent documents in
// parallel must use independent Stores.
type Store struct {
	rec       *recognizers
	chunks    map[string]*NamedChunk
	fileNames []string
	fileRedef map[string]error
}

// NewStore compiles the line recognizers for the given delimiters, chunk-end
// marker, and comment markers, and returns an empty store.
func NewStore(openDelim, closeDelim, chunkEnd string, commentMarkers []string) (*Store, error) {
	rec, err := compileRecognizers(openDelim, closeDelim, chunkEnd, commentMarkers)
	if err != nil {
		return nil, err
	}
	return &Store{
		rec:       rec,
		chunks:    make(map[string]*NamedChunk),
		fileRedef: make(map[string]error),
	}, nil
}

// RegisterFile appends name to the store's file-name table and returns its
// stable index. The table is append-only; indices remain valid for the
// store's lifetime.
func (s *Store) RegisterFile(name string) int {
	s.fileNames = append(s.fileNames, name)
	return len(s.fileNames) - 1
}

// Read scans text line by line, recognizing chunk boundaries and appending
// definitions to the store. fileIdx must have come from RegisterFile.
func (s *Store) Read(text string, fileIdx int) {
	var current *ChunkDef

	lines := strings.Split(text, "\n")
	// strings.Split on "\n" yields a trailing empty element when text ends
	// in "\n"; that element corresponds to no real line and is dropped.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for lineNo, line := range lines {
		if m := s.rec.open.FindStringSubmatch(line); m != nil {
			indent, inner := m[1], m[2]
			name, isFile, isReplace := parseHeaderDirectives(inner)
			if name == "" {
				current = nil
				continue
			}

			if isFile {
				path := strings.TrimPrefix(name, "@file ")
				if err := pathsafe.Validate(path); err != nil {
					current = nil
					continue
				}
			}

			if isReplace {
				delete(s.chunks, name)
				delete(s.fileRedef, name)
			} else if isFile {
				if existing, ok := s.chunks[name]; ok && len(existing.Defs) > 0 {
					loc := location.Location{File: s.fileName(fileIdx), Line: lineNo}
					s.fileRedef[name] = &FileChunkRedefinition{
						Path:     strings.TrimPrefix(name, "@file "),
						Location: loc,
					}
				}
			}

			nc, ok := s.chunks[name]
			if !ok {
				nc = &NamedChunk{Name: name}
				s.chunks[name] = nc
			}

			def := &ChunkDef{
				BaseIndent: len(indent),
				Location:   location.Location{File: s.fileName(fileIdx), Line: lineNo},
			}
			nc.Defs = append(nc.Defs, def)
			current = def
			continue
		}

		if s.rec.close.MatchString(line) {
			current = nil
			continue
		}

		if current != nil {
			current.Body = append(current.Body, line+"\n")
		}
	}
}

func (s *Store) fileName(idx int) string {
	if idx >= 0 && idx < len(s.fileNames) {
		return s.fileNames[idx]
	}
	return "<unknown>"
}

// HasChunk reports whether name has at least one definition.
func (s *Store) HasChunk(name string) bool {
	_, ok := s.chunks[name]
	return ok
}

// FileChunks returns every chunk name beginning with "@file ", sorted for
// deterministic iteration.
func (s *Store) FileChunks() []string {
	var names []string
	for name := range s.chunks {
		if strings.HasPrefix(name, "@file ") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset clears every chunk, file name, and pending redefinition error.
func (s *Store) Reset() {
	s.chunks = make(map[string]*NamedChunk)
	s.fileNames = nil
	s.fileRedef = make(map[string]error)
}

// CheckUnusedChunks returns a sorted warning for every non-@file chunk that
// was never successfully expanded.
func (s *Store) CheckUnusedChunks() []string {
	var warnings []string
	for name, nc := range s.chunks {
		if strings.HasPrefix(name, "@file ") {
			continue
		}
		if nc.RefCount == 0 && len(nc.Defs) > 0 {
			loc := nc.Defs[0].Location
			warnings = append(warnings, loc.Render(location.LevelWarning,
				"chunk '"+name+"' is defined but never referenced"))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// Expand returns the fully expanded, indentation-composed body of name, or
// an error with a precise source location.
func (s *Store) Expand(name, indent string) ([]string, error) {
	if err, ok := s.fileRedef[name]; ok {
		return nil, err
	}
	seen := make([]seenEntry, 0, 4)
	initial := location.Location{File: "<root>", Line: 0}
	return s.expand(name, indent, 0, &seen, initial, false)
}

type seenEntry struct {
	name string
}

func (s *Store) expand(name, targetIndent string, depth int, seen *[]seenEntry, refLoc location.Location, reversed bool) ([]string, error) {
	if depth > maxExpandDepth {
		return nil, &RecursionLimit{Chunk: name, Location: refLoc}
	}

	for _, e := range *seen {
		if e.name == name {
			return nil, &RecursiveReference{Chunk: name, Location: refLoc}
		}
	}

	nc, ok := s.chunks[name]
	if !ok {
		return nil, &UndefinedChunk{Chunk: name, Location: refLoc}
	}

	nc.RefCount++
	*seen = append(*seen, seenEntry{name: name})
	defer func() { *seen = (*seen)[:len(*seen)-1] }()

	defs := nc.Defs
	if reversed {
		defs = reversedDefs(defs)
	}

	var result []string
	for _, def := range defs {
		for i, line := range def.Body {
			counter := i + 1
			if m := s.rec.slot.FindStringSubmatch(line); m != nil {
				slotIndent := m[1]
				refName, refReversed := parseReferenceDirectives(m[2])

				var relativeIndent string
				if len(slotIndent) > def.BaseIndent {
					relativeIndent = slotIndent[def.BaseIndent:]
				}
				newIndent := targetIndent + relativeIndent
				newLoc := location.Location{
					File: def.Location.File,
					Line: def.Location.Line + counter,
				}

				expanded, err := s.expand(refName, newIndent, depth+1, seen, newLoc, refReversed)
				if err != nil {
					return nil, err
				}
				result = append(result, expanded...)
				continue
			}

			bodyLine := line
			if len(line) > def.BaseIndent {
				bodyLine = line[def.BaseIndent:]
			}
			result = append(result, targetIndent+bodyLine)
		}
	}

	return result, nil
}

func reversedDefs(defs []*ChunkDef) []*ChunkDef {
	out := make([]*ChunkDef, len(defs))
	for i, d := range defs {
		out[len(defs)-1-i] = d
	}
	return out
}
