// Package location carries source positions through the chunk engine and
// renders them into the diagnostic strings the CLI prints.
package location

import "fmt"

// Level distinguishes errors from warnings in rendered diagnostics.
type Level int

const (
	LevelError Level = iota
	LevelWarning
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "Error"
	case LevelWarning:
		return "Warning"
	default:
		return "Unknown"
	}
}

// Location identifies a line inside one of the tangler's input files.
// Line is 0-based; rendering adds 1 to present a 1-based line number.
type Location struct {
	File string
	Line int
}

// Render formats a message addressed to this location as
// "<Level>: <file> <line>: <message>", where <line> is 1-based.
func (l Location) Render(level Level, msg string) string {
	return fmt.Sprintf("%s: %s %d: %s", level, l.File, l.Line+1, msg)
}
