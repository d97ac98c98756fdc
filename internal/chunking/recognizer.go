package chunking

import (
	"fmt"
	"regexp"
	"strings"
)

// recognizers holds the three line regexes compiled from a store's
// configured delimiters, chunk-end marker, and comment markers. Every
// configured string is escaped with regexp.QuoteMeta before being spliced
// into a pattern, so callers may pass regex metacharacters (".*", "[a-z]+",
// "|", "\\", ...) as comment markers and have them matched literally.
type recognizers struct {
	open  *regexp.Regexp
	slot  *regexp.Regexp
	close *regexp.Regexp
}

func compileRecognizers(openDelim, closeDelim, chunkEnd string, commentMarkers []string) (*recognizers, error) {
	openEsc := regexp.QuoteMeta(openDelim)
	closeEsc := regexp.QuoteMeta(closeDelim)
	endEsc := regexp.QuoteMeta(chunkEnd)

	var commentAlt string
	if len(commentMarkers) > 0 {
		escaped := make([]string, len(commentMarkers))
		for i, m := range commentMarkers {
			escaped[i] = regexp.QuoteMeta(m)
		}
		commentAlt = "(?:" + strings.Join(escaped, "|") + ")?[ \t]*"
	}

	openPattern := `^(\s*)` + commentAlt + openEsc + `(.+)` + closeEsc + `=`
	slotPattern := `^(\s*)` + commentAlt + openEsc + `(.+)` + closeEsc + `\s*$`
	closePattern := `^` + commentAlt + endEsc + `\s*$`

	open, err := regexp.Compile(openPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid open pattern: %w", err)
	}
	slot, err := regexp.Compile(slotPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid slot pattern: %w", err)
	}
	closeRe, err := regexp.Compile(closePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid close pattern: %w", err)
	}

	return &recognizers{open: open, slot: slot, close: closeRe}, nil
}

// parseHeaderDirectives strips any leading @replace/@file directives (in
// either order) from an open-header's captured inner text and returns the
// chunk's stored name -- "@file <path>" for file chunks, the bare name
// otherwise -- along with which directives were present.
func parseHeaderDirectives(inner string) (name string, isFile bool, isReplace bool) {
	rest := inner
	for {
		trimmed := strings.TrimLeft(rest, " \t")
		switch {
		case strings.HasPrefix(trimmed, "@replace "):
			isReplace = true
			rest = strings.TrimPrefix(trimmed, "@replace ")
			continue
		case strings.HasPrefix(trimmed, "@file "):
			isFile = true
			rest = strings.TrimPrefix(trimmed, "@file ")
			continue
		}
		rest = trimmed
		break
	}

	fields := strings.Fields(rest)
	var token string
	if len(fields) > 0 {
		token = fields[0]
	}

	if isFile {
		return "@file " + token, true, isReplace
	}
	return token, false, isReplace
}

// parseReferenceDirectives strips an optional leading @file/@reversed
// directive from a reference line's captured inner text and returns the
// referenced chunk's name plus whether @reversed was present. @file on a
// reference line carries no semantics beyond an ordinary reference.
func parseReferenceDirectives(inner string) (name string, reversed bool) {
	rest := inner
	for {
		trimmed := strings.TrimLeft(rest, " \t")
		switch {
		case strings.HasPrefix(trimmed, "@reversed "):
			reversed = true
			rest = strings.TrimPrefix(trimmed, "@reversed ")
			continue
		case strings.HasPrefix(trimmed, "@file "):
			rest = strings.TrimPrefix(trimmed, "@file ")
			continue
		}
		rest = trimmed
		break
	}

	fields := strings.Fields(rest)
	if len(fields) > 0 {
		name = fields[0]
	}
	return name, reversed
}
