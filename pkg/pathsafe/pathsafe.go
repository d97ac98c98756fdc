// Package pathsafe validates relative paths destined for @file chunks or
// the safe writer, rejecting traversal and absolute-path attacks.
package pathsafe

import (
	"fmt"
	"strings"
)

// Validate rejects a relative path that is absolute (POSIX or Windows
// drive-letter form), contains a ".." component, or contains a colon
// anywhere. It never touches the filesystem.
func Validate(relPath string) error {
	if strings.HasPrefix(relPath, "/") {
		return fmt.Errorf("absolute paths are not allowed: %s", relPath)
	}

	if len(relPath) >= 2 && isASCIILetter(relPath[0]) && relPath[1] == ':' {
		return fmt.Errorf("windows-style absolute paths are not allowed: %s", relPath)
	}

	if strings.Contains(relPath, ":") {
		return fmt.Errorf("path must not contain ':': %s", relPath)
	}

	for _, component := range strings.Split(relPath, "/") {
		if component == ".." {
			return fmt.Errorf("path traversal detected (..): %s", relPath)
		}
	}

	return nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
