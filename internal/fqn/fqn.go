// Package fqn normalizes and validates action qualified names.
//
// Grounded on original_source/src/composer/fqn.py (parse_action_name).
package fqn

import (
	"strings"

	"github.com/lyzr/composer/internal/cerr"
)

// Parse normalizes a (possibly fully qualified) action name and validates it.
// If it's not fully qualified, it attempts to qualify it:
//
//	foo       => /_/foo
//	pkg/foo   => /_/pkg/foo
//	/ns/foo   => /ns/foo
//	/ns/pkg/foo => /ns/pkg/foo
func Parse(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", cerr.NewBuildError("Name is not specified", name)
	}

	const delimiter = "/"
	parts := strings.Split(trimmed, delimiter)
	n := len(parts)
	leadingSlash := trimmed[0] == '/'

	// no more than /ns/pkg/action
	if n < 1 || n > 4 || (leadingSlash && n == 2) || (!leadingSlash && n == 4) {
		return "", cerr.NewBuildError("Name is not valid", name)
	}

	// skip the leading (empty) segment produced by a leading slash; every
	// remaining segment must be non-empty after trimming.
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "" {
			return "", cerr.NewBuildError("Name is not valid", name)
		}
	}

	joined := strings.Join(parts, delimiter)
	switch {
	case leadingSlash:
		return joined, nil
	case n < 3:
		return delimiter + "_" + delimiter + joined, nil
	default:
		return delimiter + joined, nil
	}
}

// ParseNonString builds the BuildError the Builder raises when a `name`
// argument isn't a string at all (e.g. a number or callable was passed).
func ParseNonString(argument interface{}) error {
	return cerr.NewBuildError("Name is not valid", argument)
}
