// Package policy provides the built-in predicate/builder pairs evaluated by
// the stream mapper: re-encoding audio to a preferred codec, and removing
// audio/subtitle streams by language or title. Each policy is a pair of pure
// functions closed over its own validated options; arbitrary additional
// policies can be constructed the same way.
package policy

import (
	"fmt"
	"strings"

	"github.com/streamplan/streamplan/internal/mapper"
	"github.com/streamplan/streamplan/internal/probe"
)

// ConfigurationError indicates a policy cannot be used as configured. It is
// fatal for the affected policy (and any file evaluated with it), never for
// the process.
type ConfigurationError struct {
	Policy string
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("policy %s: option %q: %s", e.Policy, e.Option, e.Reason)
}

// Policy binds a named predicate/builder pair to the codec types it
// inspects. The runner attaches each policy's Scope to a fresh mapper per
// file.
type Policy struct {
	Name      string
	Scope     []probe.CodecType
	Predicate mapper.Predicate
	Builder   mapper.Builder
}

// splitOptions splits a user-supplied options string on whitespace,
// respecting single and double quotes and backslash escapes, so values like
// -metadata title='My Track' survive as one argument.
func splitOptions(s string) []string {
	var result []string
	var current strings.Builder
	inQuote := false
	quoteChar := rune(0)
	escaped := false

	for _, r := range s {
		if escaped {
			current.WriteRune(r)
			escaped = false
			continue
		}

		if r == '\\' {
			escaped = true
			continue
		}

		if r == '"' || r == '\'' {
			if !inQuote {
				inQuote = true
				quoteChar = r
			} else if r == quoteChar {
				inQuote = false
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if r == ' ' && !inQuote {
			if current.Len() > 0 {
				result = append(result, current.String())
				current.Reset()
			}
			continue
		}

		current.WriteRune(r)
	}

	if current.Len() > 0 {
		result = append(result, current.String())
	}

	return result
}
