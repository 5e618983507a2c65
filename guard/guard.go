// Package guard validates untrusted input reaching covwatch: URLs handed to
// the browser or used as webhook targets, tab identifiers taken from request
// paths, and response bodies read from remote endpoints.
package guard

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
)

// MaxIdentifier is the longest accepted tab identifier.
const MaxIdentifier = 256

var (
	ErrUnsafeScheme = errors.New("guard: URL scheme not allowed")
	ErrNoHost       = errors.New("guard: URL has no host")
	ErrIdentifier   = errors.New("guard: invalid identifier")
	ErrTooLarge     = errors.New("guard: body too large")
)

// Web are the schemes a webhook may use.
var Web = []string{"http", "https"}

// Navigable are the schemes a remote driver may load in a tab.
var Navigable = []string{"http", "https", "file", "about"}

// CheckURL parses raw and rejects schemes outside allowed. http and https
// URLs must name a host.
func CheckURL(raw string, allowed []string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("guard: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if !slices.Contains(allowed, scheme) {
		return fmt.Errorf("%w: %q", ErrUnsafeScheme, u.Scheme)
	}
	if (scheme == "http" || scheme == "https") && u.Hostname() == "" {
		return ErrNoHost
	}
	return nil
}

// CheckIdentifier accepts non-empty identifiers of letters, digits,
// underscore, hyphen and dot. DevTools target IDs and covwatch session IDs
// both fit.
func CheckIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrIdentifier)
	}
	if len(s) > MaxIdentifier {
		return fmt.Errorf("%w: longer than %d", ErrIdentifier, MaxIdentifier)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("%w: character %q", ErrIdentifier, r)
		}
	}
	return nil
}

// LimitedReadAll reads at most max bytes from r.
func LimitedReadAll(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > max {
		return data[:max], fmt.Errorf("%w: over %d bytes", ErrTooLarge, max)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}
