package objectstore

import (
	"fmt"
	"path"
	"strings"
)

// Pattern matches object keys segment by segment with path.Match wildcards.
// A key matches when its leading segments match every pattern segment, so a
// pattern naming a directory selects every object beneath it.
type Pattern struct {
	raw      string
	segments []string
}

// CompilePattern validates a wildcard pattern
func CompilePattern(pattern string) (Pattern, error) {
	segments := strings.Split(strings.TrimSuffix(pattern, "/"), "/")
	for _, seg := range segments {
		if _, err := path.Match(seg, ""); err != nil {
			return Pattern{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
	}
	return Pattern{raw: pattern, segments: segments}, nil
}

// StaticPrefix returns the longest directory prefix free of wildcards, used to scope listings
func (p Pattern) StaticPrefix() string {
	var static []string
	for i, seg := range p.segments {
		if hasMeta(seg) {
			break
		}
		// the last segment may be a partial name, keep it out of the directory prefix
		if i == len(p.segments)-1 {
			return strings.Join(append(static, seg), "/")
		}
		static = append(static, seg)
	}
	if len(static) == 0 {
		return ""
	}
	return strings.Join(static, "/") + "/"
}

// Match reports whether key is selected by the pattern
func (p Pattern) Match(key string) bool {
	keySegments := strings.Split(key, "/")
	if len(keySegments) < len(p.segments) {
		return false
	}
	for i, seg := range p.segments {
		ok, err := path.Match(seg, keySegments[i])
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// String returns the pattern as written
func (p Pattern) String() string {
	return p.raw
}

func hasMeta(seg string) bool {
	return strings.ContainsAny(seg, `*?[\`)
}
