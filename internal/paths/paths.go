// Package paths normalizes and validates collection paths and item names.
//
// A collection path is a slash-separated sequence of segments addressing a
// node in the collection tree. The canonical form carries no leading or
// trailing slash; the tree root is the empty path.
package paths

import (
	"strings"

	"github.com/mesh-intelligence/almanac/pkg/types"
)

// Root is the canonical path of the collection tree root.
const Root = ""

// maxSegmentLen bounds a single path segment or item name.
const maxSegmentLen = 128

// Clean normalizes path to canonical form: leading and trailing slashes
// stripped, empty segments collapsed. Returns ErrInvalidPath when any
// segment is malformed.
func Clean(path string) (string, error) {
	segments, err := Split(path)
	if err != nil {
		return "", err
	}
	return strings.Join(segments, "/"), nil
}

// Split breaks path into validated segments. The root path yields a nil
// slice.
func Split(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, nil
	}
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		if !validSegment(seg) {
			return nil, types.ErrInvalidPath
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

// Parent returns the canonical path of the parent collection. The parent of
// a top-level collection, and of the root itself, is Root.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return Root
	}
	return path[:i]
}

// Name returns the last segment of a canonical path, or "" for the root.
func Name(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

// Join appends a segment to a canonical parent path.
func Join(parent, name string) string {
	if parent == Root {
		return name
	}
	return parent + "/" + name
}

// ValidItemName reports whether name is usable as an item name within a
// collection. Item names follow the same rules as path segments.
func ValidItemName(name string) bool {
	return validSegment(name)
}

// validSegment rejects empty, dot, oversized, and separator-bearing
// segments, plus control characters.
func validSegment(seg string) bool {
	if seg == "" || seg == "." || seg == ".." {
		return false
	}
	if len(seg) > maxSegmentLen {
		return false
	}
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c == '/' || c == '\\' || c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
