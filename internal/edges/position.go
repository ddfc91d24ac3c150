package edges

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/abramin/calledges/internal/graph"
)

// FileRange is a source span relative to the analyzed project's base directory.
type FileRange struct {
	File  string `json:"file"`
	Range [2]int `json:"range"`
}

// ToFileRange converts an engine position into a FileRange relative to baseDir.
// It reports false when the position has no local file or lies outside baseDir.
// Containment is stricter than a bare substring match: baseDir must end at a
// path separator in the file path, so sibling directories sharing a prefix are outside.
func ToFileRange(pos *graph.Position, baseDir string) (FileRange, bool) {
	file, ok := pos.File()
	if !ok {
		return FileRange{}, false
	}

	rel, ok := relativeTo(file, trimSeparators(baseDir))
	if !ok {
		return FileRange{}, false
	}

	return FileRange{
		File:  rel,
		Range: [2]int{pos.Start, pos.End},
	}, true
}

// relativeTo finds base inside file and returns what follows it and one separator.
// A match must be followed by a separator so that /src/app does not claim /src/application.
func relativeTo(file, base string) (string, bool) {
	from := 0
	for {
		idx := strings.Index(file[from:], base)
		if idx < 0 {
			return "", false
		}
		end := from + idx + len(base)
		if end < len(file) && isSeparator(file[end]) && end+1 < len(file) {
			rel := filepath.ToSlash(file[end+1:])
			return path.Clean(rel), true
		}
		from += idx + 1
		if from >= len(file) {
			return "", false
		}
	}
}

func trimSeparators(dir string) string {
	for len(dir) > 1 && isSeparator(dir[len(dir)-1]) {
		dir = dir[:len(dir)-1]
	}
	if dir == "/" {
		return ""
	}
	return dir
}

func isSeparator(c byte) bool {
	return c == '/' || c == filepath.Separator
}
