// Package artifact lists the contents of distribution artifacts (wheels and
// source distributions) and decides whether a release carries inline type
// information.
package artifact

import (
	"path"
	"strings"
)

// Entry is one file inside a distribution artifact.
type Entry struct {
	Path string
	Size int64
}

// MarkerFile is the conventional marker a package places inside its importable
// module directory to signal that its own source carries type annotations.
const MarkerFile = "py.typed"

// HasInlineTyping reports whether the listed artifact ships usable inline type
// information.
//
// A marker file alone is not enough: it must actually cover the package's
// code. The rule is the one the typeshed tooling applies: there is at least
// one marker, there is at least one Python file, and every Python file lives
// under a directory that carries a marker. A marker at the archive root with
// module code outside it does not count. Empty __init__.py files are ignored
// so namespace scaffolding does not defeat the check.
func HasInlineTyping(entries []Entry) bool {
	var markerDirs []string
	var pythonFiles []string

	for _, e := range entries {
		p := path.Clean(strings.TrimPrefix(e.Path, "/"))
		if p == "." || strings.HasSuffix(e.Path, "/") {
			continue
		}
		base := path.Base(p)
		if base == MarkerFile {
			markerDirs = append(markerDirs, path.Dir(p))
			continue
		}
		switch path.Ext(p) {
		case ".py", ".pyi":
			if base == "__init__.py" && e.Size == 0 {
				continue
			}
			pythonFiles = append(pythonFiles, p)
		}
	}

	if len(markerDirs) == 0 || len(pythonFiles) == 0 {
		return false
	}

	for _, f := range pythonFiles {
		if !underAny(f, markerDirs) {
			return false
		}
	}
	return true
}

// underAny reports whether file sits below (any depth) one of dirs.
func underAny(file string, dirs []string) bool {
	for d := path.Dir(file); d != "." && d != "/"; d = path.Dir(d) {
		for _, md := range dirs {
			if d == md {
				return true
			}
		}
	}
	return false
}
