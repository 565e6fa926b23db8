package namespace

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// splitPath breaks a namespace path into NFC-normalized segments. A
// single trailing separator is ignored. Empty, blank, "." and ".."
// segments make the path invalid; the error matches both ErrNotFound
// and ErrInvalidPath.
func splitPath(p string) ([]string, error) {
	p = strings.TrimSuffix(p, "/")
	if p == "" {
		return nil, nil
	}

	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.TrimSpace(s) == "" || s == "." || s == ".." {
			return nil, fmt.Errorf("%w: segment %d of %q: %w", ErrInvalidPath, i, p, ErrNotFound)
		}

		segs[i] = norm.NFC.String(s)
	}

	return segs, nil
}

func joinPath(segs []string) string {
	return strings.Join(segs, "/")
}

// parentPath returns the virtual path one level up; the parent of a
// top-level owner is the root "".
func parentPath(vp string) string {
	i := strings.LastIndexByte(vp, '/')
	if i < 0 {
		return ""
	}

	return vp[:i]
}

// depth is the number of segments in a virtual path.
func depth(vp string) int {
	if vp == "" {
		return 0
	}

	return strings.Count(vp, "/") + 1
}

// samePath compares repo-relative paths under NFC normalization, so
// composed and decomposed spellings of one name match.
func samePath(a, b string) bool {
	return a == b || norm.NFC.String(a) == norm.NFC.String(b)
}
