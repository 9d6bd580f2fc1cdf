package strategy

import "strings"

// NormalizePath folds backslashes to forward slashes, strips a leading
// "./", trims trailing slashes, and collapses runs of slashes, so the same
// file referenced two different ways within a session is recognized as
// one path.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.TrimPrefix(p, "./")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	p = strings.TrimRight(p, "/")
	return p
}
