package icelake

import (
	"strings"

	"github.com/florinutz/icelake/icelakeerr"
)

// relativize strips location from path. The comparison is byte-wise: no URI
// parsing, no trailing slash handling on location. One leading "/" left
// after the strip is dropped so the result is a backend-relative path.
func relativize(path, location string) (string, error) {
	rel, ok := strings.CutPrefix(path, location)
	if !ok {
		return "", &icelakeerr.PathNotUnderRootError{Path: path, Location: location}
	}
	return strings.TrimPrefix(rel, "/"), nil
}
