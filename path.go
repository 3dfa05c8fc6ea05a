package cciefb

import "strings"

// PathSeparator is the platform directory separator used by JoinPath. It is
// a variable, not a build-tag constant, because the core is platform-
// agnostic (spec §6: "applies the platform separator (/ on POSIX, \ on
// Windows)") and the embedder selects it once at startup.
var PathSeparator = "/"

// JoinPath joins dir and filename the way spec §6's path joiner must:
// an empty or absent directory yields the filename alone, a directory that
// already ends in the separator is not doubled, the joined path must not
// exceed maxLen, and filename must not be empty.
func JoinPath(dir, filename string, maxLen int) (string, error) {
	if filename == "" {
		return "", ErrEmptyFilename
	}
	var joined string
	switch {
	case dir == "":
		joined = filename
	case strings.HasSuffix(dir, PathSeparator):
		joined = dir + filename
	default:
		joined = dir + PathSeparator + filename
	}
	if len(joined) > maxLen {
		return "", ErrBufferTooSmall
	}
	return joined, nil
}
