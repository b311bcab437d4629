package utils

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// ErrOutsideDir is returned by JoinInDir for names that escape the directory.
var ErrOutsideDir = errors.New("file name must stay inside the directory")

// SanitizeFilename makes a client supplied file name safe to log and store
// in audit records. It drops path separators and characters that are invalid
// on common filesystems.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > 200 {
		filename = strings.TrimSpace(filename[:200])
	}

	if filename == "" {
		filename = "upload.csv"
	}
	return filename
}

// JoinInDir joins name onto dir and rejects names that resolve outside it,
// such as "../secrets.csv" or absolute paths.
func JoinInDir(dir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrOutsideDir
	}
	path := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideDir
	}
	return path, nil
}
