package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/semu/internal/errors"
)

// PathCheckMode indicates whether the path check is for reading or writing.
type PathCheckMode int

const (
	PathCheckRead  PathCheckMode = iota // source file for scan
	PathCheckWrite                      // fetched record file
)

var allowedExts = map[PathCheckMode][]string{
	PathCheckRead:  {".txt", ".pdf"},
	PathCheckWrite: {".json"},
}

// ValidatePath checks a path before it is opened:
// 1. Path traversal (writes only)
// 2. Extension (.txt/.pdf for reads, .json for writes)
// 3. Existence (reads) or an existing parent directory (writes)
// 4. Symlink safety (neither the file nor its parent directory may be a symlink)
func ValidatePath(path string, mode PathCheckMode) error {
	if strings.TrimSpace(path) == "" {
		return errors.NewInvalidRequest("path is required")
	}
	if mode == PathCheckWrite && containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleaned))
	ok := false
	for _, want := range allowedExts[mode] {
		if ext == want {
			ok = true
			break
		}
	}
	if !ok {
		return errors.NewInvalidRequest(fmt.Sprintf("path must have one of the extensions %v", allowedExts[mode]))
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	parentDir := filepath.Dir(absPath)
	info, err := os.Lstat(parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewNotFound(parentDir)
		}
		return errors.NewInternal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}

	info, err = os.Lstat(absPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return errors.NewInvalidRequest("path must not be a symlink")
	case err != nil && os.IsNotExist(err) && mode == PathCheckRead:
		return errors.NewNotFound(path)
	case err != nil && !os.IsNotExist(err):
		return errors.NewInternal(err)
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Forward slashes count on every platform
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe as one filename component.
// Path separators and characters reserved on common filesystems become dashes;
// control characters are dropped. Hangul and other letters are kept.
func SanitizeForFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), "_")

	s = strings.ReplaceAll(s, "..", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-_.")

	if s == "" {
		s = "unnamed"
	}
	return s
}
