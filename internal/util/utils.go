package util

import "path/filepath"

// ToRelativePath returns fullPath relative to rootPath, or fullPath unchanged
// when no relative form exists.
func ToRelativePath(rootPath, fullPath string) string {
	relPath, err := filepath.Rel(rootPath, fullPath)
	if err != nil {
		return fullPath
	}
	return relPath
}

func Ptr[T any](v T) *T { return &v }
