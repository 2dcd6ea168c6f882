package utils

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultImageExtensions lists photo extensions scanned when none are configured
var DefaultImageExtensions = []string{"jpg", "jpeg", "heic", "heif", "webp", "png", "tif", "tiff"}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has one of the given image extensions
func IsImageFile(filename string, extensions []string) bool {
	if len(extensions) == 0 {
		extensions = DefaultImageExtensions
	}
	ext := GetFileExtension(filename)
	for _, imgExt := range extensions {
		if ext == strings.ToLower(strings.TrimPrefix(imgExt, ".")) {
			return true
		}
	}
	return false
}

// ListImageFiles recursively lists image files below dir as slash separated
// paths relative to dir, sorted
func ListImageFiles(dir string, extensions []string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() && IsImageFile(path, extensions) {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}

		return nil
	})

	sort.Strings(files)
	return files, err
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
