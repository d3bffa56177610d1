// Package fsutil builds the sanitized on-disk layout for downloaded
// course content and answers existence checks used for skip-if-exists.
package fsutil

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	invalidChars  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	collapseSpace = regexp.MustCompile(`[_\s]+`)
)

// SanitizeFilename makes name safe for use as a file or directory name on
// every supported platform. Empty results become "untitled".
func SanitizeFilename(name string) string {
	const maxLength = 200

	name = invalidChars.ReplaceAllString(name, "_")
	name = collapseSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ".") // Windows rejects trailing dots

	if len(name) > maxLength {
		name = strings.TrimSpace(name[:maxLength])
	}
	if name == "" {
		return "untitled"
	}
	return name
}

// BuildLessonPath creates (and returns) the destination directory for one
// lesson: base/Course Name/01_Module Name/02_Lesson Name/.
func BuildLessonPath(baseDir, courseName string, moduleOrder int, moduleName string, lessonOrder int, lessonName string) (string, error) {
	path := filepath.Join(
		baseDir,
		SanitizeFilename(courseName),
		fmt.Sprintf("%02d_%s", moduleOrder, SanitizeFilename(moduleName)),
		fmt.Sprintf("%02d_%s", lessonOrder, SanitizeFilename(lessonName)),
	)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("fsutil: create lesson dir: %w", err)
	}
	return path, nil
}

// FileExistsAndValid reports whether path exists with at least minSize bytes.
// A zero-byte artifact left by an interrupted run does not count.
func FileExistsAndValid(path string, minSize int64) bool {
	if minSize <= 0 {
		minSize = 1
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() >= minSize
}

var safeExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true, ".webm": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true, ".pptx": true,
	".zip": true, ".rar": true, ".7z": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true,
	".mp3": true, ".wav": true, ".m4a": true,
	".txt": true, ".md": true, ".csv": true, ".json": true,
	".ts": true, ".srt": true, ".vtt": true,
}

// SafeExtension extracts a known file extension from a URL path, or def
// when the URL has none we recognize.
func SafeExtension(rawURL, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	if safeExtensions[ext] {
		return ext
	}
	return def
}
