package download

import (
	"os"
	"path/filepath"
	"strings"
)

// SaveDescription writes the lesson's plain-text description. An
// existing file is left alone; descriptions never change mid-course.
func SaveDescription(dest, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	output := filepath.Join(dest, "description.txt")
	if _, err := os.Stat(output); err == nil {
		return output, nil
	}
	if err := os.WriteFile(output, []byte(strings.TrimSpace(text)+"\n"), 0o644); err != nil {
		return "", err
	}
	return output, nil
}

// SaveLinks dumps the lesson's external links, one per line.
func SaveLinks(dest string, links []string) (string, error) {
	if len(links) == 0 {
		return "", nil
	}
	output := filepath.Join(dest, "links.txt")
	if _, err := os.Stat(output); err == nil {
		return output, nil
	}
	if err := os.WriteFile(output, []byte(strings.Join(links, "\n")+"\n"), 0o644); err != nil {
		return "", err
	}
	return output, nil
}
