package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"hotmart-dl/internal/fsutil"
)

// ErrYtdlpNotFound means yt-dlp is not installed or not on PATH. It is a
// process precondition, not a retryable failure.
var ErrYtdlpNotFound = errors.New("yt-dlp binary not found; install it to download external-platform videos")

const ytdlpTimeout = 10 * time.Minute

// YtdlpRunner downloads videos hosted on external platforms (Vimeo,
// YouTube, Wistia) by shelling out to yt-dlp.
type YtdlpRunner struct {
	Path string
}

func NewYtdlp(path string) *YtdlpRunner {
	if path == "" {
		path = "yt-dlp"
	}
	return &YtdlpRunner{Path: path}
}

// formatFor maps the engine's quality names onto yt-dlp format selectors.
func formatFor(quality string) string {
	switch quality {
	case "", "best":
		return "bestvideo+bestaudio/best"
	default:
		height := strings.TrimSuffix(quality, "p")
		return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", height, height)
	}
}

// Download fetches one external video as <filename>.mp4 under dest.
// Embedded Vimeo players require the page that framed them as Referer or
// they answer 403.
func (y *YtdlpRunner) Download(ctx context.Context, url, dest, filename, quality, referer string) (string, error) {
	output := filepath.Join(dest, fsutil.SanitizeFilename(filename)+".mp4")
	if fsutil.FileExistsAndValid(output, 1024) {
		return output, nil
	}

	args := []string{
		"--no-playlist",
		"-f", formatFor(quality),
		"--merge-output-format", "mp4",
		"-o", output,
	}
	if referer != "" {
		args = append(args, "--referer", referer)
	}
	args = append(args, url)

	if err := y.run(ctx, args, output); err != nil {
		return "", err
	}
	return output, nil
}

// DownloadAudioOnly extracts only the audio track as <filename>.m4a.
func (y *YtdlpRunner) DownloadAudioOnly(ctx context.Context, url, dest, filename, referer string) (string, error) {
	output := filepath.Join(dest, fsutil.SanitizeFilename(filename)+".m4a")
	if fsutil.FileExistsAndValid(output, 1024) {
		return output, nil
	}

	args := []string{
		"--no-playlist",
		"-x", "--audio-format", "m4a",
		"-o", output,
	}
	if referer != "" {
		args = append(args, "--referer", referer)
	}
	args = append(args, url)

	if err := y.run(ctx, args, output); err != nil {
		return "", err
	}
	return output, nil
}

// DownloadSubtitles fetches only the subtitle tracks for an external
// video, written next to where the video would go.
func (y *YtdlpRunner) DownloadSubtitles(ctx context.Context, url, dest, filename, referer string) error {
	output := filepath.Join(dest, fsutil.SanitizeFilename(filename))
	args := []string{
		"--no-playlist",
		"--skip-download",
		"--write-subs", "--sub-langs", "all",
		"-o", output,
	}
	if referer != "" {
		args = append(args, "--referer", referer)
	}
	args = append(args, url)
	return y.run(ctx, args, "")
}

func (y *YtdlpRunner) run(ctx context.Context, args []string, output string) error {
	runCtx, cancel := context.WithTimeout(ctx, ytdlpTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, y.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if output != "" {
			os.Remove(output)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return ErrYtdlpNotFound
		}
		return fmt.Errorf("yt-dlp failed: %w: %s", err, lastLine(stderr.String()))
	}
	return nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
