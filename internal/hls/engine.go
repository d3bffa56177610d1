package hls

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"hotmart-dl/internal/concurrency"
	"hotmart-dl/internal/ffmpeg"
	"hotmart-dl/internal/fsutil"
	"hotmart-dl/internal/httpx"
)

// DownloadError is a failed segment fetch or playlist parse. ffmpeg
// failures surface as *ffmpeg.MuxError (or ffmpeg.ErrNotFound) instead.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("hls download failed: %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Engine downloads HLS streams into single playable files.
type Engine struct {
	Client *http.Client
	FFmpeg *ffmpeg.Runner
	// Workers bounds concurrent segment fetches.
	Workers int
	Retry   httpx.RetryConfig
}

// NewEngine builds an engine with sane defaults.
func NewEngine(client *http.Client, runner *ffmpeg.Runner, workers int) *Engine {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if runner == nil {
		runner = ffmpeg.New("")
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		Client:  client,
		FFmpeg:  runner,
		Workers: workers,
		Retry:   httpx.DefaultRetryConfig(),
	}
}

// Download fetches manifestURL at the requested quality and writes
// <filename>.mp4 under dest. A valid non-empty output already at the
// destination is returned unchanged without any network traffic.
func (e *Engine) Download(ctx context.Context, manifestURL, dest, quality, filename string) (string, error) {
	output := filepath.Join(dest, fsutil.SanitizeFilename(filename)+".mp4")
	if fsutil.FileExistsAndValid(output, 1024) {
		return output, nil
	}

	// Tokenized CDNs reject any re-encoded URL, so the manifest goes to
	// ffmpeg untouched and selection/decryption happens there.
	if rule := MatchCDN(manifestURL); rule != nil && rule.Delegate {
		if err := e.FFmpeg.Remux(ctx, manifestURL, rule.Referer, output); err != nil {
			return "", err
		}
		return output, nil
	}

	playlist, err := e.fetchPlaylist(ctx, manifestURL)
	if err != nil {
		return "", err
	}

	variantURL := manifestURL
	variant := playlist
	if playlist.IsMaster() {
		sel, err := SelectVariant(playlist.Variants, quality)
		if err != nil {
			return "", &DownloadError{URL: manifestURL, Err: err}
		}
		variantURL = sel.URI
		variant, err = e.fetchPlaylist(ctx, variantURL)
		if err != nil {
			return "", err
		}
	}

	if variant.Encrypted() {
		// ffmpeg's HLS demuxer resolves the key URI and decrypts
		// transparently; per-segment decryption is not attempted.
		if err := e.FFmpeg.Remux(ctx, variantURL, "", output); err != nil {
			return "", err
		}
		return output, nil
	}

	if err := e.downloadAndConcat(ctx, variant, output); err != nil {
		os.Remove(output)
		return "", err
	}
	return output, nil
}

// DownloadAudioOnly extracts only the audio track as <filename>.m4a.
func (e *Engine) DownloadAudioOnly(ctx context.Context, manifestURL, dest, filename string) (string, error) {
	output := filepath.Join(dest, fsutil.SanitizeFilename(filename)+".m4a")
	if fsutil.FileExistsAndValid(output, 1024) {
		return output, nil
	}

	referer := ""
	if rule := MatchCDN(manifestURL); rule != nil {
		referer = rule.Referer
	}
	if err := e.FFmpeg.ExtractAudio(ctx, manifestURL, referer, output); err != nil {
		return "", err
	}
	return output, nil
}

func (e *Engine) fetchPlaylist(ctx context.Context, url string) (*Playlist, error) {
	body, err := httpx.FetchBody(ctx, e.Client, url, nil, e.Retry)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	p, err := Parse(string(body), url)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	return p, nil
}

// downloadAndConcat fetches every segment to a scratch dir (fine-grained
// retry lives in the per-segment fetch) and concatenates losslessly.
func (e *Engine) downloadAndConcat(ctx context.Context, variant *Playlist, output string) error {
	if len(variant.Segments) == 0 {
		return &DownloadError{URL: output, Err: fmt.Errorf("variant playlist has no segments")}
	}

	tmpdir, err := os.MkdirTemp("", "hotmart_hls_")
	if err != nil {
		return fmt.Errorf("hls: create scratch dir: %w", err)
	}
	defer os.RemoveAll(tmpdir)

	opts := concurrency.ParallelOptions{MaxWorkers: e.Workers}
	files, errs := concurrency.ProcessParallel(ctx, variant.Segments, opts,
		func(ctx context.Context, i int, segURL string) (string, error) {
			segFile := filepath.Join(tmpdir, fmt.Sprintf("segment_%05d.ts", i))
			if _, err := httpx.DownloadFile(ctx, e.Client, segURL, segFile, nil); err != nil {
				return "", &DownloadError{URL: segURL, Err: err}
			}
			return segFile, nil
		})
	if len(errs) > 0 {
		return errs[0]
	}

	listFile := filepath.Join(tmpdir, "concat.txt")
	var list string
	for _, f := range files {
		list += fmt.Sprintf("file '%s'\n", f)
	}
	if err := os.WriteFile(listFile, []byte(list), 0o644); err != nil {
		return fmt.Errorf("hls: write concat list: %w", err)
	}

	return e.FFmpeg.Concat(ctx, listFile, output)
}
