// Package ffmpeg wraps the external ffmpeg binary. ffmpeg is an
// unavoidable process dependency for muxing; its absence is a distinct
// fatal error, never silently skipped.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrNotFound means the ffmpeg binary is not installed or not on PATH.
var ErrNotFound = errors.New("ffmpeg not found: install it and ensure it is on PATH (or set HOTMART_FFMPEG)")

// MuxError is a failed or timed-out ffmpeg invocation.
type MuxError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *MuxError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg %s failed: %s", e.Op, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg %s failed: %v", e.Op, e.Err)
}

func (e *MuxError) Unwrap() error { return e.Err }

// Runner invokes ffmpeg with bounded timeouts.
type Runner struct {
	// Path is the ffmpeg binary ("ffmpeg" resolves via PATH).
	Path string
	// MuxTimeout bounds full remux jobs where ffmpeg fetches the stream
	// itself (encrypted variants, tokenized CDNs).
	MuxTimeout time.Duration
	// ConcatTimeout bounds local lossless concatenation.
	ConcatTimeout time.Duration
}

// New returns a Runner with the default timeouts.
func New(path string) *Runner {
	if path == "" {
		path = "ffmpeg"
	}
	return &Runner{
		Path:          path,
		MuxTimeout:    10 * time.Minute,
		ConcatTimeout: 5 * time.Minute,
	}
}

// Remux hands an HLS manifest URL straight to ffmpeg and stream-copies it
// into output. ffmpeg's native HLS demuxer resolves key URIs and decrypts
// AES-128 transparently, so this also covers encrypted variants. referer,
// when set, is sent on every request ffmpeg makes.
func (r *Runner) Remux(ctx context.Context, manifestURL, referer, output string) error {
	args := []string{"-y"}
	if referer != "" {
		args = append(args, "-headers", "Referer: "+referer+"\r\n")
	}
	args = append(args,
		"-i", manifestURL,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	)
	return r.run(ctx, "remux", r.MuxTimeout, output, args)
}

// Concat losslessly joins already-downloaded segments listed in listFile
// (ffmpeg concat demuxer format) into output.
func (r *Runner) Concat(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
	return r.run(ctx, "concat", r.ConcatTimeout, output, args)
}

// ExtractAudio pulls the audio track out of an HLS stream into output
// (AAC, 192k), letting ffmpeg fetch the manifest directly.
func (r *Runner) ExtractAudio(ctx context.Context, manifestURL, referer, output string) error {
	args := []string{"-y"}
	if referer != "" {
		args = append(args, "-headers", "Referer: "+referer+"\r\n")
	}
	args = append(args,
		"-i", manifestURL,
		"-vn",
		"-acodec", "aac",
		"-b:a", "192k",
		output,
	)
	return r.run(ctx, "audio", r.MuxTimeout, output, args)
}

// ExtractSubtitle pulls the first subtitle stream out of a master
// playlist. Used on CDNs where direct subtitle playlist URLs 403 even
// though the master does not.
func (r *Runner) ExtractSubtitle(ctx context.Context, masterURL, referer, output string) error {
	args := []string{"-y"}
	if referer != "" {
		args = append(args, "-headers", "Referer: "+referer+"\r\n")
	}
	args = append(args,
		"-i", masterURL,
		"-map", "0:s:0",
		output,
	)
	return r.run(ctx, "subtitle", r.MuxTimeout, output, args)
}

func (r *Runner) run(ctx context.Context, op string, timeout time.Duration, output string, args []string) error {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	// A failed invocation must not leave a corrupt artifact behind.
	os.Remove(output)

	if errors.Is(err, exec.ErrNotFound) {
		return ErrNotFound
	}
	if ctx.Err() != nil {
		return &MuxError{Op: op, Err: fmt.Errorf("timed out after %s: %w", timeout, ctx.Err())}
	}
	return &MuxError{Op: op, Stderr: lastLines(stderr.String(), 5), Err: err}
}

// lastLines keeps the tail of ffmpeg's stderr, which is where the actual
// error lands after pages of stream info.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
