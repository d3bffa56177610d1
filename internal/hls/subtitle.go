package hls

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/fsutil"
	"hotmart-dl/internal/httpx"
)

// ExtractSubtitleTracks lists the TYPE=SUBTITLES renditions declared in a
// master playlist. Parse failures yield an empty list, not an error; a
// video without reachable captions is still downloadable.
func (e *Engine) ExtractSubtitleTracks(ctx context.Context, masterURL string) []domain.CaptionTrack {
	if rule := MatchCDN(masterURL); rule != nil && rule.Delegate {
		// Can't fetch the master manually on this CDN; the track itself
		// is extracted via ffmpeg in DownloadSubtitleTrack.
		return nil
	}
	playlist, err := e.fetchPlaylist(ctx, masterURL)
	if err != nil {
		return nil
	}

	var tracks []domain.CaptionTrack
	for _, r := range playlist.SubtitleRenditions() {
		tracks = append(tracks, domain.CaptionTrack{
			URL:      r.URI,
			Language: r.Language,
			Label:    r.Name,
			Format:   domain.CaptionVTT, // HLS subtitle renditions are WebVTT
		})
	}
	return tracks
}

// DownloadSubtitleTrack writes one caption track under dest as
// <videoName>.<lang>.<ext>. masterURL is consulted for the CDN
// special-case: on tokenized CDNs the direct track URL 403s and the track
// must come out of the master playlist via ffmpeg.
func (e *Engine) DownloadSubtitleTrack(ctx context.Context, track domain.CaptionTrack, dest, videoName, masterURL string) (string, error) {
	name := fsutil.SanitizeFilename(videoName)
	if track.Language != "" {
		name = name + "." + track.Language
	}
	output := filepath.Join(dest, name+"."+track.Format.Ext())
	if fsutil.FileExistsAndValid(output, 1) {
		return output, nil
	}

	if rule := MatchCDN(masterURL); rule != nil && rule.SubtitlesViaMaster {
		if err := e.FFmpeg.ExtractSubtitle(ctx, masterURL, rule.Referer, output); err != nil {
			return "", err
		}
		return output, nil
	}

	if !isPlaylistURL(track.URL) {
		if _, err := httpx.DownloadFile(ctx, e.Client, track.URL, output, nil); err != nil {
			return "", &DownloadError{URL: track.URL, Err: err}
		}
		return output, nil
	}

	// m3u8-wrapped subtitles: fetch each segment and stitch them into one
	// valid caption file.
	playlist, err := e.fetchPlaylist(ctx, track.URL)
	if err != nil {
		return "", err
	}
	if len(playlist.Segments) == 0 {
		return "", &DownloadError{URL: track.URL, Err: fmt.Errorf("subtitle playlist has no segments")}
	}

	bodies := make([]string, 0, len(playlist.Segments))
	for _, segURL := range playlist.Segments {
		body, err := httpx.FetchBody(ctx, e.Client, segURL, nil, e.Retry)
		if err != nil {
			return "", &DownloadError{URL: segURL, Err: err}
		}
		bodies = append(bodies, string(body))
	}

	if err := os.WriteFile(output, []byte(ConcatSubtitleSegments(bodies)), 0o644); err != nil {
		os.Remove(output)
		return "", fmt.Errorf("hls: write subtitle file: %w", err)
	}
	return output, nil
}

// ConcatSubtitleSegments joins WebVTT segment bodies into one caption
// file. Every segment repeats the WEBVTT header and NOTE/timestamp-map
// preamble; only the first segment keeps it.
func ConcatSubtitleSegments(bodies []string) string {
	var b strings.Builder
	for i, body := range bodies {
		body = strings.ReplaceAll(body, "\r\n", "\n")
		if i > 0 {
			body = stripSegmentHeader(body)
		}
		body = strings.TrimRight(body, "\n")
		if body == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(body)
	}
	b.WriteString("\n")
	return b.String()
}

func stripSegmentHeader(body string) string {
	lines := strings.Split(body, "\n")
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" ||
			strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "NOTE") ||
			strings.HasPrefix(line, "X-TIMESTAMP-MAP") {
			continue
		}
		break
	}
	return strings.Join(lines[i:], "\n")
}

func isPlaylistURL(u string) bool {
	base := strings.ToLower(u)
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.HasSuffix(base, ".m3u8") || strings.Contains(strings.ToLower(u), ".m3u8")
}
