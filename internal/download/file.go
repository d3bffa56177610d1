package download

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/fsutil"
	"hotmart-dl/internal/httpx"
)

// FileFetcher downloads plain files: attachments and direct caption
// URLs. Everything is skip-if-exists like the HLS engine.
type FileFetcher struct {
	Client *http.Client
	Retry  httpx.RetryConfig
}

func NewFileFetcher(client *http.Client) *FileFetcher {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &FileFetcher{Client: client, Retry: httpx.DefaultRetryConfig()}
}

// Attachment writes one attachment under dest, keeping its declared name
// with a sanitized form and an extension inferred from the URL when the
// name has none.
func (f *FileFetcher) Attachment(ctx context.Context, att domain.Attachment, dest string) (string, error) {
	name := fsutil.SanitizeFilename(att.Filename)
	if filepath.Ext(name) == "" {
		if ext := fsutil.SafeExtension(att.URL, ""); ext != "" {
			name += ext
		}
	}
	output := filepath.Join(dest, name)
	if fsutil.FileExistsAndValid(output, 1) {
		return output, nil
	}
	if _, err := httpx.DownloadFile(ctx, f.Client, att.URL, output, nil); err != nil {
		return "", err
	}
	return output, nil
}

// Caption writes one directly-addressable caption track as
// <videoName>.<lang>.<ext> under dest.
func (f *FileFetcher) Caption(ctx context.Context, track domain.CaptionTrack, dest, videoName string) (string, error) {
	name := fsutil.SanitizeFilename(videoName)
	if track.Language != "" {
		name = name + "." + track.Language
	}
	output := filepath.Join(dest, name+"."+track.Format.Ext())
	if fsutil.FileExistsAndValid(output, 1) {
		return output, nil
	}
	if _, err := httpx.DownloadFile(ctx, f.Client, track.URL, output, nil); err != nil {
		return "", err
	}
	return output, nil
}
