package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// DownloadFile streams url into dest. The body is written to a temp file
// next to dest and renamed into place only on success, so a failed or
// canceled download never leaves a partial file at the final path.
// Returns the number of bytes written.
func DownloadFile(
	ctx context.Context,
	client *http.Client,
	url, dest string,
	headers map[string]string,
) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("httpx: build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return 0, &HTTPError{
			Method:     http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("httpx: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if copyErr != nil {
			return n, fmt.Errorf("httpx: download %s: %w", url, copyErr)
		}
		return n, fmt.Errorf("httpx: close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return n, fmt.Errorf("httpx: move into place: %w", err)
	}
	return n, nil
}

// FetchBody GETs url with optional headers and returns the body, retrying
// transient failures per cfg.
func FetchBody(
	ctx context.Context,
	client *http.Client,
	url string,
	headers map[string]string,
	cfg RetryConfig,
) ([]byte, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}
	_, body, err := DoWithRetry(ctx, client, build, cfg)
	return body, err
}
