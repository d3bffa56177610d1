// Package resolver recovers CDN manifest URLs for lessons whose player
// wraps the stream in an embed instead of exposing a manifest directly.
// It drives one long-lived browser session across the whole run.
package resolver

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"hotmart-dl/internal/auth"
	"hotmart-dl/internal/browser"
	"hotmart-dl/internal/domain"
)

const (
	captureWindow = 30 * time.Second
	// settleDelay lets variant and caption manifests trail in after the
	// first capture.
	settleDelay = 3 * time.Second
)

// Resolver owns the shared browser. All methods serialize on the mutex;
// a browser cannot multiplex independent navigations.
type Resolver struct {
	Email    string
	Password string
	Headless bool
	ExecPath string

	// TokenSink receives bearer tokens sniffed along the way so the API
	// client can be refreshed without another login.
	TokenSink func(token string)

	mu       sync.Mutex
	sess     *browser.Session
	authed   bool
	clubs    map[string]bool // subdomains with an established club context
	captured []string
	capMu    sync.Mutex
}

func New(email, password string, headless bool, execPath string) *Resolver {
	return &Resolver{
		Email:    email,
		Password: password,
		Headless: headless,
		ExecPath: execPath,
		clubs:    map[string]bool{},
	}
}

// Resolve captures the manifest URLs for one lesson. A lesson yielding
// zero URLs returns an empty ResolvedMedia, not an error; unresolved is
// a reportable outcome. An unresponsive browser is torn down and
// replaced once before the failure propagates.
func (r *Resolver) Resolve(ctx context.Context, subdomain, productID, lessonHash, mediaCode string) (domain.ResolvedMedia, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	media, err := r.resolveLocked(ctx, subdomain, productID, lessonHash, mediaCode)
	if err == nil {
		return media, nil
	}
	if ctx.Err() != nil {
		return domain.ResolvedMedia{}, err
	}

	log.Printf("resolver: browser failed (%v), relaunching once", err)
	r.teardownLocked()
	return r.resolveLocked(ctx, subdomain, productID, lessonHash, mediaCode)
}

// Close shuts the browser down.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teardownLocked()
}

func (r *Resolver) teardownLocked() {
	if r.sess != nil {
		r.sess.Close()
		r.sess = nil
	}
	r.authed = false
	r.clubs = map[string]bool{}
}

func (r *Resolver) resolveLocked(ctx context.Context, subdomain, productID, lessonHash, mediaCode string) (domain.ResolvedMedia, error) {
	if err := r.ensureBrowserLocked(); err != nil {
		return domain.ResolvedMedia{}, err
	}
	if err := r.ensureAuthenticatedLocked(ctx); err != nil {
		return domain.ResolvedMedia{}, err
	}
	if err := r.ensureClubContextLocked(ctx, subdomain); err != nil {
		return domain.ResolvedMedia{}, err
	}

	lessonURL := fmt.Sprintf("https://%s.club.hotmart.com/lesson/%s", subdomain, lessonHash)
	if productID != "" {
		lessonURL = fmt.Sprintf("https://hotmart.com/pt-BR/club/%s/products/%s/content/%s",
			subdomain, productID, lessonHash)
	}

	mark := r.captureMark()

	navCtx, cancel := context.WithTimeout(r.sess.Ctx(), 45*time.Second)
	err := chromedp.Run(navCtx, chromedp.Navigate(lessonURL))
	cancel()
	if err != nil {
		return domain.ResolvedMedia{}, fmt.Errorf("resolver: navigate to lesson %s: %w", lessonHash, err)
	}

	urls, err := r.waitForCapture(ctx, mark)
	if err != nil {
		return domain.ResolvedMedia{}, err
	}
	return Categorize(urls, mediaCode), nil
}

func (r *Resolver) ensureBrowserLocked() error {
	if r.sess != nil && r.sess.Healthy() {
		return nil
	}
	r.teardownLocked()

	sess, err := browser.New(browser.Options{Headless: r.Headless, ExecPath: r.ExecPath})
	if err != nil {
		return err
	}
	sess.CaptureRequestURLs(isManifestURL, func(url string) {
		r.capMu.Lock()
		r.captured = append(r.captured, url)
		r.capMu.Unlock()
	})
	if r.TokenSink != nil {
		sess.CaptureBearerTokens(r.TokenSink)
	}
	r.sess = sess
	return nil
}

func (r *Resolver) ensureAuthenticatedLocked(ctx context.Context) error {
	if r.authed {
		return nil
	}
	token, err := auth.LoginInSession(ctx, r.sess, r.Email, r.Password)
	if err != nil {
		return fmt.Errorf("resolver: authenticate: %w", err)
	}
	if r.TokenSink != nil {
		r.TokenSink(token)
	}
	r.authed = true
	return nil
}

// ensureClubContextLocked visits the club's landing page once per
// subdomain; the player refuses lesson deep links without it.
func (r *Resolver) ensureClubContextLocked(ctx context.Context, subdomain string) error {
	if r.clubs[subdomain] {
		return nil
	}
	clubURL := fmt.Sprintf("https://hotmart.com/pt-BR/club/%s", subdomain)
	navCtx, cancel := context.WithTimeout(r.sess.Ctx(), 45*time.Second)
	defer cancel()
	err := chromedp.Run(navCtx,
		chromedp.Navigate(clubURL),
		chromedp.Sleep(3*time.Second),
	)
	if err != nil {
		return fmt.Errorf("resolver: establish club context for %s: %w", subdomain, err)
	}
	r.clubs[subdomain] = true
	return nil
}

// captureMark snapshots the capture buffer length so only URLs from the
// upcoming navigation are read back.
func (r *Resolver) captureMark() int {
	r.capMu.Lock()
	defer r.capMu.Unlock()
	return len(r.captured)
}

func (r *Resolver) capturedSince(mark int) []string {
	r.capMu.Lock()
	defer r.capMu.Unlock()
	return append([]string(nil), r.captured[mark:]...)
}

// waitForCapture polls for manifest URLs up to the capture window, then
// waits a short settle period after the first hit so trailing variant
// and caption manifests are included too.
func (r *Resolver) waitForCapture(ctx context.Context, mark int) ([]string, error) {
	deadline := time.Now().Add(captureWindow)
	for time.Now().Before(deadline) {
		if urls := r.capturedSince(mark); len(urls) > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(settleDelay):
			}
			return dedupe(r.capturedSince(mark)), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return nil, nil
}

func isManifestURL(url string) bool {
	return strings.Contains(url, ".m3u8")
}

func dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	var out []string
	for _, u := range urls {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
