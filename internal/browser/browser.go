// Package browser owns the single chromedp session shared by the login
// flow and the stream resolver. A browser cannot safely multiplex
// independent navigations, so callers serialize access through one
// Session and health-check it before reuse.
package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// stealthJS masks the usual automation markers; the SSO sits behind a
// WAF that fingerprints headless browsers.
const stealthJS = `
Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
Object.defineProperty(navigator, 'languages', {get: () => ['pt-BR', 'pt', 'en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});
window.chrome = {runtime: {}};
`

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options configures a browser session.
type Options struct {
	Headless bool
	// ExecPath overrides browser autodetection.
	ExecPath string
	Timezone string
}

// Session is one live browser. Ctx() is a chromedp context usable with
// chromedp.Run until Close is called.
type Session struct {
	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// New launches a browser with a realistic fingerprint and stealth init
// script installed.
func New(opts Options) (*Session, error) {
	tz := opts.Timezone
	if tz == "" {
		tz = "America/Sao_Paulo"
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "pt-BR"),
		chromedp.Flag("window-size", "1280,720"),
		chromedp.UserAgent(defaultUserAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Printf))

	init := chromedp.Tasks{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthJS).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetTimezoneOverride(tz).Do(ctx)
		}),
		chromedp.EmulateViewport(1280, 720),
	}

	launchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	if err := chromedp.Run(launchCtx, init); err != nil {
		cancelCtx()
		cancelAlloc()
		return nil, fmt.Errorf("browser: launch failed: %w", err)
	}

	return &Session{ctx: ctx, cancelCtx: cancelCtx, cancelAlloc: cancelAlloc}, nil
}

// Ctx returns the chromedp context for this session.
func (s *Session) Ctx() context.Context { return s.ctx }

// Healthy runs a trivial evaluation to verify the browser still responds.
func (s *Session) Healthy() bool {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	var two int
	return chromedp.Run(ctx, chromedp.Evaluate("1+1", &two)) == nil && two == 2
}

// Close tears the browser down. Safe to call more than once.
func (s *Session) Close() {
	if s.cancelCtx != nil {
		s.cancelCtx()
		s.cancelCtx = nil
	}
	if s.cancelAlloc != nil {
		s.cancelAlloc()
		s.cancelAlloc = nil
	}
}

// CaptureBearerTokens registers a network listener that feeds every
// bearer-JWT Authorization header seen on outgoing requests into sink.
// The listener lives for the whole session; chromedp has no unregister.
func (s *Session) CaptureBearerTokens(sink func(token string)) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if tok := bearerToken(e.Request.Headers); tok != "" {
				sink(tok)
			}
		case *network.EventRequestWillBeSentExtraInfo:
			if tok := bearerToken(e.Headers); tok != "" {
				sink(tok)
			}
		}
	})
}

// CaptureRequestURLs feeds every request URL matching match into sink.
func (s *Session) CaptureRequestURLs(match func(url string) bool, sink func(url string)) {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			if match(e.Request.URL) {
				sink(e.Request.URL)
			}
		case *network.EventResponseReceived:
			if match(e.Response.URL) {
				sink(e.Response.URL)
			}
		}
	})
}

// bearerToken pulls a JWT out of an Authorization header map. Only
// "Bearer eyJ..." shapes count; anything else is not an API token.
func bearerToken(headers network.Headers) string {
	for _, key := range []string{"Authorization", "authorization"} {
		v, ok := headers[key]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if strings.HasPrefix(s, "Bearer eyJ") {
			return strings.TrimPrefix(s, "Bearer ")
		}
	}
	return ""
}
