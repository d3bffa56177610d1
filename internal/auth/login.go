package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"hotmart-dl/internal/browser"
)

const (
	ssoHost  = "sso.hotmart.com"
	loginURL = "https://sso.hotmart.com/login"
	// purchasesURL is an authenticated page whose API calls carry the
	// bearer token; the login response itself never exposes it.
	purchasesURL = "https://consumer.hotmart.com/purchase"
)

// consentSelectors are tried in order to dismiss cookie/consent overlays
// that would otherwise swallow the login form's clicks.
var consentSelectors = []string{
	`#onetrust-accept-btn-handler`,
	`button[data-test-id="accept-cookies"]`,
	`.cookie-alert-accept`,
}

// challengeMarkers identify the WAF bot-verification page.
var challengeMarkers = []string{
	"hcaptcha",
	"challenge-container",
	"verifique que",
	"verify you are human",
}

// BrowserLogin drives a real browser through the SSO flow and captures
// the bearer token from subsequent API traffic.
type BrowserLogin struct {
	Email    string
	Password string
	Headless bool
	ExecPath string
}

// LoginFunc adapts a BrowserLogin for Manager.
func (b *BrowserLogin) LoginFunc() LoginFunc {
	return func(ctx context.Context) (string, error) {
		return b.Login(ctx)
	}
}

// Login runs the full flow in a throwaway browser session.
func (b *BrowserLogin) Login(ctx context.Context) (string, error) {
	sess, err := browser.New(browser.Options{Headless: b.Headless, ExecPath: b.ExecPath})
	if err != nil {
		return "", err
	}
	defer sess.Close()
	return LoginInSession(ctx, sess, b.Email, b.Password)
}

// LoginInSession performs the SSO login inside an existing session and
// returns the freshest bearer token seen on the wire. The stream
// resolver reuses this to authenticate its own long-lived browser.
func LoginInSession(ctx context.Context, sess *browser.Session, email, password string) (string, error) {
	var (
		mu     sync.Mutex
		latest string
	)
	sess.CaptureBearerTokens(func(tok string) {
		mu.Lock()
		latest = tok
		mu.Unlock()
	})

	bctx := sess.Ctx()

	navCtx, cancel := context.WithTimeout(bctx, 45*time.Second)
	err := chromedp.Run(navCtx,
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(`input[name="username"]`, chromedp.ByQuery),
	)
	cancel()
	if err != nil {
		return "", fmt.Errorf("auth: open login page: %w", err)
	}

	dismissOverlays(bctx)

	submitCtx, cancel := context.WithTimeout(bctx, 30*time.Second)
	err = chromedp.Run(submitCtx,
		chromedp.SendKeys(`input[name="username"]`, email, chromedp.ByQuery),
		chromedp.SendKeys(`input[name="password"]`, password, chromedp.ByQuery),
		chromedp.Click(`button[type="submit"]`, chromedp.ByQuery),
	)
	cancel()
	if err != nil {
		return "", fmt.Errorf("auth: submit credentials: %w", err)
	}

	if err := waitOffLoginHost(ctx, bctx); err != nil {
		return "", err
	}

	// Token capture happens here: an authenticated page whose XHRs all
	// carry Authorization headers.
	warmCtx, cancel := context.WithTimeout(bctx, 45*time.Second)
	err = chromedp.Run(warmCtx,
		chromedp.Navigate(purchasesURL),
		chromedp.Sleep(5*time.Second),
	)
	cancel()
	if err != nil {
		return "", fmt.Errorf("auth: load purchases page: %w", err)
	}

	// Give trailing XHRs a moment to land.
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		tok := latest
		mu.Unlock()
		if tok != "" {
			return tok, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}

	if tok := tokenFromStorage(bctx); tok != "" {
		return tok, nil
	}
	return "", fmt.Errorf("auth: no bearer token observed after login")
}

// dismissOverlays clicks through known consent banners. Every selector
// is best-effort; an absent banner is not an error.
func dismissOverlays(bctx context.Context) {
	for _, sel := range consentSelectors {
		ctx, cancel := context.WithTimeout(bctx, 2*time.Second)
		_ = chromedp.Run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
		cancel()
	}
}

// waitOffLoginHost polls until the browser has navigated away from the
// SSO host. A detected bot-verification page extends the wait to two
// minutes so the operator can solve it by hand; this is the only
// interactive step in the pipeline.
func waitOffLoginHost(ctx context.Context, bctx context.Context) error {
	wait := 60 * time.Second
	if onChallengePage(bctx) {
		fmt.Println("verification challenge detected; solve it in the browser window (2 minute limit)")
		wait = 2 * time.Minute
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		var loc string
		evalCtx, cancel := context.WithTimeout(bctx, 5*time.Second)
		err := chromedp.Run(evalCtx, chromedp.Location(&loc))
		cancel()
		if err == nil && loc != "" && !strings.Contains(loc, ssoHost) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("auth: still on %s after %s; wrong credentials or unsolved challenge", ssoHost, wait)
}

func onChallengePage(bctx context.Context) bool {
	var html string
	ctx, cancel := context.WithTimeout(bctx, 5*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false
	}
	lower := strings.ToLower(html)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// tokenFromStorage is the fallback when no header was captured. Storage
// layout is not a stable contract, so this scans rather than addressing
// a fixed key.
func tokenFromStorage(bctx context.Context) string {
	const script = `(() => {
		for (let i = 0; i < localStorage.length; i++) {
			const v = localStorage.getItem(localStorage.key(i)) || '';
			const m = v.match(/eyJ[\w-]+\.[\w-]+\.[\w-]+/);
			if (m) return m[0];
		}
		const c = document.cookie.match(/(?:^|;\s*)(?:hmVlcIntegration|access_token)=([^;]+)/);
		return c ? c[1] : '';
	})()`

	var tok string
	ctx, cancel := context.WithTimeout(bctx, 10*time.Second)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &tok)); err != nil {
		return ""
	}
	if !strings.HasPrefix(tok, "eyJ") {
		return ""
	}
	return tok
}
