// Package api is the client for the Hotmart Club gateway.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/httpx"
)

const (
	// DefaultGatewayBase is the course-consumption gateway serving
	// navigation and lesson payloads.
	DefaultGatewayBase = "https://api-club-course-consumption-gateway-ga.cb.hotmart.com"
	// DefaultHubBase is the hub serving the purchase list.
	DefaultHubBase = "https://api-hub.cb.hotmart.com/club-drive-api"
)

// ErrorKind separates "this course cannot be resolved at all" from
// transient request failures the caller may retry.
type ErrorKind int

const (
	KindRequest ErrorKind = iota
	KindProductNotFound
)

// Error wraps every failure this client produces.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("hotmart api: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client talks to the club gateway. Headers are scoped to one
// subdomain+product per call rather than held as session state, so a
// single client can serve several courses in one run.
type Client struct {
	GatewayBase string
	HubBase     string
	HTTP        *http.Client
	Retry       httpx.RetryConfig

	mu         sync.Mutex
	token      string
	productIDs map[string]string // subdomain -> product id, filled once per run
}

func New(token string) *Client {
	return &Client{
		GatewayBase: DefaultGatewayBase,
		HubBase:     DefaultHubBase,
		HTTP: &http.Client{
			Timeout: 2 * time.Minute,
		},
		Retry:      httpx.DefaultRetryConfig(),
		token:      token,
		productIDs: map[string]string{},
	}
}

// SetToken swaps the bearer token, e.g. after the browser resolver
// captured a fresher one mid-run.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "Bearer " + c.token
}

// clubHeaders builds the per-call header set the gateway requires.
func (c *Client) clubHeaders(subdomain string) map[string]string {
	origin := fmt.Sprintf("https://%s.club.hotmart.com", subdomain)
	return map[string]string{
		"Authorization":   c.bearer(),
		"Accept":          "application/json",
		"Accept-Encoding": "br",
		"club":            subdomain,
		"Origin":          origin,
		"Referer":         origin,
	}
}

func (c *Client) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
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
	return httpx.DoJSON(ctx, c.HTTP, build, out, c.Retry)
}

/* -------- purchase list -------- */

type purchaseResponse struct {
	Data []struct {
		Product struct {
			ID          flexString `json:"id"`
			Name        string     `json:"name"`
			HotmartClub struct {
				Slug string `json:"slug"`
			} `json:"hotmartClub"`
		} `json:"product"`
	} `json:"data"`
}

// ListCourses returns every unarchived course the account can access.
// It also fills the subdomain -> product id cache as a side effect.
func (c *Client) ListCourses(ctx context.Context) ([]domain.CourseListItem, error) {
	url := c.HubBase + "/rest/v2/purchase/?archived=UNARCHIVED"
	headers := map[string]string{
		"Authorization":   c.bearer(),
		"Accept":          "application/json",
		"Accept-Encoding": "br",
	}

	var resp purchaseResponse
	if err := c.getJSON(ctx, url, headers, &resp); err != nil {
		return nil, &Error{Kind: KindRequest, Op: "list courses", Err: err}
	}

	var courses []domain.CourseListItem
	c.mu.Lock()
	for _, item := range resp.Data {
		slug := item.Product.HotmartClub.Slug
		pid := item.Product.ID.String()
		if slug == "" || pid == "" {
			continue
		}
		c.productIDs[slug] = pid
		courses = append(courses, domain.CourseListItem{
			ProductID: pid,
			Name:      item.Product.Name,
			Subdomain: slug,
			Role:      "STUDENT",
			Status:    "ACTIVE",
		})
	}
	c.mu.Unlock()

	return courses, nil
}

// ResolveProductID maps a course subdomain to its product id, fetching
// the purchase list at most once per run.
func (c *Client) ResolveProductID(ctx context.Context, subdomain string) (string, error) {
	c.mu.Lock()
	pid, ok := c.productIDs[subdomain]
	c.mu.Unlock()
	if ok {
		return pid, nil
	}

	if _, err := c.ListCourses(ctx); err != nil {
		return "", err
	}

	c.mu.Lock()
	pid, ok = c.productIDs[subdomain]
	c.mu.Unlock()
	if !ok {
		return "", &Error{
			Kind: KindProductNotFound,
			Op:   "resolve product id",
			Err:  fmt.Errorf("no product found for subdomain %q; check the subdomain with the courses command", subdomain),
		}
	}
	return pid, nil
}
