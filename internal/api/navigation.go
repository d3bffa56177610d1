package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hotmart-dl/internal/domain"
)

type navigationResponse struct {
	Modules []navModule `json:"modules"`
}

type navModule struct {
	ID       flexString `json:"id"`
	ModuleID flexString `json:"module_id"`
	Name     string     `json:"name"`
	Pages    []navPage  `json:"pages"`
}

type navPage struct {
	Hash flexString `json:"hash"`
	ID   flexString `json:"id"`
	Name string     `json:"name"`
}

// flexString accepts both JSON strings and numbers; the gateway mixes
// them freely for ids and hashes.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		*f = ""
		return nil
	}
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*f = ""
		return nil
	}
	*f = flexString(n.String())
	return nil
}

func (f flexString) String() string { return string(f) }

// GetCourseNavigation fetches the module/lesson tree for one course.
// productID may be passed when already known (batch mode); otherwise it
// is resolved from the purchase list. Module and lesson order follow the
// API's returned order, with synthetic 1-based order values.
func (c *Client) GetCourseNavigation(ctx context.Context, subdomain, productID string) (*domain.Course, error) {
	if productID == "" {
		var err error
		productID, err = c.ResolveProductID(ctx, subdomain)
		if err != nil {
			return nil, err
		}
	}

	url := c.GatewayBase + "/v1/navigation"
	headers := c.clubHeaders(subdomain)

	// The gateway has served both {"modules": [...]} and a bare array.
	var raw json.RawMessage
	if err := c.getJSON(ctx, url, headers, &raw); err != nil {
		return nil, &Error{Kind: KindRequest, Op: "get course navigation", Err: err}
	}

	var modulesData []navModule
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &modulesData); err != nil {
			return nil, &Error{Kind: KindRequest, Op: "parse navigation", Err: err}
		}
	} else {
		var resp navigationResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, &Error{Kind: KindRequest, Op: "parse navigation", Err: err}
		}
		modulesData = resp.Modules
	}

	course := &domain.Course{
		ID:        productID,
		Name:      c.courseName(ctx, subdomain),
		Subdomain: subdomain,
	}

	for modIdx, mod := range modulesData {
		module := domain.Module{
			ID:    firstNonEmpty(mod.ID.String(), mod.ModuleID.String()),
			Name:  mod.Name,
			Order: modIdx + 1,
		}
		if module.Name == "" {
			module.Name = fmt.Sprintf("Module %d", modIdx+1)
		}
		for lessonIdx, page := range mod.Pages {
			lesson := domain.Lesson{
				ID:     firstNonEmpty(page.Hash.String(), page.ID.String()),
				Name:   page.Name,
				Order:  lessonIdx + 1,
				Status: domain.StatusPending,
			}
			if lesson.Name == "" {
				lesson.Name = fmt.Sprintf("Lesson %d", lessonIdx+1)
			}
			module.Lessons = append(module.Lessons, lesson)
		}
		course.Modules = append(course.Modules, module)
	}

	return course, nil
}

// GetLessonPage fetches one lesson's raw content payload. The caller
// hands it to parser.Parse.
func (c *Client) GetLessonPage(ctx context.Context, subdomain, lessonHash string) ([]byte, error) {
	if _, err := c.ResolveProductID(ctx, subdomain); err != nil {
		return nil, err
	}

	url := c.GatewayBase + "/v2/web/lessons/" + lessonHash
	headers := c.clubHeaders(subdomain)

	var raw json.RawMessage
	if err := c.getJSON(ctx, url, headers, &raw); err != nil {
		return nil, &Error{Kind: KindRequest, Op: "get lesson page " + lessonHash, Err: err}
	}
	return raw, nil
}

// courseName asks product/basic for the display name, falling back to
// the subdomain when the endpoint is unavailable.
func (c *Client) courseName(ctx context.Context, subdomain string) string {
	url := c.GatewayBase + "/v2/product/basic"
	var resp struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, url, c.clubHeaders(subdomain), &resp); err != nil {
		return subdomain
	}
	name := strings.TrimSpace(resp.Name)
	if name == "" {
		return subdomain
	}
	return name
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
