package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func newTestClient(srv *httptest.Server) *Client {
	c := New("test-token")
	c.GatewayBase = srv.URL
	c.HubBase = srv.URL
	c.HTTP = srv.Client()
	c.Retry.MaxAttempts = 1
	return c
}

func TestListCourses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer header, got %q", got)
		}
		w.Write([]byte(`{"data":[
			{"product":{"id":111,"name":"Course A","hotmartClub":{"slug":"course-a"}}},
			{"product":{"id":"222","name":"Course B","hotmartClub":{"slug":"course-b"}}},
			{"product":{"id":333,"name":"No Club","hotmartClub":{"slug":""}}}
		]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	courses, err := client.ListCourses(context.Background())
	if err != nil {
		t.Fatalf("ListCourses returned error: %v", err)
	}

	if len(courses) != 2 {
		t.Fatalf("Expected 2 courses (clubless entries dropped), got %d", len(courses))
	}
	// Numeric and string ids both normalize to strings.
	if courses[0].ProductID != "111" {
		t.Errorf("Expected product id 111, got %q", courses[0].ProductID)
	}
	if courses[1].ProductID != "222" {
		t.Errorf("Expected product id 222, got %q", courses[1].ProductID)
	}
	if courses[0].Subdomain != "course-a" {
		t.Errorf("Expected subdomain course-a, got %q", courses[0].Subdomain)
	}
}

func TestResolveProductIDCachesPurchaseList(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`{"data":[{"product":{"id":111,"name":"A","hotmartClub":{"slug":"course-a"}}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)

	for i := 0; i < 3; i++ {
		pid, err := client.ResolveProductID(context.Background(), "course-a")
		if err != nil {
			t.Fatalf("ResolveProductID returned error: %v", err)
		}
		if pid != "111" {
			t.Errorf("Expected 111, got %q", pid)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("Expected a single purchase list fetch, got %d", calls)
	}
}

func TestResolveProductIDNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.ResolveProductID(context.Background(), "nope")
	if err == nil {
		t.Fatal("Expected error for unknown subdomain")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if apiErr.Kind != KindProductNotFound {
		t.Errorf("Expected KindProductNotFound, got %v", apiErr.Kind)
	}
}

func TestRequestErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.ListCourses(context.Background())

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if apiErr.Kind != KindRequest {
		t.Errorf("Expected KindRequest, got %v", apiErr.Kind)
	}
}

func TestClubHeaders(t *testing.T) {
	client := New("tok")
	headers := client.clubHeaders("minha-escola")

	if headers["Authorization"] != "Bearer tok" {
		t.Errorf("Expected bearer header, got %q", headers["Authorization"])
	}
	if headers["club"] != "minha-escola" {
		t.Errorf("Expected club header, got %q", headers["club"])
	}
	want := "https://minha-escola.club.hotmart.com"
	if headers["Origin"] != want || headers["Referer"] != want {
		t.Errorf("Expected origin/referer %q, got %q / %q", want, headers["Origin"], headers["Referer"])
	}
}

func TestSetToken(t *testing.T) {
	client := New("old")
	client.SetToken("new")
	if client.bearer() != "Bearer new" {
		t.Errorf("Expected swapped token, got %q", client.bearer())
	}
}
