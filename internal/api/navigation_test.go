package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"hotmart-dl/internal/domain"
)

func navServer(t *testing.T, navigation string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v2/purchase/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"product":{"id":777,"name":"My Course","hotmartClub":{"slug":"mycourse"}}}]}`))
	})
	mux.HandleFunc("/v1/navigation", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("club"); got != "mycourse" {
			t.Errorf("Expected club header mycourse, got %q", got)
		}
		w.Write([]byte(navigation))
	})
	mux.HandleFunc("/v2/product/basic", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"My Course"}`))
	})
	return httptest.NewServer(mux)
}

func TestGetCourseNavigation(t *testing.T) {
	srv := navServer(t, `{"modules":[
		{"id":10,"name":"Module A","pages":[
			{"hash":"h1","name":"Lesson One"},
			{"hash":"h2","name":"Lesson Two"}
		]},
		{"id":"20","name":"","pages":[{"hash":"h3","name":""}]}
	]}`)
	defer srv.Close()

	client := newTestClient(srv)
	course, err := client.GetCourseNavigation(context.Background(), "mycourse", "")
	if err != nil {
		t.Fatalf("GetCourseNavigation returned error: %v", err)
	}

	if course.Name != "My Course" {
		t.Errorf("Expected course name from product/basic, got %q", course.Name)
	}
	if course.ID != "777" {
		t.Errorf("Expected resolved product id 777, got %q", course.ID)
	}
	if len(course.Modules) != 2 {
		t.Fatalf("Expected 2 modules, got %d", len(course.Modules))
	}

	modA := course.Modules[0]
	if modA.ID != "10" || modA.Order != 1 {
		t.Errorf("Expected module id 10 order 1, got %q order %d", modA.ID, modA.Order)
	}
	if len(modA.Lessons) != 2 {
		t.Fatalf("Expected 2 lessons, got %d", len(modA.Lessons))
	}
	if modA.Lessons[1].ID != "h2" || modA.Lessons[1].Order != 2 {
		t.Errorf("Expected lesson h2 order 2, got %q order %d", modA.Lessons[1].ID, modA.Lessons[1].Order)
	}
	if modA.Lessons[0].Status != domain.StatusPending {
		t.Errorf("Expected pending status, got %q", modA.Lessons[0].Status)
	}

	// Nameless module/lesson get synthetic names.
	modB := course.Modules[1]
	if modB.Name != "Module 2" {
		t.Errorf("Expected synthetic module name, got %q", modB.Name)
	}
	if modB.Lessons[0].Name != "Lesson 1" {
		t.Errorf("Expected synthetic lesson name, got %q", modB.Lessons[0].Name)
	}
}

func TestGetCourseNavigationBareArray(t *testing.T) {
	srv := navServer(t, `[{"id":1,"name":"Only Module","pages":[{"hash":"h1","name":"L"}]}]`)
	defer srv.Close()

	client := newTestClient(srv)
	course, err := client.GetCourseNavigation(context.Background(), "mycourse", "")
	if err != nil {
		t.Fatalf("GetCourseNavigation returned error: %v", err)
	}
	if len(course.Modules) != 1 {
		t.Fatalf("Expected 1 module from bare-array payload, got %d", len(course.Modules))
	}
	if course.Modules[0].Name != "Only Module" {
		t.Errorf("Expected Only Module, got %q", course.Modules[0].Name)
	}
}

func TestGetCourseNavigationWithKnownProductID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/navigation", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"modules":[]}`))
	})
	mux.HandleFunc("/v2/product/basic", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"Known"}`))
	})
	mux.HandleFunc("/rest/v2/purchase/", func(w http.ResponseWriter, r *http.Request) {
		t.Error("Expected no purchase list fetch when the product id is already known")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	course, err := client.GetCourseNavigation(context.Background(), "mycourse", "999")
	if err != nil {
		t.Fatalf("GetCourseNavigation returned error: %v", err)
	}
	if course.ID != "999" {
		t.Errorf("Expected supplied product id kept, got %q", course.ID)
	}
}

func TestGetLessonPage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v2/purchase/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"product":{"id":777,"name":"C","hotmartClub":{"slug":"mycourse"}}}]}`))
	})
	mux.HandleFunc("/v2/web/lessons/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"mediasSrc":[],"content":"<p>hi</p>"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := newTestClient(srv)
	raw, err := client.GetLessonPage(context.Background(), "mycourse", "abc123")
	if err != nil {
		t.Fatalf("GetLessonPage returned error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("Expected raw JSON payload, got %q", raw)
	}
	if payload["content"] != "<p>hi</p>" {
		t.Errorf("Unexpected payload content: %v", payload["content"])
	}
}

func TestFlexString(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"string", `"abc"`, "abc"},
		{"number", `123`, "123"},
		{"float keeps form", `12.5`, "12.5"},
		{"null", `null`, ""},
		{"bool decays to empty", `true`, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var f flexString
			if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
				t.Fatalf("UnmarshalJSON returned error: %v", err)
			}
			if f.String() != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, f.String())
			}
		})
	}
}
