package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"hotmart-dl/internal/api"
	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/ffmpeg"
	"hotmart-dl/internal/hls"
)

type stubResolver struct {
	media domain.ResolvedMedia
	err   error
	calls int
}

func (s *stubResolver) Resolve(ctx context.Context, subdomain, productID, lessonHash, mediaCode string) (domain.ResolvedMedia, error) {
	s.calls++
	return s.media, s.err
}

// newTestServer emulates the purchase hub plus the lesson gateway.
// lessons maps lesson hash to the JSON payload to serve.
func newTestServer(t *testing.T, lessons map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v2/purchase/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"product":{"id":777,"name":"My Course","hotmartClub":{"slug":"mycourse"}}}]}`))
	})
	mux.HandleFunc("/v2/web/lessons/", func(w http.ResponseWriter, r *http.Request) {
		hash := filepath.Base(r.URL.Path)
		payload, ok := lessons[hash]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Write([]byte(payload))
	})
	return httptest.NewServer(mux)
}

func newTestRunner(srv *httptest.Server, dir string, res StreamResolver) *Runner {
	client := api.New("test-token")
	client.GatewayBase = srv.URL
	client.HubBase = srv.URL
	client.HTTP = srv.Client()
	client.Retry.MaxAttempts = 1

	return &Runner{
		API:       client,
		Resolver:  res,
		HLS:       hls.NewEngine(srv.Client(), ffmpeg.New("ffmpeg-not-installed"), 1),
		Ytdlp:     NewYtdlp("yt-dlp-not-installed"),
		Files:     NewFileFetcher(srv.Client()),
		OutputDir: dir,
	}
}

func testCourse(lessonIDs ...string) *domain.Course {
	module := domain.Module{ID: "m1", Name: "Module One", Order: 1}
	for i, id := range lessonIDs {
		module.Lessons = append(module.Lessons, domain.Lesson{
			ID: id, Name: "Lesson " + id, Order: i + 1, Status: domain.StatusPending,
		})
	}
	return &domain.Course{
		ID: "777", Name: "My Course", Subdomain: "mycourse",
		Modules: []domain.Module{module},
	}
}

func TestRunDryRun(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"hashA": `{"mediasSrc":[{"mediaSrcUrl":"https://cf-embed.play.hotmart.com/embed/X","mediaName":"v"}]}`,
		"hashB": `{}`,
	})
	defer srv.Close()

	dir := t.TempDir()
	runner := newTestRunner(srv, dir, &stubResolver{})
	course := testCourse("hashA", "hashB")

	summary := runner.Run(context.Background(), course, Options{DryRun: true})

	if summary.Skipped != 2 || summary.Completed != 0 || summary.Failed != 0 {
		t.Errorf("Expected 2 skipped, got completed=%d skipped=%d failed=%d",
			summary.Completed, summary.Skipped, summary.Failed)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected dry run to write nothing, found %d entries", len(entries))
	}
	for _, l := range course.Modules[0].Lessons {
		if !l.Status.Terminal() {
			t.Errorf("Expected lesson %s in a terminal state, got %q", l.ID, l.Status)
		}
	}
}

func TestRunDownloadsAttachmentsAndText(t *testing.T) {
	var base string
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/v2/purchase/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"product":{"id":777,"name":"My Course","hotmartClub":{"slug":"mycourse"}}}]}`))
	})
	mux.HandleFunc("/files/a.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.HandleFunc("/v2/web/lessons/hashA", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"fileMembershipSrc":[{"fileMembershipUrl":"` + base + `/files/a.pdf","fileMembershipName":"a.pdf"}],
			"description":"<p>Welcome</p>",
			"content":"<a href=\"https://community.example.com/join\">Join</a>"
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	dir := t.TempDir()
	runner := newTestRunner(srv, dir, &stubResolver{})
	course := testCourse("hashA")

	summary := runner.Run(context.Background(), course, Options{})

	if summary.Completed != 1 {
		t.Fatalf("Expected 1 completed, got completed=%d failed=%d (results %+v)",
			summary.Completed, summary.Failed, summary.Results)
	}

	lessonDir := filepath.Join(dir, "My Course", "01_Module One", "01_Lesson hashA")
	if _, err := os.Stat(filepath.Join(lessonDir, "a.pdf")); err != nil {
		t.Errorf("Expected attachment on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lessonDir, "description.txt")); err != nil {
		t.Errorf("Expected description on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(lessonDir, "links.txt")); err != nil {
		t.Errorf("Expected links on disk: %v", err)
	}
}

func TestRunLessonFailureDoesNotAbortBatch(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		// hashBad is absent, so the gateway answers 404.
		"hashGood": `{"description":"<p>ok</p>"}`,
	})
	defer srv.Close()

	dir := t.TempDir()
	runner := newTestRunner(srv, dir, &stubResolver{})
	course := testCourse("hashBad", "hashGood")

	summary := runner.Run(context.Background(), course, Options{})

	if summary.Failed != 1 {
		t.Errorf("Expected 1 failed lesson, got %d", summary.Failed)
	}
	if summary.Completed != 1 {
		t.Errorf("Expected the batch to continue past the failure, got %d completed", summary.Completed)
	}
	if len(summary.Results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(summary.Results))
	}
}

func TestRunUnresolvedVideoIsNotAFailure(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"hashA": `{"mediasSrc":[{"mediaSrcUrl":"https://cf-embed.play.hotmart.com/embed/X","mediaName":"v","mediaCode":"X"}]}`,
	})
	defer srv.Close()

	dir := t.TempDir()
	res := &stubResolver{} // returns an empty ResolvedMedia
	runner := newTestRunner(srv, dir, res)
	course := testCourse("hashA")

	summary := runner.Run(context.Background(), course, Options{})

	if res.calls != 1 {
		t.Errorf("Expected 1 resolver call, got %d", res.calls)
	}
	if summary.Failed != 0 {
		t.Errorf("Expected unresolved media to not fail the lesson, got %d failed", summary.Failed)
	}
	if summary.Completed != 1 {
		t.Errorf("Expected 1 completed, got %d", summary.Completed)
	}
}

func TestFilterModules(t *testing.T) {
	modules := []domain.Module{
		{Name: "Introdução"},
		{Name: "Advanced Topics"},
		{Name: "Bonus Content"},
	}

	got := filterModules(modules, []string{"advanced", "bonus"})
	if len(got) != 2 {
		t.Fatalf("Expected 2 modules, got %d", len(got))
	}
	if got[0].Name != "Advanced Topics" || got[1].Name != "Bonus Content" {
		t.Errorf("Unexpected filtered modules: %v", got)
	}

	if got := filterModules(modules, nil); len(got) != 3 {
		t.Errorf("Expected empty filter to keep all modules, got %d", len(got))
	}
}
