package download

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"hotmart-dl/internal/api"
	"hotmart-dl/internal/concurrency"
	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/fsutil"
	"hotmart-dl/internal/hls"
	"hotmart-dl/internal/parser"
)

// StreamResolver recovers manifest URLs for embed-wrapped videos. The
// production implementation is resolver.Resolver; tests stub it.
type StreamResolver interface {
	Resolve(ctx context.Context, subdomain, productID, lessonHash, mediaCode string) (domain.ResolvedMedia, error)
}

// LanguageGuesser names the language of a captured subtitle stream URL.
type LanguageGuesser func(url string) string

// Options control one batch run.
type Options struct {
	Quality   string
	Subtitles bool
	AudioOnly bool
	DryRun    bool
	// ModuleFilter keeps only modules whose name contains one of these
	// substrings (case-insensitive). Empty means all modules.
	ModuleFilter []string
	// ModuleWorkers bounds cross-module parallelism. Lessons inside a
	// module always run in declared order.
	ModuleWorkers int
}

// LessonResult is the outcome for one lesson.
type LessonResult struct {
	Module string
	Lesson string
	Status domain.DownloadStatus
	Err    error
}

// Summary aggregates a whole run. Per-lesson failures never abort the
// batch; they land here.
type Summary struct {
	Completed int
	Skipped   int
	Failed    int
	Results   []LessonResult
}

func (s *Summary) add(res LessonResult) {
	s.Results = append(s.Results, res)
	switch res.Status {
	case domain.StatusCompleted:
		s.Completed++
	case domain.StatusSkipped:
		s.Skipped++
	case domain.StatusFailed:
		s.Failed++
	}
}

// Runner downloads a whole course.
type Runner struct {
	API      *api.Client
	Resolver StreamResolver
	HLS      *hls.Engine
	Ytdlp    *YtdlpRunner
	Files    *FileFetcher
	// GuessLanguage names resolver-captured subtitle streams; nil leaves
	// them unlabeled.
	GuessLanguage LanguageGuesser
	OutputDir     string
}

// Run processes every lesson of the course. Modules may run in parallel
// up to opts.ModuleWorkers; lessons within a module stay sequential and
// ordered. Context cancellation stops at the next lesson boundary.
func (r *Runner) Run(ctx context.Context, course *domain.Course, opts Options) *Summary {
	if opts.ModuleWorkers <= 0 {
		opts.ModuleWorkers = 1
	}

	modules := filterModules(course.Modules, opts.ModuleFilter)

	var (
		mu      sync.Mutex
		summary Summary
	)

	popts := concurrency.ParallelOptions{MaxWorkers: opts.ModuleWorkers}
	concurrency.ForEach(ctx, modules, popts, func(ctx context.Context, _ int, module domain.Module) error {
		for li := range module.Lessons {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lesson := &module.Lessons[li]
			res := r.runLesson(ctx, course, module, lesson, opts)
			mu.Lock()
			summary.add(res)
			mu.Unlock()
		}
		return nil
	})

	return &summary
}

func filterModules(modules []domain.Module, filter []string) []domain.Module {
	if len(filter) == 0 {
		return modules
	}
	var out []domain.Module
	for _, m := range modules {
		name := strings.ToLower(m.Name)
		for _, f := range filter {
			if strings.Contains(name, strings.ToLower(f)) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}

// runLesson runs the whole per-lesson pipeline. Every failure is local:
// it marks the lesson failed and the batch moves on.
func (r *Runner) runLesson(ctx context.Context, course *domain.Course, module domain.Module, lesson *domain.Lesson, opts Options) LessonResult {
	lesson.Status = domain.StatusDownloading
	res := LessonResult{Module: module.Name, Lesson: lesson.Name}

	fail := func(err error) LessonResult {
		lesson.Status = domain.StatusFailed
		res.Status = domain.StatusFailed
		res.Err = err
		log.Printf("lesson %q failed: %v", lesson.Name, err)
		return res
	}

	payload, err := r.API.GetLessonPage(ctx, course.Subdomain, lesson.ID)
	if err != nil {
		return fail(err)
	}

	content := parser.Parse(payload)
	lesson.Content = &content
	if content.Empty() {
		lesson.Status = domain.StatusSkipped
		res.Status = domain.StatusSkipped
		return res
	}

	if opts.DryRun {
		log.Printf("[dry-run] %s / %s: %d videos, %d attachments, %d captions, %d links",
			module.Name, lesson.Name,
			len(content.Videos), len(content.Attachments), len(content.Captions), len(content.Links))
		lesson.Status = domain.StatusSkipped
		res.Status = domain.StatusSkipped
		return res
	}

	dest, err := fsutil.BuildLessonPath(r.OutputDir, course.Name,
		module.Order, module.Name, lesson.Order, lesson.Name)
	if err != nil {
		return fail(err)
	}

	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if err != nil {
			log.Printf("lesson %q: %v", lesson.Name, err)
		}
	}

	for _, video := range content.Videos {
		record(r.downloadVideo(ctx, course, lesson, video, dest, opts))
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
	}

	for _, att := range content.Attachments {
		_, err := r.Files.Attachment(ctx, att, dest)
		record(err)
	}

	if opts.Subtitles {
		name := "captions"
		if len(content.Videos) > 0 {
			name = content.Videos[0].Filename
		}
		for _, track := range content.Captions {
			_, err := r.Files.Caption(ctx, track, dest, name)
			record(err)
		}
	}

	if _, err := SaveDescription(dest, content.Description); err != nil {
		record(err)
	}
	if _, err := SaveLinks(dest, content.Links); err != nil {
		record(err)
	}

	if firstErr != nil {
		return fail(firstErr)
	}
	lesson.Status = domain.StatusCompleted
	res.Status = domain.StatusCompleted
	return res
}

// downloadVideo routes one video reference to the right downloader,
// resolving embed wrappers through the browser first when needed.
func (r *Runner) downloadVideo(ctx context.Context, course *domain.Course, lesson *domain.Lesson, video domain.VideoReference, dest string, opts Options) error {
	switch Select(video.URL, video.Kind) {
	case TargetExternal:
		referer := fmt.Sprintf("https://%s.club.hotmart.com", course.Subdomain)
		if opts.AudioOnly {
			_, err := r.Ytdlp.DownloadAudioOnly(ctx, video.URL, dest, video.Filename, referer)
			return err
		}
		_, err := r.Ytdlp.Download(ctx, video.URL, dest, video.Filename, opts.Quality, referer)
		if err == nil && opts.Subtitles {
			if serr := r.Ytdlp.DownloadSubtitles(ctx, video.URL, dest, video.Filename, referer); serr != nil {
				log.Printf("lesson %q: subtitles: %v", lesson.Name, serr)
			}
		}
		return err

	case TargetHLS:
		manifestURL := video.URL
		var resolved domain.ResolvedMedia

		if needsResolution(video.URL) {
			if r.Resolver == nil {
				return fmt.Errorf("video %q needs browser resolution but no resolver is configured", video.Filename)
			}
			var err error
			resolved, err = r.Resolver.Resolve(ctx, course.Subdomain, course.ID, lesson.ID, video.MediaCode)
			if err != nil {
				return err
			}
			if !resolved.Resolved() {
				// Unresolved is a reportable outcome, not a crash.
				log.Printf("lesson %q: no stream captured for %q, skipping video", lesson.Name, video.Filename)
				return nil
			}
			manifestURL = resolved.MasterURL
			if manifestURL == "" && len(resolved.VariantURLs) > 0 {
				manifestURL = resolved.VariantURLs[0]
			}
		}

		if opts.AudioOnly {
			_, err := r.HLS.DownloadAudioOnly(ctx, manifestURL, dest, video.Filename)
			return err
		}

		if _, err := r.HLS.Download(ctx, manifestURL, dest, opts.Quality, video.Filename); err != nil {
			return err
		}

		if opts.Subtitles {
			r.downloadStreamSubtitles(ctx, lesson, video, resolved, manifestURL, dest)
		}
		return nil
	}
	return nil
}

// downloadStreamSubtitles is best-effort: caption failures are logged
// and never fail the video they belong to.
func (r *Runner) downloadStreamSubtitles(ctx context.Context, lesson *domain.Lesson, video domain.VideoReference, resolved domain.ResolvedMedia, masterURL, dest string) {
	tracks := r.HLS.ExtractSubtitleTracks(ctx, masterURL)

	for _, u := range resolved.SubtitleURLs {
		lang := ""
		if r.GuessLanguage != nil {
			lang = r.GuessLanguage(u)
		}
		tracks = append(tracks, domain.CaptionTrack{
			URL:      u,
			Language: lang,
			Format:   domain.CaptionVTT,
		})
	}

	seen := map[string]bool{}
	for _, track := range tracks {
		if seen[track.URL] {
			continue
		}
		seen[track.URL] = true
		if _, err := r.HLS.DownloadSubtitleTrack(ctx, track, dest, video.Filename, masterURL); err != nil {
			log.Printf("lesson %q: subtitle track %s: %v", lesson.Name, track.Language, err)
		}
	}
}

// needsResolution reports whether the URL is an embed wrapper rather
// than a direct manifest.
func needsResolution(url string) bool {
	return !strings.Contains(url, ".m3u8")
}
