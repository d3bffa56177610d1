package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"hotmart-dl/internal/api"
	"hotmart-dl/internal/auth"
	"hotmart-dl/internal/config"
	"hotmart-dl/internal/domain"
	"hotmart-dl/internal/download"
	"hotmart-dl/internal/ffmpeg"
	"hotmart-dl/internal/fsutil"
	"hotmart-dl/internal/hls"
	"hotmart-dl/internal/resolver"
	"hotmart-dl/internal/sftpclient"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: hotmart-dl <command> [flags]

commands:
  courses                    list purchased courses
  info     -course <sub>     show the module/lesson tree of one course
  download -course <sub>     download one course (or all with -all)

credentials come from HOTMART_EMAIL / HOTMART_PASSWORD.
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "courses":
		err = runCourses(ctx, cfg)
	case "info":
		err = runInfo(ctx, cfg, os.Args[2:])
	case "download":
		err = runDownload(ctx, cfg, os.Args[2:])
	default:
		usage()
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Fatal("interrupted")
		}
		log.Fatalf("error: %v", err)
	}
}

// newClient acquires a token (cache first, browser login on miss) and
// builds the API client around it.
func newClient(ctx context.Context, cfg config.Config) (*api.Client, *auth.Manager, error) {
	login := &auth.BrowserLogin{
		Email:    cfg.Email,
		Password: cfg.Password,
		Headless: cfg.Headless,
		ExecPath: cfg.BrowserPath,
	}
	mgr := auth.NewManager(cfg.TokenCacheFile, login.LoginFunc())

	token, err := mgr.Token(ctx)
	if err != nil {
		return nil, nil, err
	}
	return api.New(token), mgr, nil
}

func runCourses(ctx context.Context, cfg config.Config) error {
	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	courses, err := client.ListCourses(ctx)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		fmt.Println("no courses found")
		return nil
	}

	for _, c := range courses {
		fmt.Printf("%-30s %s\n", c.Subdomain, c.Name)
	}
	return nil
}

func runInfo(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	course := fs.String("course", "", "course subdomain")
	fs.Parse(args)
	if *course == "" {
		return errors.New("info: -course is required")
	}

	client, _, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	c, err := client.GetCourseNavigation(ctx, *course, "")
	if err != nil {
		return err
	}

	fmt.Printf("%s (%d modules, %d lessons)\n", c.Name, len(c.Modules), c.TotalLessons())
	for _, m := range c.Modules {
		fmt.Printf("  %02d %s\n", m.Order, m.Name)
		for _, l := range m.Lessons {
			fmt.Printf("     %02d %s\n", l.Order, l.Name)
		}
	}
	return nil
}

func runDownload(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	course := fs.String("course", "", "course subdomain")
	all := fs.Bool("all", false, "download every purchased course")
	quality := fs.String("quality", cfg.Quality, "video quality (best, 1080p, 720p, 480p, 360p)")
	subtitles := fs.Bool("subtitles", true, "download caption tracks")
	audioOnly := fs.Bool("audio-only", false, "extract audio tracks instead of video")
	dryRun := fs.Bool("dry-run", false, "list what would be downloaded without fetching")
	modules := fs.String("modules", "", "comma-separated module name filters")
	fs.Parse(args)

	if *course == "" && !*all {
		return errors.New("download: -course or -all is required")
	}

	client, mgr, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}

	res := resolver.New(cfg.Email, cfg.Password, cfg.Headless, cfg.BrowserPath)
	res.TokenSink = func(token string) {
		mgr.Store(token)
		client.SetToken(token)
	}
	defer res.Close()

	runner := &download.Runner{
		API:           client,
		Resolver:      res,
		HLS:           hls.NewEngine(&http.Client{Timeout: cfg.Timeout}, ffmpeg.New(cfg.FFmpegPath), cfg.SegmentWorkers),
		Ytdlp:         download.NewYtdlp(cfg.YtdlpPath),
		Files:         download.NewFileFetcher(&http.Client{Timeout: 5 * time.Minute}),
		GuessLanguage: resolver.GuessLanguageFromURL,
		OutputDir:     cfg.OutputDir,
	}

	opts := download.Options{
		Quality:       *quality,
		Subtitles:     *subtitles,
		AudioOnly:     *audioOnly,
		DryRun:        *dryRun,
		ModuleWorkers: cfg.Workers,
	}
	if *modules != "" {
		opts.ModuleFilter = strings.Split(*modules, ",")
	}

	subdomains := []string{*course}
	if *all {
		list, err := client.ListCourses(ctx)
		if err != nil {
			return err
		}
		subdomains = subdomains[:0]
		for _, c := range list {
			subdomains = append(subdomains, c.Subdomain)
		}
	}

	exitErr := error(nil)
	for _, sub := range subdomains {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := downloadCourse(ctx, cfg, client, runner, sub, opts); err != nil {
			log.Printf("course %s: %v", sub, err)
			exitErr = err
		}
	}
	return exitErr
}

func downloadCourse(ctx context.Context, cfg config.Config, client *api.Client, runner *download.Runner, subdomain string, opts download.Options) error {
	course, err := client.GetCourseNavigation(ctx, subdomain, "")
	if err != nil {
		return err
	}

	fmt.Printf("downloading %q: %d modules, %d lessons\n", course.Name, len(course.Modules), course.TotalLessons())
	summary := runner.Run(ctx, course, opts)

	fmt.Printf("done: %d completed, %d skipped, %d failed\n",
		summary.Completed, summary.Skipped, summary.Failed)
	for _, r := range summary.Results {
		if r.Status == domain.StatusFailed {
			fmt.Printf("  failed: %s / %s: %v\n", r.Module, r.Lesson, r.Err)
		}
	}

	if cfg.MirrorEnabled() && !opts.DryRun {
		if err := mirrorCourse(ctx, cfg, course.Name); err != nil {
			log.Printf("mirror: %v", err)
		}
	}

	if summary.Failed > 0 {
		return fmt.Errorf("%d lessons failed", summary.Failed)
	}
	return ctx.Err()
}

// mirrorCourse pushes the finished course directory to the configured
// SFTP host. Mirror failures are logged, never fatal.
func mirrorCourse(ctx context.Context, cfg config.Config, courseName string) error {
	mirror, err := sftpclient.Connect(ctx, sftpclient.Config{
		Host:      cfg.MirrorHost,
		Port:      cfg.MirrorPort,
		User:      cfg.MirrorUser,
		Pass:      cfg.MirrorPass,
		RemoteDir: cfg.MirrorDir,
	})
	if err != nil {
		return err
	}
	defer mirror.Close()

	local := filepath.Join(cfg.OutputDir, fsutil.SanitizeFilename(courseName))
	n, err := mirror.UploadTree(ctx, local)
	fmt.Printf("mirrored %d files from %s\n", n, local)
	return err
}
