// Command archivectl runs normalized post descriptors through the
// media acquisition pipeline and mirrors the outcome to the JSON store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/archivebot/mediarchive/internal/archive"
	"github.com/archivebot/mediarchive/internal/config"
	"github.com/archivebot/mediarchive/internal/download"
	"github.com/archivebot/mediarchive/internal/jobs"
	"github.com/archivebot/mediarchive/internal/jsonstore"
	"github.com/archivebot/mediarchive/internal/media"
	"github.com/archivebot/mediarchive/internal/pipeline"
	"github.com/archivebot/mediarchive/internal/platform"
	"github.com/archivebot/mediarchive/internal/remux"
	"github.com/archivebot/mediarchive/internal/resolver"
)

// postInput is the on-disk shape a post fetcher hands over: one post
// envelope with its normalized media descriptors.
type postInput struct {
	Platform media.Platform          `json:"platform"`
	PostID   string                  `json:"post_id"`
	Media    []media.MediaDescriptor `json:"media"`
}

type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...any) {
	log.Printf("warn: "+format, args...)
}

func main() {
	var (
		inPath    = flag.String("in", "", "path to a post descriptor JSON file (\"-\" for stdin)")
		detectURL = flag.String("detect", "", "classify a post URL and exit")
	)
	flag.Parse()

	if *detectURL != "" {
		det, err := platform.Detect(*detectURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			fmt.Fprintln(os.Stderr, "supported URL shapes:")
			for p, example := range platform.Examples() {
				fmt.Fprintf(os.Stderr, "  %-10s %s\n", p, example)
			}
			os.Exit(1)
		}
		fmt.Printf("platform=%s post_id=%s\n", det.Platform, det.PostID)
		return
	}

	if *inPath == "" {
		fmt.Println("Usage: archivectl -in <post.json> | -detect <url>")
		flag.PrintDefaults()
		os.Exit(1)
	}

	post, err := readPost(*inPath)
	if err != nil {
		log.Fatalf("read post input: %v", err)
	}

	cfg := config.Load()

	staging, err := download.NewStaging(cfg.StagingDir)
	if err != nil {
		log.Fatalf("open staging: %v", err)
	}
	placer, err := archive.NewPlacer(cfg.ArchiveRoot, cfg.PublicBaseURL)
	if err != nil {
		log.Fatalf("open archive: %v", err)
	}
	mirror, err := jsonstore.New(cfg.MirrorDir)
	if err != nil {
		log.Fatalf("open mirror store: %v", err)
	}

	var limiter *rate.Limiter
	if cfg.DownloadsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DownloadsPerSecond), 1)
	}
	engine := download.NewEngine(
		&http.Client{Timeout: cfg.RequestTimeout},
		staging,
		download.TransportConfig{MaxRetries: cfg.MaxRetries},
		limiter,
	)

	p := pipeline.New(pipeline.Config{
		Resolver:    resolver.New(resolver.Policy{PreferredContainer: cfg.PreferredContainer}),
		Fetcher:     engine,
		Remuxer:     remux.NewFFmpeg(cfg.FFmpegPath),
		Placer:      placer,
		Staging:     staging,
		Concurrency: int64(cfg.Concurrency),
		Logger:      stdLogger{},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs.StartJanitor(ctx, staging, cfg.StagingMaxAge, cfg.StagingMaxAge)

	results := p.ProcessPost(ctx, post.Media)

	succeeded := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			log.Printf("item failed: %v", res.Err)
		case res.Archived != nil:
			succeeded++
			fmt.Printf("%s  %d bytes  %s\n", res.Archived.HostedURL, res.Archived.Size, res.Archived.MIMEType)
		}
	}
	log.Printf("archived %d/%d media item(s) for %s post %s", succeeded, len(results), post.Platform, post.PostID)

	written, err := mirror.Save(jsonstore.BuildRecord(post.Platform, post.PostID, results))
	if err != nil {
		log.Fatalf("write mirror record: %v", err)
	}
	log.Printf("mirror record written to %s", written)
}

func readPost(path string) (*postInput, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var post postInput
	if err := json.Unmarshal(data, &post); err != nil {
		return nil, err
	}
	// Descriptors may omit the envelope fields.
	for i := range post.Media {
		if post.Media[i].Platform == "" {
			post.Media[i].Platform = post.Platform
		}
		if post.Media[i].PostID == "" {
			post.Media[i].PostID = post.PostID
		}
	}
	return &post, nil
}
