// Package pipeline coordinates the per-post media flow: resolve
// descriptors into tasks, download the selected streams into staging,
// remux separate video/audio pairs, and move completed files into the
// content-addressed archive. One item's failure never aborts its
// siblings; the caller always receives one result per item.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/archivebot/mediarchive/internal/download"
	"github.com/archivebot/mediarchive/internal/ledger"
	"github.com/archivebot/mediarchive/internal/media"
	"github.com/archivebot/mediarchive/internal/remux"
	"github.com/archivebot/mediarchive/internal/resolver"
)

// Logger is an optional pipeline logger used for non-fatal warnings.
type Logger interface {
	// Warnf logs a formatted warning message.
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...any) {}

// Placer is the archive interface the pipeline hands finished
// artifacts to.
type Placer interface {
	Place(artifact *media.StagingArtifact, platform media.Platform, kind media.Kind) (*media.ArchivedMedia, error)
}

// Config wires a Pipeline. Resolver, Fetcher, Placer, and Staging are
// required; Remuxer may be nil when no platform serves split streams.
type Config struct {
	Resolver    *resolver.Resolver
	Fetcher     download.Fetcher
	Remuxer     remux.Remuxer
	Placer      Placer
	Ledger      *ledger.Ledger
	Staging     *download.Staging
	Concurrency int64
	Logger      Logger
}

// Pipeline orchestrates media acquisition for posts.
type Pipeline struct {
	resolver *resolver.Resolver
	fetcher  download.Fetcher
	remuxer  remux.Remuxer
	placer   Placer
	ledger   *ledger.Ledger
	staging  *download.Staging
	sem      *semaphore.Weighted
	logger   Logger
}

// New builds a Pipeline from cfg.
func New(cfg Config) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Ledger == nil {
		cfg.Ledger = ledger.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return &Pipeline{
		resolver: cfg.Resolver,
		fetcher:  cfg.Fetcher,
		remuxer:  cfg.Remuxer,
		placer:   cfg.Placer,
		ledger:   cfg.Ledger,
		staging:  cfg.Staging,
		sem:      semaphore.NewWeighted(cfg.Concurrency),
		logger:   cfg.Logger,
	}
}

// Ledger exposes the status ledger for callers persisting task state.
func (p *Pipeline) Ledger() *ledger.Ledger { return p.ledger }

// Result is the per-item outcome of processing a post. Match results
// to tasks by Task.ID; ordering is not guaranteed.
type Result struct {
	Descriptor media.MediaDescriptor
	Task       *media.ResolvedMediaTask
	Status     ledger.Snapshot
	Archived   *media.ArchivedMedia
	Err        error
}

// ProcessPost runs every descriptor of one post through the pipeline
// and returns one result per item. Partial success is a first-class
// outcome: sibling items keep going when one fails permanently. On
// cancellation, in-flight staging is removed while items that already
// archived stay archived.
func (p *Pipeline) ProcessPost(ctx context.Context, descriptors []media.MediaDescriptor) []Result {
	results := make([]Result, 0, len(descriptors))

	type work struct {
		descriptor media.MediaDescriptor
		task       *media.ResolvedMediaTask
	}
	var pending []work
	for _, d := range descriptors {
		task, err := p.resolver.Resolve(d)
		if err != nil {
			p.logger.Warnf("resolve skipped item for post %s: %v", d.PostID, err)
			results = append(results, Result{Descriptor: d, Err: err})
			continue
		}
		pending = append(pending, work{descriptor: d, task: task})
	}

	out := make(chan Result, len(pending))
	var wg sync.WaitGroup
	for _, w := range pending {
		wg.Add(1)
		go func(w work) {
			defer wg.Done()
			res := Result{Descriptor: w.descriptor, Task: w.task}
			res.Archived, res.Err = p.runTask(ctx, w.task)
			if snap, ok := p.ledger.Snapshot(w.task.ID); ok {
				res.Status = snap
			}
			out <- res
		}(w)
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	for res := range out {
		results = append(results, res)
	}
	return results
}

// runTask drives one task to a terminal state and returns its archived
// record or the terminal error.
func (p *Pipeline) runTask(ctx context.Context, task *media.ResolvedMediaTask) (*media.ArchivedMedia, error) {
	if err := p.ledger.Create(task.ID); err != nil {
		return nil, err
	}
	if task.MergeRequired && (p.remuxer == nil || !p.remuxer.Available()) {
		err := &media.MergeFailure{Detail: "remux tool not found", Err: media.ErrRemuxerUnavailable}
		return nil, p.fail(task, err)
	}

	if err := p.ledger.Advance(task.ID, ledger.StateDownloading); err != nil {
		return nil, err
	}

	var artifact *media.StagingArtifact
	if task.MergeRequired {
		video, audio, err := p.fetchPair(ctx, task)
		if err != nil {
			return nil, p.fail(task, err)
		}
		if err := p.ledger.Advance(task.ID, ledger.StateMerging); err != nil {
			video.Discard()
			audio.Discard()
			return nil, err
		}
		artifact, err = p.mergeStreams(ctx, task, video, audio)
		if err != nil {
			return nil, p.fail(task, err)
		}
	} else {
		var err error
		artifact, err = p.fetch(ctx, task.VideoURL)
		if err != nil {
			return nil, p.fail(task, err)
		}
	}

	archived, err := p.place(ctx, artifact, task)
	if err != nil {
		artifact.Discard()
		return nil, p.fail(task, err)
	}
	if err := p.ledger.Advance(task.ID, ledger.StateSuccess); err != nil {
		return nil, err
	}
	return archived, nil
}

// fetch runs one bounded download. The semaphore is held per transfer,
// not per task, so the two streams of a merge task cannot deadlock the
// pool even at concurrency 1.
func (p *Pipeline) fetch(ctx context.Context, url string) (*media.StagingArtifact, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.fetcher.Fetch(ctx, url)
}

// fetchPair downloads the video and audio streams of a merge task
// concurrently. On any failure both staging files are removed.
func (p *Pipeline) fetchPair(ctx context.Context, task *media.ResolvedMediaTask) (video, audio *media.StagingArtifact, err error) {
	var videoErr, audioErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		video, videoErr = p.fetch(ctx, task.VideoURL)
	}()
	go func() {
		defer wg.Done()
		audio, audioErr = p.fetch(ctx, task.AudioURL)
	}()
	wg.Wait()

	if videoErr != nil || audioErr != nil {
		video.Discard()
		audio.Discard()
		if videoErr != nil {
			return nil, nil, videoErr
		}
		return nil, nil, audioErr
	}
	return video, audio, nil
}

// mergeStreams remuxes a video/audio pair into one container file in
// staging. Both inputs are removed on every outcome so staging never
// accumulates orphans. A merge that has started runs to completion or
// failure even if the post is cancelled; partial remux output is
// unusable.
func (p *Pipeline) mergeStreams(ctx context.Context, task *media.ResolvedMediaTask, video, audio *media.StagingArtifact) (*media.StagingArtifact, error) {
	defer video.Discard()
	defer audio.Discard()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	container := task.Container
	if container == "" {
		container = "mp4"
	}
	out, err := p.staging.Create("merge-*." + container)
	if err != nil {
		return nil, fmt.Errorf("create merge output: %w", err)
	}
	outPath := out.Name()
	out.Close()

	if err := p.remuxer.Merge(context.WithoutCancel(ctx), video.Path, audio.Path, outPath); err != nil {
		os.Remove(outPath)
		return nil, err
	}

	hash, err := download.HashFile(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, fmt.Errorf("hash merged file: %w", err)
	}
	info, err := os.Stat(outPath)
	if err != nil {
		os.Remove(outPath)
		return nil, err
	}

	mimeType := task.MIMEType
	if mimeType == "" {
		mimeType = "video/mp4"
	}
	return &media.StagingArtifact{
		SourceURL:   task.VideoURL,
		Path:        outPath,
		ContentHash: hash,
		Size:        info.Size(),
		MIMEType:    mimeType,
	}, nil
}

func (p *Pipeline) place(ctx context.Context, artifact *media.StagingArtifact, task *media.ResolvedMediaTask) (*media.ArchivedMedia, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.placer.Place(artifact, task.Platform, task.TargetKind)
}

func (p *Pipeline) fail(task *media.ResolvedMediaTask, cause error) error {
	if err := p.ledger.Fail(task.ID, cause.Error()); err != nil {
		p.logger.Warnf("record failure for task %s: %v", task.ID, err)
	}
	return cause
}
