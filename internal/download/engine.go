// Package download materializes variant URLs into staging artifacts.
// Transfers stream to disk with the content hash computed during the
// write, so large videos never sit in memory and no second read pass
// is needed. Transient failures retry with bounded backoff; 4xx is
// permanent.
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"

	"golang.org/x/time/rate"

	"github.com/archivebot/mediarchive/internal/media"
)

// Fetcher is the interface the pipeline downloads through.
type Fetcher interface {
	// Fetch transfers url into staging and returns the artifact.
	Fetch(ctx context.Context, url string) (*media.StagingArtifact, error)
}

// Engine is the HTTP Fetcher implementation.
type Engine struct {
	client  *http.Client
	staging *Staging
	cfg     effectiveTransportConfig
	limiter *rate.Limiter
}

// NewEngine builds an Engine. A nil client uses http.DefaultClient; a
// nil limiter disables request throttling.
func NewEngine(client *http.Client, staging *Staging, cfg TransportConfig, limiter *rate.Limiter) *Engine {
	if client == nil {
		client = http.DefaultClient
	}
	return &Engine{
		client:  client,
		staging: staging,
		cfg:     normalizeTransportConfig(cfg),
		limiter: limiter,
	}
}

// Fetch downloads url into a staging file, retrying transient failures.
// When the retry budget is exhausted the last transient error escalates
// to a PermanentFetchError.
func (e *Engine) Fetch(ctx context.Context, url string) (*media.StagingArtifact, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		artifact, err := e.fetchOnce(ctx, url)
		if err == nil {
			return artifact, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}
		if attempt == e.cfg.MaxRetries {
			break
		}
		backoff := e.cfg.backoffFor(attempt)
		var transient *media.TransientFetchError
		if errors.As(err, &transient) && transient.RetryAfter > backoff {
			backoff = transient.RetryAfter
		}
		if err := waitBackoff(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, &media.PermanentFetchError{URL: url, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (e *Engine) fetchOnce(ctx context.Context, url string) (*media.StagingArtifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &media.PermanentFetchError{URL: url, Err: err}
	}
	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &media.TransientFetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if e.cfg.retryableStatus(resp.StatusCode) {
			return nil, &media.TransientFetchError{
				URL:        url,
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			}
		}
		return nil, &media.PermanentFetchError{URL: url, StatusCode: resp.StatusCode}
	}

	file, err := e.staging.Create("fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(file, hasher), resp.Body)
	closeErr := file.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr == nil {
		copyErr = verifyLength(written, resp.ContentLength)
	}
	if copyErr != nil {
		os.Remove(file.Name())
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(copyErr, media.ErrEmptyBody) {
			return nil, &media.PermanentFetchError{URL: url, Err: copyErr}
		}
		// Truncation and mid-stream resets are worth another attempt.
		return nil, &media.TransientFetchError{URL: url, Err: copyErr}
	}

	return &media.StagingArtifact{
		SourceURL:   url,
		Path:        file.Name(),
		ContentHash: hex.EncodeToString(hasher.Sum(nil)),
		Size:        written,
		MIMEType:    contentType(resp),
	}, nil
}

func verifyLength(written, declared int64) error {
	if written == 0 {
		return media.ErrEmptyBody
	}
	if declared >= 0 && written != declared {
		return fmt.Errorf("%w: got %d of %d bytes", media.ErrTruncatedBody, written, declared)
	}
	return nil
}

func contentType(resp *http.Response) string {
	raw := resp.Header.Get("Content-Type")
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return raw
	}
	return parsed
}

// HashFile computes the archival content hash of an existing file, used
// for merge outputs that were produced outside the engine.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()
	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
