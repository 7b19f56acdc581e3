package media

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnrecognizedPlatform indicates a URL that matches no supported platform.
	ErrUnrecognizedPlatform = errors.New("unrecognized platform")

	// ErrNoUsableVariant indicates a descriptor with no downloadable variant.
	ErrNoUsableVariant = errors.New("no usable variant")

	// ErrRemuxerUnavailable indicates the remux tool cannot be invoked.
	ErrRemuxerUnavailable = errors.New("remuxer unavailable")

	// ErrTruncatedBody indicates a download shorter than the declared length.
	ErrTruncatedBody = errors.New("truncated response body")

	// ErrEmptyBody indicates a zero-byte download.
	ErrEmptyBody = errors.New("empty response body")
)

// TransientFetchError captures a retryable transfer failure.
type TransientFetchError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch failure: status=%d url=%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("transient fetch failure: url=%s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// PermanentFetchError captures a transfer failure that must not be retried,
// including a transient failure whose retry budget is exhausted.
type PermanentFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *PermanentFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("permanent fetch failure: status=%d url=%s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("permanent fetch failure: url=%s: %v", e.URL, e.Err)
}

func (e *PermanentFetchError) Unwrap() error { return e.Err }

// MergeFailure captures a failed remux invocation with tool diagnostics.
type MergeFailure struct {
	Detail string
	Err    error
}

func (e *MergeFailure) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("merge failed: %v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("merge failed: %v", e.Err)
}

func (e *MergeFailure) Unwrap() error { return e.Err }

// StoragePlacementError captures a failure moving an artifact into the archive.
type StoragePlacementError struct {
	Path string
	Err  error
}

func (e *StoragePlacementError) Error() string {
	return fmt.Sprintf("storage placement failed: path=%s: %v", e.Path, e.Err)
}

func (e *StoragePlacementError) Unwrap() error { return e.Err }
