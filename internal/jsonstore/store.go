// Package jsonstore mirrors processed posts to per-post JSON files,
// one {platform}_{post_id}.json per post.
package jsonstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/archivebot/mediarchive/internal/ledger"
	"github.com/archivebot/mediarchive/internal/media"
	"github.com/archivebot/mediarchive/internal/pipeline"
)

// MediaRecord is the per-item slice of a post record.
type MediaRecord struct {
	TaskID         string       `json:"task_id,omitempty"`
	Kind           media.Kind   `json:"kind"`
	SourceURL      string       `json:"source_url,omitempty"`
	HostedURL      string       `json:"hosted_url,omitempty"`
	LocalPath      string       `json:"local_path,omitempty"`
	FileSize       int64        `json:"file_size,omitempty"`
	MIMEType       string       `json:"mime_type,omitempty"`
	DownloadStatus ledger.State `json:"download_status"`
	Error          string       `json:"error,omitempty"`
}

// PostRecord is the JSON mirror of one processed post.
type PostRecord struct {
	Platform media.Platform `json:"platform"`
	PostID   string         `json:"post_id"`
	SavedAt  time.Time      `json:"saved_at"`
	Media    []MediaRecord  `json:"media"`
}

// Filename returns the mirror filename for the record.
func (r PostRecord) Filename() string {
	return fmt.Sprintf("%s_%s.json", r.Platform, r.PostID)
}

// BuildRecord assembles a PostRecord from pipeline results.
func BuildRecord(platform media.Platform, postID string, results []pipeline.Result) PostRecord {
	rec := PostRecord{
		Platform: platform,
		PostID:   postID,
		SavedAt:  time.Now().UTC(),
	}
	for _, res := range results {
		mr := MediaRecord{
			Kind:           res.Descriptor.Kind,
			DownloadStatus: ledger.StateFailed,
		}
		if res.Task != nil {
			mr.TaskID = res.Task.ID
			mr.SourceURL = res.Task.VideoURL
		}
		if res.Status.State != "" {
			mr.DownloadStatus = res.Status.State
		}
		if res.Err != nil {
			mr.Error = res.Err.Error()
		}
		if res.Archived != nil {
			mr.HostedURL = res.Archived.HostedURL
			mr.LocalPath = res.Archived.RelPath
			mr.FileSize = res.Archived.Size
			mr.MIMEType = res.Archived.MIMEType
		}
		rec.Media = append(rec.Media, mr)
	}
	return rec
}

// Store writes post records into a directory.
type Store struct {
	dir string
}

// New creates the mirror directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Save writes the record atomically (tmp file + rename) and returns
// the written path.
func (s *Store) Save(rec PostRecord) (string, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	dst := filepath.Join(s.dir, rec.Filename())
	tmp, err := os.CreateTemp(s.dir, ".post-*")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return dst, nil
}

// Load reads a previously saved record.
func (s *Store) Load(platform media.Platform, postID string) (PostRecord, error) {
	var rec PostRecord
	data, err := os.ReadFile(filepath.Join(s.dir, PostRecord{Platform: platform, PostID: postID}.Filename()))
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}
