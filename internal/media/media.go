package media

import (
	"os"
	"time"
)

// Platform identifies the social network a post originated from.
type Platform string

const (
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// Kind classifies a media item.
type Kind string

const (
	KindImage         Kind = "image"
	KindVideo         Kind = "video"
	KindAnimatedImage Kind = "animated_image"
	KindAudio         Kind = "audio"
)

// ArchiveDir returns the archive directory segment for the kind.
// Animated images are materialized as video and archive alongside it.
func (k Kind) ArchiveDir() string {
	switch k {
	case KindImage:
		return "images"
	case KindVideo, KindAnimatedImage:
		return "videos"
	case KindAudio:
		return "audio"
	default:
		return "documents"
	}
}

// Variant is one quality/encoding rendition of a media item.
type Variant struct {
	URL       string `json:"url"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Bitrate   int    `json:"bitrate,omitempty"`
	Container string `json:"container,omitempty"`
	MIMEType  string `json:"mime_type,omitempty"`
}

// MediaDescriptor is the normalized per-item output of a post fetcher.
// It is immutable once produced.
//
// A non-empty AudioVariants list means the platform serves video and audio
// as separate streams and the materialized file must be remuxed.
type MediaDescriptor struct {
	Platform      Platform  `json:"platform"`
	PostID        string    `json:"post_id"`
	Kind          Kind      `json:"kind"`
	Variants      []Variant `json:"variants"`
	AudioVariants []Variant `json:"audio_variants,omitempty"`
}

// ResolvedMediaTask is one materialization unit produced by the resolver.
// Tasks are never mutated after creation; a retry gets a fresh task with a
// new ID so every attempt leaves its own audit trail.
type ResolvedMediaTask struct {
	ID            string   `json:"id"`
	PostID        string   `json:"post_id"`
	Platform      Platform `json:"platform"`
	Kind          Kind     `json:"kind"`
	TargetKind    Kind     `json:"target_kind"`
	VideoURL      string   `json:"video_url"`
	AudioURL      string   `json:"audio_url,omitempty"`
	MergeRequired bool     `json:"merge_required"`
	Container     string   `json:"container,omitempty"`
	MIMEType      string   `json:"mime_type,omitempty"`
}

// StagingArtifact is a fully downloaded byte stream sitting in staging.
// It is owned by whoever holds it and must be discarded or handed off;
// staging is not durable state.
type StagingArtifact struct {
	SourceURL   string
	Path        string
	ContentHash string
	Size        int64
	MIMEType    string
}

// Discard removes the staging file. Missing files are not an error.
func (a *StagingArtifact) Discard() error {
	if a == nil || a.Path == "" {
		return nil
	}
	err := os.Remove(a.Path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ArchivedMedia is the write-once record of a file in the archive tree.
// Identity is the content hash: byte-identical downloads from any number
// of posts resolve to a single ArchivedMedia.
type ArchivedMedia struct {
	ContentHash string    `json:"content_hash"`
	Platform    Platform  `json:"platform"`
	Kind        Kind      `json:"kind"`
	RelPath     string    `json:"rel_path"`
	HostedURL   string    `json:"hosted_url"`
	Size        int64     `json:"file_size"`
	MIMEType    string    `json:"mime_type"`
	ArchivedAt  time.Time `json:"archived_at"`
}
