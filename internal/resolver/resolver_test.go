package resolver

import (
	"errors"
	"testing"

	"github.com/archivebot/mediarchive/internal/media"
)

func TestResolveImagePicksLargestResolution(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTwitter,
		PostID:   "1",
		Kind:     media.KindImage,
		Variants: []media.Variant{
			{URL: "https://img/small.jpg", Width: 680, Height: 383},
			{URL: "https://img/large.jpg", Width: 1920, Height: 1080},
			{URL: "https://img/medium.jpg", Width: 1200, Height: 675},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.VideoURL != "https://img/large.jpg" {
		t.Fatalf("selected %q, want the 1920x1080 variant", task.VideoURL)
	}
	if task.MergeRequired {
		t.Fatal("image task flagged merge required")
	}
	if task.TargetKind != media.KindImage {
		t.Fatalf("target kind = %q, want image", task.TargetKind)
	}
}

func TestResolveImageFallsBackToOriginalHint(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTwitter,
		PostID:   "1",
		Kind:     media.KindImage,
		Variants: []media.Variant{
			{URL: "https://img/photo.jpg?name=large"},
			{URL: "https://img/photo.jpg?name=orig"},
			{URL: "https://img/photo.jpg?name=small"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.VideoURL != "https://img/photo.jpg?name=orig" {
		t.Fatalf("selected %q, want the orig-hint variant", task.VideoURL)
	}
}

func TestResolveVideoPicksHighestBitrate(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTikTok,
		PostID:   "2",
		Kind:     media.KindVideo,
		Variants: []media.Variant{
			{URL: "https://v/low.mp4", Bitrate: 832_000, Container: "mp4"},
			{URL: "https://v/high.mp4", Bitrate: 2_176_000, Container: "mp4"},
			{URL: "https://v/mid.mp4", Bitrate: 950_000, Container: "mp4"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.VideoURL != "https://v/high.mp4" {
		t.Fatalf("selected %q, want the 2176kbps variant", task.VideoURL)
	}
}

func TestResolveVideoBitrateTiePrefersConfiguredContainer(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformInstagram,
		PostID:   "3",
		Kind:     media.KindVideo,
		Variants: []media.Variant{
			{URL: "https://v/a.webm", Bitrate: 1_000_000, Container: "webm"},
			{URL: "https://v/a.mp4", Bitrate: 1_000_000, Container: "mp4"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.VideoURL != "https://v/a.mp4" {
		t.Fatalf("selected %q, want mp4 on bitrate tie", task.VideoURL)
	}

	task, err = New(Policy{PreferredContainer: "webm"}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.VideoURL != "https://v/a.webm" {
		t.Fatalf("selected %q, want webm when policy prefers it", task.VideoURL)
	}
}

func TestResolveSeparateStreamsFlagsMerge(t *testing.T) {
	// 1080p at 2 Mbps vs 720p at 1 Mbps, plus one audio-only stream.
	d := media.MediaDescriptor{
		Platform: media.PlatformFacebook,
		PostID:   "4",
		Kind:     media.KindVideo,
		Variants: []media.Variant{
			{URL: "https://v/720.mp4", Width: 1280, Height: 720, Bitrate: 1_000_000, Container: "mp4"},
			{URL: "https://v/1080.mp4", Width: 1920, Height: 1080, Bitrate: 2_000_000, Container: "mp4"},
		},
		AudioVariants: []media.Variant{
			{URL: "https://v/audio.m4a", Bitrate: 128_000, Container: "m4a"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !task.MergeRequired {
		t.Fatal("separate streams did not flag merge")
	}
	if task.VideoURL != "https://v/1080.mp4" {
		t.Fatalf("video stream = %q, want the 1080p 2Mbps variant", task.VideoURL)
	}
	if task.AudioURL != "https://v/audio.m4a" {
		t.Fatalf("audio stream = %q, want the audio variant", task.AudioURL)
	}
}

func TestResolveCombinedStreamNeedsNoMerge(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTwitter,
		PostID:   "5",
		Kind:     media.KindVideo,
		Variants: []media.Variant{
			{URL: "https://v/combined.mp4", Bitrate: 1_500_000, Container: "mp4"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.MergeRequired {
		t.Fatal("combined-stream variant flagged merge required")
	}
	if task.AudioURL != "" {
		t.Fatalf("audio URL = %q, want empty", task.AudioURL)
	}
}

func TestResolveAnimatedImageBecomesVideo(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTwitter,
		PostID:   "6",
		Kind:     media.KindAnimatedImage,
		Variants: []media.Variant{
			{URL: "https://v/tweet.mp4", Bitrate: 500_000, Container: "mp4"},
		},
	}
	task, err := New(Policy{}).Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.TargetKind != media.KindVideo {
		t.Fatalf("target kind = %q, want video", task.TargetKind)
	}
	if task.Container != "mp4" {
		t.Fatalf("container = %q, want mp4", task.Container)
	}
}

func TestResolveNoUsableVariant(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformInstagram,
		PostID:   "7",
		Kind:     media.KindImage,
		Variants: []media.Variant{{URL: "   "}},
	}
	_, err := New(Policy{}).Resolve(d)
	if !errors.Is(err, media.ErrNoUsableVariant) {
		t.Fatalf("error = %v, want ErrNoUsableVariant", err)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTikTok,
		PostID:   "8",
		Kind:     media.KindVideo,
		Variants: []media.Variant{
			{URL: "https://v/a.mp4", Bitrate: 1_000_000, Container: "mp4"},
			{URL: "https://v/b.mp4", Bitrate: 1_000_000, Container: "mp4"},
			{URL: "https://v/c.webm", Bitrate: 1_000_000, Container: "webm"},
		},
	}
	r := New(Policy{})
	first, err := r.Resolve(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.Resolve(d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again.VideoURL != first.VideoURL {
			t.Fatalf("run %d selected %q, first run selected %q", i, again.VideoURL, first.VideoURL)
		}
	}
}

func TestResolveTasksGetDistinctIdentity(t *testing.T) {
	d := media.MediaDescriptor{
		Platform: media.PlatformTwitter,
		PostID:   "9",
		Kind:     media.KindImage,
		Variants: []media.Variant{{URL: "https://img/a.jpg", Width: 10, Height: 10}},
	}
	r := New(Policy{})
	first, _ := r.Resolve(d)
	second, _ := r.Resolve(d)
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("task IDs %q and %q should be distinct and non-empty", first.ID, second.ID)
	}
}
