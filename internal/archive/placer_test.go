package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/archivebot/mediarchive/internal/media"
)

const testBaseURL = "http://localhost:8000/media"

func newTestPlacer(t *testing.T) *Placer {
	t.Helper()
	placer, err := NewPlacer(t.TempDir(), testBaseURL)
	if err != nil {
		t.Fatalf("NewPlacer: %v", err)
	}
	return placer
}

func stageArtifact(t *testing.T, content, mimeType string) *media.StagingArtifact {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "stage-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write staging: %v", err)
	}
	f.Close()
	sum := sha256.Sum256([]byte(content))
	return &media.StagingArtifact{
		SourceURL:   "https://cdn.example/" + content,
		Path:        f.Name(),
		ContentHash: hex.EncodeToString(sum[:]),
		Size:        int64(len(content)),
		MIMEType:    mimeType,
	}
}

func TestPlaceMovesFileIntoContentAddressedTree(t *testing.T) {
	placer := newTestPlacer(t)
	artifact := stageArtifact(t, "jpeg-bytes", "image/jpeg")
	stagingPath := artifact.Path

	rec, err := placer.Place(artifact, media.PlatformTwitter, media.KindImage)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	wantRel := "images/twitter/" + artifact.ContentHash + ".jpg"
	if rec.RelPath != wantRel {
		t.Fatalf("RelPath = %q, want %q", rec.RelPath, wantRel)
	}
	if rec.HostedURL != testBaseURL+"/"+wantRel {
		t.Fatalf("HostedURL = %q, want base+path", rec.HostedURL)
	}
	if _, err := os.Stat(filepath.Join(placer.Root(), filepath.FromSlash(wantRel))); err != nil {
		t.Fatalf("archived file missing: %v", err)
	}
	if _, err := os.Stat(stagingPath); !os.IsNotExist(err) {
		t.Fatal("staging file should have been moved, not copied")
	}
}

func TestPlaceDeduplicatesIdenticalBytes(t *testing.T) {
	placer := newTestPlacer(t)

	first, err := placer.Place(stageArtifact(t, "same bytes", "image/png"), media.PlatformTwitter, media.KindImage)
	if err != nil {
		t.Fatalf("first Place: %v", err)
	}
	// Same bytes arriving from a different post on a different platform.
	dup := stageArtifact(t, "same bytes", "image/png")
	second, err := placer.Place(dup, media.PlatformInstagram, media.KindImage)
	if err != nil {
		t.Fatalf("second Place: %v", err)
	}
	if second.HostedURL != first.HostedURL {
		t.Fatalf("dedup returned different hosted URLs: %q vs %q", second.HostedURL, first.HostedURL)
	}
	if _, err := os.Stat(dup.Path); !os.IsNotExist(err) {
		t.Fatal("losing artifact's staging copy should be discarded")
	}
	if got := countFiles(t, filepath.Join(placer.Root(), "images")); got != 1 {
		t.Fatalf("archive holds %d image files, want exactly 1", got)
	}
}

func TestPlaceConcurrentSameHashKeepsOneFile(t *testing.T) {
	placer := newTestPlacer(t)

	const workers = 8
	var wg sync.WaitGroup
	recs := make([]*media.ArchivedMedia, workers)
	errs := make([]error, workers)
	artifacts := make([]*media.StagingArtifact, workers)
	for i := range artifacts {
		artifacts[i] = stageArtifact(t, "raced bytes", "video/mp4")
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], errs[i] = placer.Place(artifacts[i], media.PlatformFacebook, media.KindVideo)
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d failed: %v", i, errs[i])
		}
		if recs[i].HostedURL != recs[0].HostedURL {
			t.Fatalf("worker %d got different record", i)
		}
	}
	if got := countFiles(t, filepath.Join(placer.Root(), "videos")); got != 1 {
		t.Fatalf("archive holds %d video files, want exactly 1", got)
	}
}

func TestIndexSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	placer, err := NewPlacer(root, testBaseURL)
	if err != nil {
		t.Fatalf("NewPlacer: %v", err)
	}
	first, err := placer.Place(stageArtifact(t, "durable bytes", "image/gif"), media.PlatformTikTok, media.KindImage)
	if err != nil {
		t.Fatalf("Place: %v", err)
	}

	reopened, err := NewPlacer(root, testBaseURL)
	if err != nil {
		t.Fatalf("reopen placer: %v", err)
	}
	dup := stageArtifact(t, "durable bytes", "image/gif")
	rec, err := reopened.Place(dup, media.PlatformTwitter, media.KindImage)
	if err != nil {
		t.Fatalf("Place after reopen: %v", err)
	}
	if rec.HostedURL != first.HostedURL {
		t.Fatal("reopened placer lost the dedup index")
	}
}

func TestHostedURLIsPureDerivation(t *testing.T) {
	rel := "videos/facebook/abc123.mp4"
	got := HostedURL("http://host/media/", rel)
	want := "http://host/media/videos/facebook/abc123.mp4"
	if got != want {
		t.Fatalf("HostedURL = %q, want %q", got, want)
	}
	if HostedURL("http://host/media", rel) != want {
		t.Fatal("trailing slash on base URL changed the derivation")
	}
}

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		mime, url, want string
	}{
		{"image/jpeg", "", ".jpg"},
		{"video/mp4", "", ".mp4"},
		{"audio/mpeg", "", ".mp3"},
		{"", "https://cdn/x/clip.webm?sig=abc", ".webm"},
		{"", "https://cdn/x/noext", ".bin"},
		{"application/octet-stream", "https://cdn/x/file.png", ".png"},
	}
	for _, tc := range cases {
		if got := ExtensionFor(tc.mime, tc.url); got != tc.want {
			t.Fatalf("ExtensionFor(%q, %q) = %q, want %q", tc.mime, tc.url, got, tc.want)
		}
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	count := 0
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return count
}
