// Package archive is the content-addressed store archived media lands
// in. Files live at {root}/{kind_dir}/{platform}/{hash}{ext}; identity
// is the content hash, so byte-identical downloads from any number of
// posts occupy exactly one file.
package archive

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/archivebot/mediarchive/internal/media"
)

const ledgerName = "index.json"

// Placer moves staging artifacts into the archive tree and maintains
// the dedup index.
type Placer struct {
	root    string
	baseURL string
	index   *Index

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPlacer opens (or creates) the archive rooted at root. An
// unwritable root is fatal: it is the only pipeline-level failure.
func NewPlacer(root, baseURL string) (*Placer, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("archive root unwritable: %w", err)
	}
	index, err := LoadIndex(filepath.Join(root, ledgerName))
	if err != nil {
		return nil, fmt.Errorf("load archive index: %w", err)
	}
	return &Placer{
		root:    root,
		baseURL: baseURL,
		index:   index,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the archive root directory.
func (p *Placer) Root() string { return p.root }

// Place moves an artifact into the archive, or discards it when its
// hash is already archived. Two concurrent placements of the same hash
// are serialized; the loser discards its staging copy without error and
// both receive the same record.
func (p *Placer) Place(artifact *media.StagingArtifact, platform media.Platform, kind media.Kind) (*media.ArchivedMedia, error) {
	unlock := p.lockHash(artifact.ContentHash)
	defer unlock()

	if rec, ok := p.index.Get(artifact.ContentHash); ok {
		if err := artifact.Discard(); err != nil {
			return nil, &media.StoragePlacementError{Path: artifact.Path, Err: err}
		}
		return rec, nil
	}

	ext := ExtensionFor(artifact.MIMEType, artifact.SourceURL)
	rel := path.Join(kind.ArchiveDir(), string(platform), artifact.ContentHash+ext)
	dst := filepath.Join(p.root, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, &media.StoragePlacementError{Path: dst, Err: err}
	}
	if err := moveFile(artifact.Path, dst); err != nil {
		return nil, &media.StoragePlacementError{Path: dst, Err: err}
	}

	rec := &media.ArchivedMedia{
		ContentHash: artifact.ContentHash,
		Platform:    platform,
		Kind:        kind,
		RelPath:     rel,
		HostedURL:   HostedURL(p.baseURL, rel),
		Size:        artifact.Size,
		MIMEType:    artifact.MIMEType,
		ArchivedAt:  nowUTC(),
	}
	if err := p.index.Put(rec); err != nil {
		return nil, &media.StoragePlacementError{Path: p.index.path, Err: err}
	}
	return rec, nil
}

func (p *Placer) lockHash(hash string) func() {
	p.mu.Lock()
	lock, ok := p.locks[hash]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[hash] = lock
	}
	p.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

// HostedURL derives the public URL for an archive-relative path. It is
// a pure function of (base URL, path): the URL is reconstructible from
// the record alone, nothing else needs storing.
func HostedURL(baseURL, relPath string) string {
	return strings.TrimRight(baseURL, "/") + "/" + path.Clean(relPath)
}

// ExtensionFor derives the archival file extension from the MIME type,
// falling back to the source URL path.
func ExtensionFor(mimeType, sourceURL string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "audio/mp4", "audio/m4a":
		return ".m4a"
	case "audio/mpeg":
		return ".mp3"
	}
	trimmed := sourceURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if ext := strings.ToLower(path.Ext(trimmed)); ext != "" && len(ext) <= 5 {
		return ext
	}
	return ".bin"
}

// moveFile renames src to dst, falling back to copy+remove across
// filesystems (staging and archive may sit on different mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
