package archive

import (
	"io/fs"
	"path/filepath"
	"time"
)

// KindStats aggregates file counts and bytes for one kind directory.
type KindStats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Stats summarizes the archive tree by kind directory.
type Stats struct {
	TotalFiles int                  `json:"total_files"`
	TotalBytes int64                `json:"total_bytes"`
	ByKind     map[string]KindStats `json:"by_kind"`
}

// Stats walks the archive tree and reports per-kind totals. The index
// ledger itself is not counted.
func (p *Placer) Stats() (Stats, error) {
	stats := Stats{ByKind: make(map[string]KindStats)}
	for _, kindDir := range []string{"images", "videos", "audio", "documents"} {
		dir := filepath.Join(p.root, kindDir)
		var ks KindStats
		err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			ks.Files++
			ks.Bytes += info.Size()
			return nil
		})
		if err != nil {
			continue
		}
		if ks.Files > 0 {
			stats.ByKind[kindDir] = ks
			stats.TotalFiles += ks.Files
			stats.TotalBytes += ks.Bytes
		}
	}
	return stats, nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
