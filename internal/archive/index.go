package archive

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/archivebot/mediarchive/internal/media"
)

// Index is the hash -> ArchivedMedia dedup map, mirrored to a JSON
// ledger file so dedup survives restarts.
type Index struct {
	mu      sync.RWMutex
	path    string
	records map[string]*media.ArchivedMedia
}

// LoadIndex reads the ledger at path, or starts empty if it does not
// exist yet.
func LoadIndex(path string) (*Index, error) {
	idx := &Index{
		path:    path,
		records: make(map[string]*media.ArchivedMedia),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return idx, nil
		}
		return nil, err
	}
	var records []*media.ArchivedMedia
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, rec := range records {
		idx.records[rec.ContentHash] = rec
	}
	return idx, nil
}

// Get returns the record for a content hash, if archived.
func (i *Index) Get(hash string) (*media.ArchivedMedia, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	rec, ok := i.records[hash]
	return rec, ok
}

// Put stores a record and persists the ledger.
func (i *Index) Put(rec *media.ArchivedMedia) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records[rec.ContentHash] = rec
	return i.persistLocked()
}

// Len returns the number of archived records.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

func (i *Index) persistLocked() error {
	records := make([]*media.ArchivedMedia, 0, len(i.records))
	for _, rec := range i.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(a, b int) bool {
		return records[a].ContentHash < records[b].ContentHash
	})
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(i.path), ".index-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), i.path)
}
