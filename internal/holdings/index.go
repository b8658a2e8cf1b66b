// Package holdings maintains an in-memory index of the archived zipfiles,
// built by scanning the archive directory tree for sidecar description files.
// The index backs the STAC holdings API; it is rebuilt wholesale by Reload
// and safe for concurrent readers.
package holdings

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"github.com/auscophub/archive/internal/filter"
	"github.com/auscophub/archive/internal/meta"
)

// Record is one archived zipfile known to the index.
type Record struct {
	// ID is the zipfile basename without the .zip extension, e.g.
	// "S1A_IW_GRDH_1SDV_20210304T100000_...". Unique within the archive.
	ID string
	// RelPath is the zipfile path relative to the archive root, using
	// forward slashes.
	RelPath string
	Meta    *meta.ZipfileMeta
}

// Collection returns the STAC collection this record belongs to, derived
// from the satellite identifier: "S1A" maps to "sentinel-1", "S5P" to
// "sentinel-5p".
func (r *Record) Collection() string {
	return CollectionForSatellite(r.Meta.SatelliteID)
}

// CollectionForSatellite maps a satellite identifier to its collection ID.
// Returns "" for identifiers it does not recognise.
func CollectionForSatellite(satelliteID string) string {
	if len(satelliteID) < 2 || satelliteID[0] != 'S' {
		return ""
	}
	mission := strings.ToLower(satelliteID[1:2])
	if mission < "1" || mission > "9" {
		return ""
	}
	if len(satelliteID) >= 3 && satelliteID[2] == 'P' {
		return "sentinel-" + mission + "p"
	}
	return "sentinel-" + mission
}

// Index is a snapshot view over the archive's sidecar files.
type Index struct {
	root   string
	logger *slog.Logger

	mu      sync.RWMutex
	records []*Record
	byID    map[string]*Record
}

// NewIndex creates an index over the archive rooted at root. The index is
// empty until the first Reload.
func NewIndex(root string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		root:   root,
		logger: logger,
		byID:   make(map[string]*Record),
	}
}

// Reload walks the archive tree and rebuilds the index from every sidecar
// description file found. Sidecars that fail to parse are logged and
// skipped; they do not abort the rebuild.
func (ix *Index) Reload() error {
	var records []*Record

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".xml") {
			return nil
		}

		rec, recErr := ix.loadSidecar(path)
		if recErr != nil {
			ix.logger.Warn("skipping unreadable sidecar",
				slog.String("path", path),
				slog.String("error", recErr.Error()),
			)
			return nil
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan archive at %s: %w", ix.root, err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	byID := make(map[string]*Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	ix.mu.Lock()
	ix.records = records
	ix.byID = byID
	ix.mu.Unlock()

	ix.logger.Info("holdings index rebuilt", slog.Int("records", len(records)))
	return nil
}

func (ix *Index) loadSidecar(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := meta.ParseDescription(data)
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), ".xml")
	rel, err := filepath.Rel(ix.root, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	relZip := filepath.ToSlash(filepath.Join(rel, base+".zip"))

	return &Record{ID: base, RelPath: relZip, Meta: m}, nil
}

// Get returns the record with the given ID, or nil when absent.
func (ix *Index) Get(id string) *Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.byID[id]
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// Collections returns the sorted collection IDs present in the index.
func (ix *Index) Collections() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, rec := range ix.records {
		c := rec.Collection()
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Select returns records in the given collection that pass every predicate,
// in ID order. An empty collection ID matches all collections.
func (ix *Index) Select(collectionID string, preds ...filter.Predicate) []*Record {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []*Record
	for _, rec := range ix.records {
		if collectionID != "" && rec.Collection() != collectionID {
			continue
		}
		if !passes(rec.Meta, preds) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func passes(m *meta.ZipfileMeta, preds []filter.Predicate) bool {
	for _, p := range preds {
		if !p(m) {
			return false
		}
	}
	return true
}

// Extent summarises the spatial and temporal coverage of one collection.
type Extent struct {
	BBox  *orb.Bound
	Start time.Time
	End   time.Time
}

// CollectionExtent computes the union extent of a collection's records.
// Returns nil when the collection has no records.
func (ix *Index) CollectionExtent(collectionID string) *Extent {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var ext *Extent
	for _, rec := range ix.records {
		if rec.Collection() != collectionID {
			continue
		}
		m := rec.Meta
		if ext == nil {
			ext = &Extent{Start: m.StartTime, End: m.StopTime}
		} else {
			if m.StartTime.Before(ext.Start) {
				ext.Start = m.StartTime
			}
			if m.StopTime.After(ext.End) {
				ext.End = m.StopTime
			}
		}
		if m.Footprint != nil {
			b := m.Footprint.Bound()
			if ext.BBox == nil {
				ext.BBox = &b
			} else {
				u := ext.BBox.Union(b)
				ext.BBox = &u
			}
		}
	}
	return ext
}
