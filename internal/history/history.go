// Package history keeps a bounded rolling archive of camera snapshots on
// disk, indexed by a JSON file. Filenames are cyclic 15-minute time-of-day
// buckets, so a full day's captures reuse at most 96 files per camera and
// disk usage stays bounded.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// IndexFile is the name of the JSON index inside the data directory.
const IndexFile = "history.json"

// SubDir is the snapshot directory inside the data directory.
const SubDir = "history"

// SlotMinutes is the bucket width for cyclic filenames.
const SlotMinutes = 15

// Entry records one captured snapshot. Append-only once written; only
// retention pruning removes it.
type Entry struct {
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	CamID     string `json:"camId"`
	Filename  string `json:"filename"` // relative to the data directory
}

// Index is the on-disk catalogue of entries. Insertion order is
// chronological in practice but not guaranteed sorted; readers sort by
// timestamp.
type Index struct {
	LastUpdated int64   `json:"lastUpdated"`
	Entries     []Entry `json:"entries"`
}

// Fetcher retrieves raw bytes from a URL. Satisfied by feeds.Client.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Store owns the data directory and index file. It is not safe for
// concurrent Save/Prune calls from multiple goroutines: the index is
// read-modify-write without locking, so callers must serialize runs.
type Store struct {
	dataDir string
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time // overridable for tests
}

// NewStore creates a history store rooted at dataDir.
func NewStore(dataDir string, fetcher Fetcher, logger *slog.Logger) *Store {
	return &Store{
		dataDir: dataDir,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// Dir returns the snapshot directory path.
func (s *Store) Dir() string {
	return filepath.Join(s.dataDir, SubDir)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dataDir, IndexFile)
}

// Init ensures the snapshot directory and index file exist. Idempotent;
// safe to call on every run.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.Dir(), 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	if _, err := os.Stat(s.indexPath()); os.IsNotExist(err) {
		idx := Index{LastUpdated: s.now().UnixMilli()}
		if err := s.writeIndex(&idx); err != nil {
			return fmt.Errorf("creating history index: %w", err)
		}
	}
	return nil
}

// Slot rounds t to the nearest 15-minute bucket and returns the HHmm label.
// 23:53 and later round forward into the 0000 slot of the next cycle.
func Slot(t time.Time) (time.Time, string) {
	rounded := t.Round(time.Duration(SlotMinutes) * time.Minute)
	return rounded, rounded.Format("1504")
}

// Save fetches the camera image at url and records it under the current
// time slot. It returns the index-relative path of the written file. Each
// call is independently fallible; a failure for one camera must not stop
// the caller from processing the others.
func (s *Store) Save(ctx context.Context, camID, url string) (string, error) {
	data, err := s.fetcher.FetchBytes(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetching snapshot for %s: %w", camID, err)
	}

	slotTime, slot := Slot(s.now())
	filename := fmt.Sprintf("%s_%s.jpg", camID, slot)

	if err := os.WriteFile(filepath.Join(s.Dir(), filename), data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot for %s: %w", camID, err)
	}

	relPath := SubDir + "/" + filename
	if err := s.appendEntry(Entry{
		Timestamp: slotTime.UnixMilli(),
		CamID:     camID,
		Filename:  relPath,
	}); err != nil {
		return "", err
	}
	return relPath, nil
}

// Prune removes index entries older than the retention window. Snapshot
// files are deliberately left on disk: the cyclic filenames are reused by
// the equivalent slot next day, so pruning the index does not reclaim
// space.
func (s *Store) Prune(retention time.Duration) (removed int, err error) {
	idx, err := s.readIndex()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-retention).UnixMilli()
	kept := idx.Entries[:0]
	for _, e := range idx.Entries {
		if e.Timestamp > cutoff {
			kept = append(kept, e)
		}
	}

	removed = len(idx.Entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	idx.Entries = kept
	idx.LastUpdated = s.now().UnixMilli()
	if err := s.writeIndex(idx); err != nil {
		return 0, err
	}

	s.logger.Info("pruned history index", "removed", removed, "kept", len(kept))
	return removed, nil
}

// Entries returns the entries for one camera within the window, sorted by
// timestamp ascending. A zero window returns everything. camID "" matches
// all cameras.
func (s *Store) Entries(camID string, window time.Duration) ([]Entry, error) {
	idx, err := s.readIndex()
	if err != nil {
		return nil, err
	}

	var cutoff int64
	if window > 0 {
		cutoff = s.now().Add(-window).UnixMilli()
	}

	var result []Entry
	for _, e := range idx.Entries {
		if camID != "" && e.CamID != camID {
			continue
		}
		if e.Timestamp <= cutoff {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp < result[j].Timestamp })
	return result, nil
}

// Count returns the total number of index entries.
func (s *Store) Count() (int, error) {
	idx, err := s.readIndex()
	if err != nil {
		return 0, err
	}
	return len(idx.Entries), nil
}

func (s *Store) appendEntry(e Entry) error {
	idx, err := s.readIndex()
	if err != nil {
		return err
	}

	idx.Entries = append(idx.Entries, e)
	idx.LastUpdated = s.now().UnixMilli()
	return s.writeIndex(idx)
}

// readIndex loads the index, reinitializing an empty one if the file is
// corrupt or missing. Data loss on corruption is accepted and surfaced at
// warning level rather than hidden.
func (s *Store) readIndex() (*Index, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &Index{LastUpdated: s.now().UnixMilli()}, nil
		}
		return nil, fmt.Errorf("reading history index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		s.logger.Warn("history index corrupt, reinitializing", "error", err)
		return &Index{LastUpdated: s.now().UnixMilli()}, nil
	}
	return &idx, nil
}

// writeIndex writes the index atomically (temp file + rename) so readers
// never observe torn JSON.
func (s *Store) writeIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history index: %w", err)
	}

	tmp := s.indexPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing history index: %w", err)
	}
	if err := os.Rename(tmp, s.indexPath()); err != nil {
		return fmt.Errorf("replacing history index: %w", err)
	}
	return nil
}
