// Package history provides the durable interaction log: an append-only,
// capacity-bounded store backed by JSON files, with oldest-first archival,
// a processed-comment set, filtered queries and JSON/CSV export.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"replyflow/internal/domain/entity"
	"replyflow/internal/observability/metrics"
)

// Config holds the on-disk layout and capacity of the store.
type Config struct {
	// Dir is the storage root for the active files and exports
	Dir string

	// ArchiveDir receives one timestamped file per eviction batch
	ArchiveDir string

	// InteractionsFile is the active interaction list file name
	InteractionsFile string

	// ProcessedFile is the processed-comment-id set file name
	ProcessedFile string

	// MaxCapacity bounds the active interaction list. When reached, the
	// oldest 20% are archived before the next save is accepted.
	MaxCapacity int
}

// DefaultConfig returns the default storage layout under dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		ArchiveDir:       filepath.Join(dir, "archive"),
		InteractionsFile: "interactions.json",
		ProcessedFile:    "processed-comments.json",
		MaxCapacity:      1000,
	}
}

// FileStore is the file-backed history store. A single writer lock guards
// the active list and the processed set; archival and append happen
// atomically within one critical section.
type FileStore struct {
	cfg Config

	mu           sync.Mutex
	interactions []entity.Interaction
	processed    map[string]struct{}
}

// NewFileStore creates the storage directories and loads any previously
// persisted state.
func NewFileStore(cfg Config) (*FileStore, error) {
	if cfg.MaxCapacity <= 0 {
		return nil, &entity.ValidationError{Field: "maxCapacity", Message: "must be positive"}
	}

	for _, dir := range []string{cfg.Dir, cfg.ArchiveDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}

	s := &FileStore{
		cfg:       cfg,
		processed: make(map[string]struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	slog.Info("history store initialized",
		slog.String("dir", cfg.Dir),
		slog.Int("interactions", len(s.interactions)),
		slog.Int("processed", len(s.processed)),
		slog.Int("max_capacity", cfg.MaxCapacity))
	return s, nil
}

// Save appends an interaction to the active list and persists it. If the
// list is at capacity, the oldest 20% are archived first; an archival
// failure rejects the save.
func (s *FileStore) Save(interaction *entity.Interaction) error {
	if interaction == nil {
		return &entity.ValidationError{Field: "interaction", Message: "must not be nil"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.interactions) >= s.cfg.MaxCapacity {
		if err := s.archiveOldestLocked(); err != nil {
			return err
		}
	}

	s.interactions = append(s.interactions, *interaction)
	if err := s.persistInteractionsLocked(); err != nil {
		return err
	}

	slog.Debug("saved interaction",
		slog.String("interaction_id", interaction.ID),
		slog.String("comment_id", interaction.CommentID),
		slog.String("status", string(interaction.Status)))
	return nil
}

// IsProcessed reports whether a comment id has reached a terminal outcome.
func (s *FileStore) IsProcessed(commentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[commentID]
	return ok
}

// MarkProcessed records a comment id as terminally handled. The processed
// set is independent of interaction status: a FAILED interaction without a
// processed mark stays eligible for a later poll.
func (s *FileStore) MarkProcessed(commentID string) error {
	if strings.TrimSpace(commentID) == "" {
		return &entity.ValidationError{Field: "commentId", Message: "must not be blank"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[commentID] = struct{}{}
	return s.persistProcessedLocked()
}

// Query returns active interactions matching all provided filters; a nil
// filter matches everything. Results keep insertion order.
func (s *FileStore) Query(postID string, start, end *time.Time) []entity.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Interaction, 0, len(s.interactions))
	for _, it := range s.interactions {
		if postID != "" && it.PostID != postID {
			continue
		}
		if start != nil && it.Timestamp.Before(*start) {
			continue
		}
		if end != nil && it.Timestamp.After(*end) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Size returns the number of interactions in the active set.
func (s *FileStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.interactions)
}

// archiveBatchSize is the fixed 20% eviction batch, at least one entry.
func (s *FileStore) archiveBatchSize() int {
	n := (s.cfg.MaxCapacity + 4) / 5
	if n < 1 {
		n = 1
	}
	return n
}

// archiveOldestLocked moves the oldest batch of interactions to a
// timestamped archive file. Caller must hold s.mu.
func (s *FileStore) archiveOldestLocked() error {
	count := s.archiveBatchSize()
	if count > len(s.interactions) {
		count = len(s.interactions)
	}

	byAge := make([]entity.Interaction, len(s.interactions))
	copy(byAge, s.interactions)
	sort.SliceStable(byAge, func(i, j int) bool {
		return byAge[i].Timestamp.Before(byAge[j].Timestamp)
	})
	toArchive := byAge[:count]

	name := fmt.Sprintf("archive-%s.json", fileTimestamp(time.Now()))
	path := filepath.Join(s.cfg.ArchiveDir, name)

	data, err := json.MarshalIndent(toArchive, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal archive batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write archive file %s: %w", path, err)
	}

	archivedIDs := make(map[string]struct{}, count)
	for _, it := range toArchive {
		archivedIDs[it.ID] = struct{}{}
	}
	remaining := s.interactions[:0]
	for _, it := range s.interactions {
		if _, ok := archivedIDs[it.ID]; !ok {
			remaining = append(remaining, it)
		}
	}
	s.interactions = remaining

	metrics.RecordArchivedInteractions(count)
	slog.Info("archived oldest interactions",
		slog.Int("count", count),
		slog.String("archive", path))
	return nil
}

func (s *FileStore) load() error {
	if err := s.loadJSON(filepath.Join(s.cfg.Dir, s.cfg.InteractionsFile), &s.interactions); err != nil {
		return err
	}

	var ids []string
	if err := s.loadJSON(filepath.Join(s.cfg.Dir, s.cfg.ProcessedFile), &ids); err != nil {
		return err
	}
	for _, id := range ids {
		s.processed[id] = struct{}{}
	}
	return nil
}

func (s *FileStore) loadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path) // #nosec G304 -- paths come from operator config
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) persistInteractionsLocked() error {
	data, err := json.MarshalIndent(s.interactions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal interactions: %w", err)
	}
	path := filepath.Join(s.cfg.Dir, s.cfg.InteractionsFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("persist interactions file: %w", err)
	}
	metrics.UpdateActiveInteractions(len(s.interactions))
	return nil
}

func (s *FileStore) persistProcessedLocked() error {
	ids := make([]string, 0, len(s.processed))
	for id := range s.processed {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("marshal processed set: %w", err)
	}
	path := filepath.Join(s.cfg.Dir, s.cfg.ProcessedFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("persist processed-comments file: %w", err)
	}
	return nil
}

// fileTimestamp renders t for use in a file name (':' is not portable).
func fileTimestamp(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-")
}
