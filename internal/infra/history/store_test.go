package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replyflow/internal/domain/entity"
)

func newTestStore(t *testing.T, capacity int) *FileStore {
	t.Helper()
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxCapacity = capacity
	s, err := NewFileStore(cfg)
	require.NoError(t, err)
	return s
}

func makeInteraction(id string, ts time.Time) *entity.Interaction {
	return &entity.Interaction{
		ID:            id,
		PostID:        "post-1",
		CommentID:     "comment-" + id,
		CommenterName: "Alex",
		CommentText:   "what does pricing look like?",
		Timestamp:     ts,
		Status:        entity.StatusPosted,
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)

	s, err := NewFileStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Save(makeInteraction("a", time.Now())))
	require.NoError(t, s.MarkProcessed("comment-a"))

	// A fresh store over the same directory sees the persisted state.
	reloaded, err := NewFileStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Size())
	assert.True(t, reloaded.IsProcessed("comment-a"))
	assert.False(t, reloaded.IsProcessed("comment-b"))
}

func TestSaveRejectsNil(t *testing.T) {
	s := newTestStore(t, 10)
	err := s.Save(nil)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestMarkProcessedRejectsBlank(t *testing.T) {
	s := newTestStore(t, 10)
	assert.ErrorIs(t, s.MarkProcessed("  "), entity.ErrInvalidInput)
}

func TestArchivalEvictsOldestFifth(t *testing.T) {
	const capacity = 10
	s := newTestStore(t, capacity)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < capacity; i++ {
		require.NoError(t, s.Save(makeInteraction(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))))
	}
	require.Equal(t, capacity, s.Size())

	// The save that would exceed capacity archives the oldest 20% first.
	require.NoError(t, s.Save(makeInteraction("overflow", base.Add(time.Hour))))
	assert.Equal(t, capacity-2+1, s.Size())

	// The two oldest entries were evicted; newer ones survive.
	remaining := s.Query("", nil, nil)
	ids := make(map[string]bool, len(remaining))
	for _, it := range remaining {
		ids[it.ID] = true
	}
	assert.False(t, ids["a"])
	assert.False(t, ids["b"])
	assert.True(t, ids["c"])
	assert.True(t, ids["overflow"])

	// Exactly one archive file exists and holds the evicted batch.
	entries, err := os.ReadDir(s.cfg.ArchiveDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(s.cfg.ArchiveDir, entries[0].Name()))
	require.NoError(t, err)
	var archived []entity.Interaction
	require.NoError(t, json.Unmarshal(data, &archived))
	require.Len(t, archived, 2)
	assert.Equal(t, "a", archived[0].ID)
	assert.Equal(t, "b", archived[1].ID)
}

func TestArchiveBatchNeverZero(t *testing.T) {
	s := newTestStore(t, 3)
	assert.Equal(t, 1, s.archiveBatchSize())
}

func TestQueryFilters(t *testing.T) {
	s := newTestStore(t, 100)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	early := makeInteraction("early", base)
	late := makeInteraction("late", base.Add(48*time.Hour))
	other := makeInteraction("other", base.Add(time.Hour))
	other.PostID = "post-2"

	for _, it := range []*entity.Interaction{early, late, other} {
		require.NoError(t, s.Save(it))
	}

	assert.Len(t, s.Query("", nil, nil), 3)

	byPost := s.Query("post-2", nil, nil)
	require.Len(t, byPost, 1)
	assert.Equal(t, "other", byPost[0].ID)

	cutoff := base.Add(24 * time.Hour)
	after := s.Query("", &cutoff, nil)
	require.Len(t, after, 1)
	assert.Equal(t, "late", after[0].ID)

	before := s.Query("", nil, &cutoff)
	assert.Len(t, before, 2)
}

func TestProcessedSetIndependentOfStatus(t *testing.T) {
	s := newTestStore(t, 10)

	failed := makeInteraction("f", time.Now())
	failed.Status = entity.StatusFailed
	require.NoError(t, s.Save(failed))

	// Saving a FAILED interaction does not mark the comment processed;
	// it stays eligible for a later poll.
	assert.False(t, s.IsProcessed(failed.CommentID))
}

func TestLoadToleratesMissingFiles(t *testing.T) {
	s := newTestStore(t, 10)
	assert.Equal(t, 0, s.Size())
	assert.Empty(t, s.Query("", nil, nil))
}

func TestNewFileStoreRejectsBadCapacity(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.MaxCapacity = 0
	_, err := NewFileStore(cfg)
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}
