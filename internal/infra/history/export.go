package history

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"replyflow/internal/domain/entity"
)

var csvHeader = []string{
	"ID", "Post ID", "Comment ID", "Commenter Name", "Comment Text",
	"Generated Response", "Posted Response", "Timestamp", "Status", "Metadata",
}

// Export serializes the active interaction set to a file under the storage
// root and returns the file path. Supported formats: "json", "csv".
func (s *FileStore) Export(format string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(format))
	if normalized != "json" && normalized != "csv" {
		return "", &entity.ValidationError{Field: "format", Message: "must be 'json' or 'csv'"}
	}

	s.mu.Lock()
	snapshot := make([]entity.Interaction, len(s.interactions))
	copy(snapshot, s.interactions)
	s.mu.Unlock()

	name := fmt.Sprintf("history-export-%s.%s", fileTimestamp(time.Now()), normalized)
	path := filepath.Join(s.cfg.Dir, name)

	var err error
	if normalized == "json" {
		err = exportJSON(path, snapshot)
	} else {
		err = exportCSV(path, snapshot)
	}
	if err != nil {
		return "", err
	}

	slog.Info("exported interaction history",
		slog.String("path", path),
		slog.Int("count", len(snapshot)),
		slog.String("format", normalized))
	return path, nil
}

func exportJSON(path string, interactions []entity.Interaction) error {
	data, err := json.MarshalIndent(interactions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write export file %s: %w", path, err)
	}
	return nil
}

func exportCSV(path string, interactions []entity.Interaction) error {
	f, err := os.Create(path) // #nosec G304 -- path is built from operator config
	if err != nil {
		return fmt.Errorf("create export file %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, it := range interactions {
		record := []string{
			it.ID,
			it.PostID,
			it.CommentID,
			it.CommenterName,
			it.CommentText,
			it.GeneratedResponse,
			it.PostedResponse,
			it.Timestamp.UTC().Format(time.RFC3339),
			string(it.Status),
			flattenMetadata(it.Metadata),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv export: %w", err)
	}
	return nil
}

// flattenMetadata renders a metadata map as "key=value" pairs joined by
// "; ", with keys sorted for stable output.
func flattenMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+metadata[k])
	}
	return strings.Join(pairs, "; ")
}
