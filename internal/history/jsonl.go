package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"vaultflow/internal/model"
)

// JSONLStore keeps the history log in a JSONL file. Every append
// rewrites the pruned log atomically via a temp file rename.
type JSONLStore struct {
	path    string
	horizon time.Duration
	maxLen  int

	mu  sync.Mutex
	now func() time.Time
}

// NewJSONLStore builds a file-backed store. Zero horizon or maxLen fall
// back to the defaults.
func NewJSONLStore(path string, horizon time.Duration, maxLen int) *JSONLStore {
	if horizon <= 0 {
		horizon = DefaultHorizonDays * 24 * time.Hour
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxEntries
	}
	return &JSONLStore{
		path:    path,
		horizon: horizon,
		maxLen:  maxLen,
		now:     time.Now,
	}
}

// Append adds the record, deduplicating by transaction hash. A record
// with a hash already present replaces the stored entry, so a status
// update (submitted then confirmed) keeps one row per transaction.
func (s *JSONLStore) Append(record model.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range records {
		if records[i].TxHash == record.TxHash {
			records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, record)
	}

	records = s.prune(records)
	return s.write(records)
}

// List returns records newest first, up to limit (0 means all).
func (s *JSONLStore) List(limit int) ([]model.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	records = s.prune(records)

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *JSONLStore) load() ([]model.HistoryRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var records []model.HistoryRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var record model.HistoryRecord
		if err := json.Unmarshal(line, &record); err != nil {
			// A corrupt line is dropped rather than poisoning the log.
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan history: %w", err)
	}
	return records, nil
}

// prune drops entries older than the horizon, then trims to the cap
// keeping the newest.
func (s *JSONLStore) prune(records []model.HistoryRecord) []model.HistoryRecord {
	cutoff := s.now().Add(-s.horizon)
	kept := records[:0]
	for _, record := range records {
		if record.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, record)
	}

	if len(kept) > s.maxLen {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].Timestamp.After(kept[j].Timestamp)
		})
		kept = kept[:s.maxLen]
	}
	return kept
}

func (s *JSONLStore) write(records []model.HistoryRecord) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	var buf bytes.Buffer
	writer := bufio.NewWriter(&buf)
	for _, record := range records {
		line, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal history record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write history record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write history tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename history: %w", err)
	}
	return nil
}
