package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ChosenResult is one transport report of a result the user actually picked.
type ChosenResult struct {
	ResultID string    `json:"result_id"`
	UserID   string    `json:"user_id,omitempty"`
	Query    string    `json:"query,omitempty"`
	ChosenAt time.Time `json:"chosen_at"`
}

// ChosenLog appends chosen-result reports to an ndjson file in the state
// directory.
type ChosenLog struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func OpenChosenLog(stateDir string) (*ChosenLog, error) {
	path := filepath.Join(stateDir, "chosen_query.ndjson")
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open chosen-query log: %w", err)
	}
	return &ChosenLog{file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes one report as a single JSON line.
func (l *ChosenLog) Append(r ChosenResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.ChosenAt.IsZero() {
		r.ChosenAt = time.Now().UTC()
	}
	return l.enc.Encode(r)
}

func (l *ChosenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
