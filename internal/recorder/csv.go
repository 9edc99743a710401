package recorder

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"RackPower/internal/driver"
)

// CSVRecorder appends one line per transition to a CSV file, creating
// the file with a header row on first use.
type CSVRecorder struct {
	path string
	mu   sync.Mutex
}

func NewCSVRecorder(path string) *CSVRecorder {
	return &CSVRecorder{path: path}
}

func (r *CSVRecorder) Record(at time.Time, systemID string, oldState, newState driver.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", r.path, err)
	}

	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		file, err := os.Create(r.path)
		if err != nil {
			return fmt.Errorf("failed to create state change log: %w", err)
		}
		writer := csv.NewWriter(file)
		if err := writer.Write([]string{"time", "system_id", "old_state", "new_state"}); err != nil {
			file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
		writer.Flush()
		file.Close()
	}

	file, err := os.OpenFile(r.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open state change log: %w", err)
	}
	defer file.Close()

	oldStateStr := string(oldState)
	if oldStateStr == "" {
		oldStateStr = "INIT"
	}

	writer := csv.NewWriter(file)
	err = writer.Write([]string{
		at.Format("2006-01-02 15:04:05"),
		systemID,
		oldStateStr,
		string(newState),
	})
	writer.Flush()
	if err == nil {
		err = writer.Error()
	}
	return err
}

func (r *CSVRecorder) Close() error { return nil }
