package sagaflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidDeadLetterID is returned for ids that are not UUIDs.
var ErrInvalidDeadLetterID = errors.New("invalid dead letter id")

// FileSink persists each dead letter as a JSON file in a directory.
type FileSink struct {
	basePath string
	mu       sync.Mutex // Protects file operations
}

// NewFileSink creates a file-based sink writing to the given directory.
func NewFileSink(basePath string) (*FileSink, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead letter directory: %w", err)
	}

	return &FileSink{basePath: basePath}, nil
}

// Report writes the letter to <dir>/<letter id>.json.
func (f *FileSink) Report(_ context.Context, letter DeadLetter) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.filename(letter.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(letter, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dead letter file: %w", err)
	}

	return nil
}

// List reads every letter in the directory, oldest first.
func (f *FileSink) List(_ context.Context) ([]DeadLetter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter directory: %w", err)
	}

	letters := make([]DeadLetter, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.basePath, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read dead letter file: %w", err)
		}
		var letter DeadLetter
		if err := json.Unmarshal(data, &letter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dead letter %s: %w", entry.Name(), err)
		}
		letters = append(letters, letter)
	}

	sort.SliceStable(letters, func(i, j int) bool {
		return letters[i].FailedAt.Before(letters[j].FailedAt)
	})
	return letters, nil
}

// Delete removes a letter once it has been reconciled. Deleting an unknown
// letter returns an error wrapping os.ErrNotExist.
func (f *FileSink) Delete(_ context.Context, id string) error {
	path, err := f.filename(id)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("dead letter %s: %w", id, os.ErrNotExist)
		}
		return fmt.Errorf("failed to delete dead letter file: %w", err)
	}
	return nil
}

// filename maps a letter id to its file. Only UUIDs are accepted, so an id
// can never name a file outside the sink directory.
func (f *FileSink) filename(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", ErrInvalidDeadLetterID, id, err)
	}
	return filepath.Join(f.basePath, parsed.String()+".json"), nil
}
