package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileEventStore persists each workflow's execution history as a JSON Lines
// file under a base directory, one directory per workflow.
type FileEventStore struct {
	basePath string
	mutex    sync.RWMutex
}

var _ EventStore = &FileEventStore{}

// NewFileEventStore creates a file-based event store rooted at basePath.
func NewFileEventStore(basePath string) *FileEventStore {
	return &FileEventStore{basePath: basePath}
}

// AppendEvents appends events to the owning workflow's event log file. All
// events in one call must belong to the same workflow.
func (s *FileEventStore) AppendEvents(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	workflowID := events[0].WorkflowID

	s.mutex.Lock()
	defer s.mutex.Unlock()

	dir := filepath.Join(s.basePath, workflowID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create workflow directory: %w", err)
	}

	path := filepath.Join(dir, "events.jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open events file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	for _, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("invalid event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

// GetEventHistory reads a workflow's full event history. A workflow with no
// recorded events yields an empty history, not an error.
func (s *FileEventStore) GetEventHistory(ctx context.Context, workflowID string) ([]*Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	path := filepath.Join(s.basePath, workflowID, "events.jsonl")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Event{}, nil
		}
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer file.Close()

	var events []*Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event Event
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, &event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return events, nil
}

// ListWorkflowIDs returns the ids of all workflows with recorded history.
func (s *FileEventStore) ListWorkflowIDs(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteWorkflowHistory removes a workflow's event log directory.
func (s *FileEventStore) DeleteWorkflowHistory(ctx context.Context, workflowID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	dir := filepath.Join(s.basePath, workflowID)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete workflow history: %w", err)
	}
	return nil
}
