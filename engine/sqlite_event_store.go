package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteEventStore persists workflow execution history in a SQLite database.
type SQLiteEventStore struct {
	db      *sql.DB
	dbPath  string
	mutex   sync.RWMutex
	options SQLiteStoreOptions
}

var _ EventStore = &SQLiteEventStore{}

// SQLiteStoreOptions configures the SQLite event store.
type SQLiteStoreOptions struct {
	QueryTimeout      time.Duration // Timeout for database queries
	PragmaJournalMode string        // WAL mode for better concurrent performance
	PragmaSyncMode    string        // Synchronization mode
	MaxConnections    int           // Maximum number of connections in pool
}

// DefaultSQLiteStoreOptions returns sensible defaults.
func DefaultSQLiteStoreOptions() SQLiteStoreOptions {
	return SQLiteStoreOptions{
		QueryTimeout:      30 * time.Second,
		PragmaJournalMode: "WAL",
		PragmaSyncMode:    "NORMAL",
		MaxConnections:    10,
	}
}

// NewSQLiteEventStore creates a SQLite-based event store at dbPath.
func NewSQLiteEventStore(dbPath string, options SQLiteStoreOptions) (*SQLiteEventStore, error) {
	if options.QueryTimeout == 0 {
		options = DefaultSQLiteStoreOptions()
	}
	store := &SQLiteEventStore{
		dbPath:  dbPath,
		options: options,
	}
	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	return store, nil
}

func (s *SQLiteEventStore) initialize() error {
	dsn := fmt.Sprintf("%s?_journal_mode=%s&_sync=%s&_timeout=5000",
		s.dbPath, s.options.PragmaJournalMode, s.options.PragmaSyncMode)

	var err error
	s.db, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	s.db.SetMaxOpenConns(s.options.MaxConnections)
	s.db.SetMaxIdleConns(s.options.MaxConnections / 2)
	s.db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), s.options.QueryTimeout)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	if err := s.createSchema(ctx); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLiteEventStore) createSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workflow_events (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		step_id TEXT,
		step_name TEXT,
		data JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(workflow_id, sequence)
	);

	CREATE INDEX IF NOT EXISTS idx_workflow_events_workflow_id ON workflow_events(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_workflow_events_sequence ON workflow_events(workflow_id, sequence);
	CREATE INDEX IF NOT EXISTS idx_workflow_events_type ON workflow_events(event_type);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}
	return nil
}

// AppendEvents adds events to the store in one batch transaction.
func (s *SQLiteEventStore) AppendEvents(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO workflow_events
		(id, workflow_id, sequence, timestamp, event_type, step_id, step_name, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		if err := event.Validate(); err != nil {
			return fmt.Errorf("invalid event at index %d: %w", i, err)
		}
		var dataJSON []byte
		if event.Data != nil {
			dataJSON, err = json.Marshal(event.Data)
			if err != nil {
				return fmt.Errorf("failed to marshal event data at index %d: %w", i, err)
			}
		}
		_, err := stmt.ExecContext(ctx,
			event.ID,
			event.WorkflowID,
			event.Sequence,
			event.Timestamp,
			event.EventType,
			nullableString(event.StepID),
			nullableString(event.StepName),
			nullableBytes(dataJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event at index %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetEventHistory retrieves all events for a workflow in sequence order.
func (s *SQLiteEventStore) GetEventHistory(ctx context.Context, workflowID string) ([]*Event, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	query := `
		SELECT id, workflow_id, sequence, timestamp, event_type, step_id, step_name, data
		FROM workflow_events
		WHERE workflow_id = ?
		ORDER BY sequence ASC
	`
	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// ListWorkflowIDs returns the ids of all workflows with recorded history.
func (s *SQLiteEventStore) ListWorkflowIDs(ctx context.Context) ([]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT workflow_id FROM workflow_events ORDER BY workflow_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan workflow id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// DeleteWorkflowHistory removes all events recorded for a workflow.
func (s *SQLiteEventStore) DeleteWorkflowHistory(ctx context.Context, workflowID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM workflow_events WHERE workflow_id = ?`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow events: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteEventStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanEvent(rows *sql.Rows) (*Event, error) {
	event := &Event{}
	var stepID, stepName, dataJSON sql.NullString

	err := rows.Scan(
		&event.ID,
		&event.WorkflowID,
		&event.Sequence,
		&event.Timestamp,
		&event.EventType,
		&stepID,
		&stepName,
		&dataJSON,
	)
	if err != nil {
		return nil, err
	}
	if stepID.Valid {
		event.StepID = stepID.String
	}
	if stepName.Valid {
		event.StepName = stepName.String
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &event.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
	}
	return event, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(b), Valid: true}
}
