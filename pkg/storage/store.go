package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"topology-impact-engine/pkg/simulation"
)

// DecisionStore is the SQLite implementation of the decision sink: an
// append-only audit log of (scenario, result) pairs per simulation.
type DecisionStore struct {
	db *sql.DB
}

func NewDecisionStore(dbPath string) (*DecisionStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &DecisionStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *DecisionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		type TEXT NOT NULL,
		scenario TEXT NOT NULL,
		result TEXT NOT NULL,
		correlation_id TEXT,
		created_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_timestamp ON decisions(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_decisions_type ON decisions(type);
	CREATE INDEX IF NOT EXISTS idx_decisions_correlation_id ON decisions(correlation_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *DecisionStore) Close() error {
	return s.db.Close()
}

// LogDecision satisfies simulation.DecisionSink.
func (s *DecisionStore) LogDecision(ctx context.Context, rec simulation.DecisionRecord) error {
	_, err := s.Append(ctx, rec)
	return err
}

type DecisionRow struct {
	ID            int64  `json:"id"`
	Timestamp     string `json:"timestamp"`
	Type          string `json:"type"`
	Scenario      any    `json:"scenario"`
	Result        any    `json:"result"`
	CorrelationID string `json:"correlationId"`
	CreatedAt     string `json:"createdAt"`
}

// Append inserts a decision and returns the stored row.
func (s *DecisionStore) Append(ctx context.Context, rec simulation.DecisionRecord) (*DecisionRow, error) {
	scenarioJSON, err := json.Marshal(rec.Scenario)
	if err != nil {
		return nil, fmt.Errorf("marshal scenario: %w", err)
	}
	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (timestamp, type, scenario, result, correlation_id) VALUES (?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Type, string(scenarioJSON), string(resultJSON), rec.CorrelationID)
	if err != nil {
		return nil, fmt.Errorf("insert decision: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &DecisionRow{
		ID:            id,
		Timestamp:     rec.Timestamp,
		Type:          rec.Type,
		Scenario:      rec.Scenario,
		Result:        rec.Result,
		CorrelationID: rec.CorrelationID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}

type HistoryOptions struct {
	Limit  int
	Offset int
	Type   string
}

func (s *DecisionStore) History(ctx context.Context, opts HistoryOptions) ([]DecisionRow, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := "SELECT id, timestamp, type, scenario, result, correlation_id, created_at FROM decisions"
	args := []any{}
	if opts.Type != "" {
		query += " WHERE type = ?"
		args = append(args, opts.Type)
	}
	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRow
	for rows.Next() {
		var r DecisionRow
		var scenarioStr, resultStr string
		var corrID sql.NullString

		if err := rows.Scan(&r.ID, &r.Timestamp, &r.Type, &scenarioStr, &resultStr, &corrID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if corrID.Valid {
			r.CorrelationID = corrID.String
		}
		if err := json.Unmarshal([]byte(scenarioStr), &r.Scenario); err != nil {
			return nil, fmt.Errorf("unmarshal scenario: %w", err)
		}
		if err := json.Unmarshal([]byte(resultStr), &r.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *DecisionStore) Count(ctx context.Context, decisionType string) (int, error) {
	query := "SELECT COUNT(*) FROM decisions"
	args := []any{}
	if decisionType != "" {
		query += " WHERE type = ?"
		args = append(args, decisionType)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count decisions: %w", err)
	}
	return count, nil
}
