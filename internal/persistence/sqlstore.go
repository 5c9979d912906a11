package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/jobflow-ai/activation-core/internal/config"
)

// SQLStore is a database/sql-backed Store, grounded on the teacher's
// own github.com/go-sql-driver/mysql dependency rather than introducing
// a new database driver for this concern.
type SQLStore struct {
	db *sql.DB
}

// OpenSQLStore opens a MySQL-compatible connection using the given DSN
// and ensures the schema exists.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connecting to store db: %w", err)
	}

	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bot_runs (
			run_id VARCHAR(64) PRIMARY KEY,
			bot VARCHAR(128) NOT NULL,
			trigger_type VARCHAR(128),
			started_at DATETIME NOT NULL,
			completed_at DATETIME NULL,
			status VARCHAR(16),
			output MEDIUMTEXT,
			in_tokens INT DEFAULT 0,
			out_tokens INT DEFAULT 0,
			cost DOUBLE DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bot_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(64),
			level VARCHAR(16),
			event_type VARCHAR(128),
			message TEXT,
			data JSON,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS bots (
			name VARCHAR(128) PRIMARY KEY,
			display_name VARCHAR(256),
			config JSON,
			status VARCHAR(16),
			last_run_at DATETIME NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating store schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) CreateBotRun(ctx context.Context, runID, bot, trigger string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_runs (run_id, bot, trigger_type, started_at, status) VALUES (?, ?, ?, ?, 'running')`,
		runID, bot, trigger, startedAt)
	return err
}

func (s *SQLStore) CompleteBotRun(ctx context.Context, runID string, status RunStatus, output string, inTokens, outTokens int, cost float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bot_runs SET completed_at = ?, status = ?, output = ?, in_tokens = ?, out_tokens = ?, cost = ? WHERE run_id = ?`,
		time.Now().UTC(), status, output, inTokens, outTokens, cost, runID)
	return err
}

func (s *SQLStore) CreateBotLog(ctx context.Context, runID, level, eventType, message string, data map[string]any) error {
	var raw []byte
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshaling log data: %w", err)
		}
		raw = b
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bot_logs (run_id, level, event_type, message, data) VALUES (?, ?, ?, ?, ?)`,
		runID, level, eventType, message, raw)
	return err
}

func (s *SQLStore) UpsertBotRecord(ctx context.Context, name, displayName string, cfg config.BotConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling bot config: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bots (name, display_name, config, status) VALUES (?, ?, ?, 'waiting')
		 ON DUPLICATE KEY UPDATE display_name = VALUES(display_name), config = VALUES(config)`,
		name, displayName, raw)
	return err
}

func (s *SQLStore) UpdateBotState(ctx context.Context, name string, status string, lastRunAt *time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bots SET status = ?, last_run_at = COALESCE(?, last_run_at) WHERE name = ?`,
		status, lastRunAt, name)
	return err
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
