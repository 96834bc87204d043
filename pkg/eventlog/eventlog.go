// Package eventlog is the durable audit trail for Ferry: every mailbox
// transition, supervisor action and judgment lands in SQLite. The judgments
// table carries a UNIQUE(request_id) constraint, so the judge-once rule is a
// database invariant rather than a convention.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ferry/pkg/protocol"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrAlreadyJudged is returned when a judgment is inserted for a request id
// that already has one. Re-judging is forbidden; retries are new units.
var ErrAlreadyJudged = errors.New("request already judged")

// Event types recorded by the courier and supervisor.
const (
	TypeSubmit     = "submit"
	TypeDuplicate  = "duplicate"
	TypeTransition = "transition"
	TypeRequeue    = "requeue"
	TypeDiscard    = "discard"
	TypeQuarantine = "quarantine"
	TypeJudgment   = "judgment"
	TypeSupervisor = "supervisor"
)

// Event is one row of the lifecycle log.
type Event struct {
	ID        int64
	Type      string
	Source    string
	RequestID string
	Stage     string
	Payload   string
	CreatedAt time.Time
}

// QueryOpts specifies filter criteria for querying events.
type QueryOpts struct {
	RequestID string     // filter to one unit
	EventType string     // filter to one event type
	After     *time.Time // created at or after (inclusive)
	Before    *time.Time // created at or before (inclusive)
	Limit     int        // 0 = no limit
}

// Log is an open event log.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the event log at path and enforces production-safe
// defaults: WAL journal mode and a 5-second busy timeout.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, protocol.SchemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close releases the database connection. Safe to call multiple times.
func (l *Log) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Append records a lifecycle event.
func (l *Log) Append(ctx context.Context, typ, source, requestID, stage, payload string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO events (type, source, request_id, stage, payload) VALUES (?, ?, ?, ?, ?)",
		typ, source, requestID, stage, payload)
	if err != nil {
		return fmt.Errorf("append event %s/%s: %w", typ, requestID, err)
	}
	return nil
}

// InsertJudgment writes a judgment row. Returns ErrAlreadyJudged if the unit
// already has one.
func (l *Log) InsertJudgment(ctx context.Context, j protocol.Judgment) error {
	reasoning, err := json.Marshal(j.Reasoning)
	if err != nil {
		return fmt.Errorf("marshal reasoning: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		"INSERT INTO judgments (request_id, verdict, confidence, reasoning, judged_at) VALUES (?, ?, ?, ?, ?)",
		j.RequestID, string(j.Verdict), j.Confidence, string(reasoning), j.JudgedAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyJudged
		}
		return fmt.Errorf("insert judgment %s: %w", j.RequestID, err)
	}
	return nil
}

// GetJudgment retrieves the judgment for a request id, or (nil, nil) if the
// unit has not been judged.
func (l *Log) GetJudgment(ctx context.Context, requestID string) (*protocol.Judgment, error) {
	row := l.db.QueryRowContext(ctx,
		"SELECT verdict, confidence, reasoning, judged_at FROM judgments WHERE request_id = ?",
		requestID)

	var verdict, reasoning, judgedAt string
	j := protocol.Judgment{RequestID: requestID}
	if err := row.Scan(&verdict, &j.Confidence, &reasoning, &judgedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get judgment %s: %w", requestID, err)
	}
	j.Verdict = protocol.Verdict(verdict)
	if err := json.Unmarshal([]byte(reasoning), &j.Reasoning); err != nil {
		return nil, fmt.Errorf("decode reasoning for %s: %w", requestID, err)
	}
	if t, err := time.Parse(time.RFC3339, judgedAt); err == nil {
		j.JudgedAt = t
	}
	return &j, nil
}

// Query retrieves events matching opts, newest first.
func (l *Log) Query(ctx context.Context, opts QueryOpts) ([]Event, error) {
	query, args := buildQuery(opts)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var createdAtStr string
		if err := rows.Scan(&e.ID, &e.Type, &e.Source, &e.RequestID, &e.Stage, &e.Payload, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if createdAtStr != "" {
			t, err := time.Parse("2006-01-02 15:04:05", createdAtStr)
			if err != nil {
				t, err = time.Parse(time.RFC3339, createdAtStr)
				if err != nil {
					return nil, fmt.Errorf("parse created_at: %w", err)
				}
			}
			e.CreatedAt = t
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// buildQuery constructs the SQL query and arguments from QueryOpts.
func buildQuery(opts QueryOpts) (string, []any) {
	var conditions []string
	var args []any

	query := "SELECT id, type, source, request_id, stage, payload, created_at FROM events WHERE 1=1"

	if opts.RequestID != "" {
		conditions = append(conditions, "request_id = ?")
		args = append(args, opts.RequestID)
	}
	if opts.EventType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, opts.EventType)
	}
	if opts.After != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.After.Format("2006-01-02 15:04:05"))
	}
	if opts.Before != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, opts.Before.Format("2006-01-02 15:04:05"))
	}

	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	return query, args
}
