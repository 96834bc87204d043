package protocol

// SchemaDDL defines the SQLite schema for the Ferry event log.
// Tables: events (stage transitions and lifecycle events), judgments
// (terminal verdicts). Execute against a SQLite database with:
// db.Exec(SchemaDDL)
const SchemaDDL = `
-- Lifecycle event log: submissions, transitions, requeues, supervisor actions
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY,
    type TEXT NOT NULL,
    source TEXT NOT NULL,
    request_id TEXT,
    stage TEXT,
    payload TEXT,
    created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

-- Terminal verdicts. The UNIQUE constraint on request_id is the judge-once
-- invariant: re-judging a unit id fails at the database, not by convention.
CREATE TABLE IF NOT EXISTS judgments (
    id INTEGER PRIMARY KEY,
    request_id TEXT NOT NULL UNIQUE,
    verdict TEXT NOT NULL,
    confidence REAL NOT NULL,
    reasoning TEXT NOT NULL,
    judged_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS events_request_id ON events(request_id);
CREATE INDEX IF NOT EXISTS events_type ON events(type);
`
