package store

// schema contains the SQL statements to create the calledges export schema.
// Edges carry no uniqueness constraint: duplicate caller/callee pairs are kept.
const schema = `
-- Runs table
CREATE TABLE IF NOT EXISTS runs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    entry      TEXT NOT NULL,
    base_dir   TEXT NOT NULL,
    engine     TEXT NOT NULL,
    created_at TEXT NOT NULL,
    edge_count INTEGER DEFAULT 0
);

-- Edges table
CREATE TABLE IF NOT EXISTS edges (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       INTEGER NOT NULL,
    caller_file  TEXT NOT NULL,
    caller_start INTEGER NOT NULL,
    caller_end   INTEGER NOT NULL,
    callee_file  TEXT NOT NULL,
    callee_start INTEGER NOT NULL,
    callee_end   INTEGER NOT NULL,
    FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_edges_run ON edges(run_id);
CREATE INDEX IF NOT EXISTS idx_edges_caller_file ON edges(caller_file);
CREATE INDEX IF NOT EXISTS idx_edges_callee_file ON edges(callee_file);
`
