package store

const schema = `
CREATE TABLE IF NOT EXISTS exports (
    id TEXT PRIMARY KEY,
    target TEXT NOT NULL,
    style TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    outcome TEXT NOT NULL,
    failed_phase TEXT,
    packaging_ok BOOLEAN,
    warnings INTEGER NOT NULL DEFAULT 0,
    error TEXT
);

CREATE TABLE IF NOT EXISTS export_phases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    export_id TEXT NOT NULL,
    phase TEXT NOT NULL,
    status TEXT NOT NULL,
    detail TEXT,
    recorded_at TIMESTAMP NOT NULL,
    FOREIGN KEY (export_id) REFERENCES exports(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS backup_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    target TEXT NOT NULL,
    file TEXT NOT NULL,
    action TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exports_target ON exports(target);
CREATE INDEX IF NOT EXISTS idx_exports_started ON exports(started_at);
CREATE INDEX IF NOT EXISTS idx_phases_export ON export_phases(export_id);
CREATE INDEX IF NOT EXISTS idx_backup_target ON backup_events(target);
`
