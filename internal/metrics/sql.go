package metrics

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    start_time TIMESTAMP NOT NULL,
    device     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id     TEXT NOT NULL REFERENCES sessions (id),
    timestamp      TIMESTAMP NOT NULL,
    center_freq_hz INTEGER NOT NULL,
    sample_rate_hz INTEGER NOT NULL,
    nperseg        INTEGER NOT NULL,
    bin_count      INTEGER NOT NULL,
    scale          TEXT NOT NULL,
    acquire_ms     REAL NOT NULL,
    process_ms     REAL NOT NULL,
    overruns       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS faults (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL REFERENCES sessions (id),
    timestamp  TIMESTAMP NOT NULL,
    state      TEXT NOT NULL,
    error      TEXT NOT NULL,
    retry      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_faults_session ON faults (session_id, timestamp);`

const (
	insertSessionSQL = `
INSERT INTO sessions (id,
                      start_time,
                      device)
VALUES (?, CURRENT_TIMESTAMP, ?)`

	insertCycleSQL = `
INSERT INTO cycles (session_id,
                    timestamp,
                    center_freq_hz,
                    sample_rate_hz,
                    nperseg,
                    bin_count,
                    scale,
                    acquire_ms,
                    process_ms,
                    overruns)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertFaultSQL = `
INSERT INTO faults (session_id,
                    timestamp,
                    state,
                    error,
                    retry)
VALUES (?, ?, ?, ?, ?)`

	selectCycleCountSQL = `
SELECT COUNT(*)
FROM cycles
WHERE
    session_id = ?`
)
