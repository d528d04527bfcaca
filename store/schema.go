package store

// Schema contains the complete DDL for the greenlight core tables.
const Schema = `
-- Targets: the unit of adaptation.
CREATE TABLE IF NOT EXISTS targets (
    id                TEXT PRIMARY KEY,
    url               TEXT NOT NULL,
    type              TEXT NOT NULL DEFAULT 'web',
    status            TEXT NOT NULL DEFAULT 'discovering',
    green_light_status TEXT NOT NULL DEFAULT 'RED',
    trust_score       INTEGER NOT NULL DEFAULT 0,
    established_at    INTEGER,
    maintained_for    INTEGER NOT NULL DEFAULT 0,
    is_authenticated  INTEGER NOT NULL DEFAULT 0,
    auth_endpoint     TEXT,
    auth_username     TEXT,
    session_cookie    TEXT,
    current_dna_id    TEXT,
    last_seen         INTEGER,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_targets_status ON targets(status);

-- DNA snapshots: immutable, versioned, lineage-tracked profiles.
CREATE TABLE IF NOT EXISTS dna_snapshots (
    id         TEXT PRIMARY KEY,
    target_id  TEXT NOT NULL,
    version    TEXT NOT NULL,
    dna_json   TEXT NOT NULL,
    parent_id  TEXT,
    is_active  INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE,
    FOREIGN KEY (parent_id) REFERENCES dna_snapshots(id) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_dna_target ON dna_snapshots(target_id);
CREATE INDEX IF NOT EXISTS idx_dna_target_active ON dna_snapshots(target_id, is_active);

-- Learning events: append-only audit trail of mutations, milestones, challenges.
CREATE TABLE IF NOT EXISTS learning_events (
    id               TEXT PRIMARY KEY,
    target_id        TEXT NOT NULL,
    dna_version_id   TEXT,
    event_type       TEXT NOT NULL,
    title            TEXT NOT NULL,
    description      TEXT NOT NULL DEFAULT '',
    mcp_insight      TEXT,
    mcp_confidence   REAL,
    mcp_model        TEXT,
    dna_changes      TEXT,
    before_state     TEXT,
    after_state      TEXT,
    trust_impact     INTEGER NOT NULL DEFAULT 0,
    challenge_type   TEXT,
    challenge_solved INTEGER,
    created_at       INTEGER NOT NULL,
    FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_events_target ON learning_events(target_id, created_at);

-- Request logs: one row per outbound request, response fields filled in later.
CREATE TABLE IF NOT EXISTS request_logs (
    id                     TEXT PRIMARY KEY,
    target_id              TEXT NOT NULL,
    dna_id                 TEXT,
    method                 TEXT NOT NULL,
    url                    TEXT NOT NULL,
    request_headers        TEXT NOT NULL DEFAULT '{}',
    body_preview           TEXT NOT NULL DEFAULT '',
    response_status        INTEGER,
    response_headers       TEXT,
    response_body_preview  TEXT,
    was_blocked            INTEGER NOT NULL DEFAULT 0,
    block_reason           TEXT,
    challenge_detected     INTEGER NOT NULL DEFAULT 0,
    challenge_type         TEXT,
    timing_ms              INTEGER,
    created_at             INTEGER NOT NULL,
    responded_at           INTEGER,
    FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_requests_target ON request_logs(target_id, created_at);

-- Green-light state history: one row per Scorer computation that produced a transition.
CREATE TABLE IF NOT EXISTS green_light_states (
    id              TEXT PRIMARY KEY,
    target_id       TEXT NOT NULL,
    status          TEXT NOT NULL,
    trust_score     INTEGER NOT NULL,
    signals_json    TEXT NOT NULL,
    established_at  INTEGER,
    maintained_for  INTEGER NOT NULL DEFAULT 0,
    lost_at         INTEGER,
    reason_lost     TEXT,
    created_at      INTEGER NOT NULL,
    FOREIGN KEY (target_id) REFERENCES targets(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_gls_target ON green_light_states(target_id, created_at);
`
