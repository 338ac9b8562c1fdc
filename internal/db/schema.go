package db

const schema = `
-- Scopes table
CREATE TABLE IF NOT EXISTS scopes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    timezone TEXT NOT NULL DEFAULT 'UTC',
    anchor_date DATETIME,
    external_id TEXT DEFAULT '',
    external_source TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

-- Iterations table
CREATE TABLE IF NOT EXISTS iterations (
    id TEXT PRIMARY KEY,
    scope_id TEXT NOT NULL,
    number INTEGER NOT NULL,
    title TEXT DEFAULT '',
    start_at DATETIME,
    end_at DATETIME,
    timezone TEXT NOT NULL DEFAULT 'UTC',
    progress_snapshot TEXT DEFAULT '',
    external_id TEXT DEFAULT '',
    external_source TEXT DEFAULT '',
    archived_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME,
    FOREIGN KEY (scope_id) REFERENCES scopes(id),
    UNIQUE(scope_id, number)
);

-- Work items table (the slice the iteration engine needs)
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    scope_id TEXT NOT NULL,
    title TEXT NOT NULL,
    state TEXT NOT NULL DEFAULT 'todo',
    state_group TEXT NOT NULL DEFAULT 'unstarted',
    assignees TEXT DEFAULT '',
    labels TEXT DEFAULT '',
    points INTEGER DEFAULT 0,
    is_draft INTEGER NOT NULL DEFAULT 0,
    archived_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME,
    FOREIGN KEY (scope_id) REFERENCES scopes(id)
);

-- Iteration memberships junction table. The row carries its own id so a
-- carry-over move can mutate iteration_id in place and keep the row identity.
CREATE TABLE IF NOT EXISTS memberships (
    id TEXT PRIMARY KEY,
    iteration_id TEXT NOT NULL,
    item_id TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME,
    FOREIGN KEY (iteration_id) REFERENCES iterations(id),
    FOREIGN KEY (item_id) REFERENCES items(id)
);

-- Epics table
CREATE TABLE IF NOT EXISTS epics (
    id TEXT PRIMARY KEY,
    scope_id TEXT NOT NULL,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'backlog',
    archived_at DATETIME,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME,
    FOREIGN KEY (scope_id) REFERENCES scopes(id)
);

-- Favorites table
CREATE TABLE IF NOT EXISTS favorites (
    id TEXT PRIMARY KEY,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    scope_id TEXT NOT NULL,
    user_id TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

-- Audit log table; the webhook sink drains from here
CREATE TABLE IF NOT EXISTS audit_log (
    id TEXT PRIMARY KEY,
    actor_id TEXT NOT NULL DEFAULT '',
    event_type TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    payload TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Uniqueness among non-deleted rows only: a re-added link after removal is a
-- new active row, while the removed one stays behind as history.
CREATE UNIQUE INDEX IF NOT EXISTS idx_memberships_active
    ON memberships(iteration_id, item_id) WHERE deleted_at IS NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_iterations_external
    ON iterations(scope_id, external_source, external_id)
    WHERE deleted_at IS NULL AND external_id != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_scopes_external
    ON scopes(external_source, external_id)
    WHERE deleted_at IS NULL AND external_id != '';

-- Indexes
CREATE INDEX IF NOT EXISTS idx_iterations_scope ON iterations(scope_id);
CREATE INDEX IF NOT EXISTS idx_iterations_deleted ON iterations(deleted_at);
CREATE INDEX IF NOT EXISTS idx_items_scope ON items(scope_id);
CREATE INDEX IF NOT EXISTS idx_items_state_group ON items(state_group);
CREATE INDEX IF NOT EXISTS idx_memberships_iteration ON memberships(iteration_id);
CREATE INDEX IF NOT EXISTS idx_memberships_item ON memberships(item_id);
CREATE INDEX IF NOT EXISTS idx_favorites_entity ON favorites(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);
`
