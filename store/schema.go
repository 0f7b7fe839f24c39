package store

// schemaSQL is the DDL for all tables.
const schemaSQL = `
-- One row per catalog entity, keyed by its slug
CREATE TABLE IF NOT EXISTS pokemon (
    slug TEXT PRIMARY KEY,
    dex_id TEXT,
    dex_number INTEGER,
    name TEXT NOT NULL,
    link TEXT NOT NULL,
    height_cm REAL,
    weight_kg REAL,
    effectiveness JSON,
    abilities JSON,
    evolution JSON,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Ordered type list per entity
CREATE TABLE IF NOT EXISTS pokemon_types (
    slug TEXT NOT NULL REFERENCES pokemon(slug) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    type TEXT NOT NULL,
    PRIMARY KEY (slug, position)
);

-- Flat one-row-per-transition view of each entity's successors
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY,
    from_slug TEXT NOT NULL REFERENCES pokemon(slug) ON DELETE CASCADE,
    position INTEGER NOT NULL,
    to_slug TEXT NOT NULL,
    to_dex_id TEXT,
    to_name TEXT,
    to_link TEXT,
    method TEXT,
    level INTEGER,
    item TEXT,
    item_link TEXT
);

-- Crawl audit log
CREATE TABLE IF NOT EXISTS crawl_runs (
    id TEXT PRIMARY KEY,
    started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    finished_at DATETIME,
    pages INTEGER DEFAULT 0,
    entities INTEGER DEFAULT 0,
    failures INTEGER DEFAULT 0,
    status TEXT DEFAULT 'running'
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_pokemon_dex_number ON pokemon(dex_number);
CREATE INDEX IF NOT EXISTS idx_pokemon_types_type ON pokemon_types(type);
CREATE INDEX IF NOT EXISTS idx_transitions_from ON transitions(from_slug);
CREATE INDEX IF NOT EXISTS idx_transitions_to ON transitions(to_slug);
`
