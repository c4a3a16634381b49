package db

// SchemaSQL creates the asset store. Statements are idempotent so InitSchema
// can run on every startup.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS assets (
    id           UUID PRIMARY KEY,
    source       TEXT NOT NULL,
    source_ref   TEXT NOT NULL,
    title        TEXT,
    description  TEXT,
    board        TEXT,
    notes        TEXT,
    created_at   TIMESTAMPTZ,
    image_url    TEXT,
    stored_path  TEXT,
    thumb_path   TEXT,
    sha256       TEXT,
    ai_summary   TEXT,
    imported_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (source, source_ref)
);

CREATE TABLE IF NOT EXISTS ai_runs (
    id          UUID PRIMARY KEY,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS asset_ai (
    id          UUID PRIMARY KEY,
    asset_id    UUID NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    summary     TEXT,
    payload     TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_asset_ai_asset ON asset_ai (asset_id, provider, created_at);

CREATE TABLE IF NOT EXISTS asset_labels (
    id          UUID PRIMARY KEY,
    asset_id    UUID NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
    label       TEXT NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL,
    source      TEXT NOT NULL,
    model       TEXT,
    run_id      UUID,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (asset_id, label, source)
);
CREATE INDEX IF NOT EXISTS idx_asset_labels_label ON asset_labels (label);

CREATE TABLE IF NOT EXISTS asset_ai_errors (
    id          UUID PRIMARY KEY,
    asset_id    UUID REFERENCES assets(id) ON DELETE CASCADE,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    error       TEXT NOT NULL,
    raw         TEXT,
    run_id      UUID,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_asset_ai_errors_created ON asset_ai_errors (created_at DESC);

CREATE TABLE IF NOT EXISTS asset_embeddings (
    id          UUID PRIMARY KEY,
    asset_id    UUID NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
    provider    TEXT NOT NULL,
    model       TEXT NOT NULL,
    input_text  TEXT NOT NULL,
    vector      TEXT NOT NULL,
    dimensions  INTEGER NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (asset_id, provider, model)
);
`
