// ABOUTME: SQLite schema for the relational store
// ABOUTME: FTS5 mirrors messages via message_rowid, not the UUID id (see spec's Open Questions)
package sqlite

// Schema contains every table, index and trigger the relational store
// needs. Canonical id type is TEXT (stringified UUID); canonical timestamp
// type is ISO-8601 TEXT, both per the spec's resolved Open Question.
const Schema = `
CREATE TABLE IF NOT EXISTS conversations (
    id               TEXT PRIMARY KEY,
    label            TEXT NOT NULL DEFAULT '',
    folder           TEXT NOT NULL DEFAULT '/',
    status           TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','archived','pinned')),
    importance_score INTEGER NOT NULL DEFAULT 5 CHECK (importance_score BETWEEN 1 AND 10),
    word_count       INTEGER NOT NULL DEFAULT 0,
    session_count    INTEGER NOT NULL DEFAULT 0,
    last_accessed_at TEXT,
    created_at       TEXT NOT NULL,
    updated_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_label_status ON conversations(label, status);
CREATE INDEX IF NOT EXISTS idx_conversations_folder_updated ON conversations(folder, updated_at);

CREATE TABLE IF NOT EXISTS messages (
    message_rowid  INTEGER PRIMARY KEY AUTOINCREMENT,
    id             TEXT UNIQUE NOT NULL,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    role           TEXT NOT NULL CHECK (role IN ('user','assistant','system')),
    content        TEXT NOT NULL,
    timestamp      TEXT NOT NULL,
    insertion_id   INTEGER NOT NULL,
    embedding_id   TEXT,
    metadata       TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);
CREATE INDEX IF NOT EXISTS idx_messages_embedding_id ON messages(embedding_id);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    content,
    content='messages',
    content_rowid='message_rowid',
    tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, content) VALUES (new.message_rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.message_rowid, old.content);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, content) VALUES ('delete', old.message_rowid, old.content);
    INSERT INTO messages_fts(rowid, content) VALUES (new.message_rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS conversations_touch_on_message AFTER INSERT ON messages BEGIN
    UPDATE conversations
       SET updated_at = (SELECT MAX(updated_at, new.timestamp) FROM conversations WHERE id = new.conversation_id),
           word_count = word_count + (LENGTH(new.content) - LENGTH(REPLACE(new.content, ' ', '')) + 1)
     WHERE id = new.conversation_id;
END;

CREATE TABLE IF NOT EXISTS hierarchical_summaries (
    id              TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    level           TEXT NOT NULL CHECK (level IN ('daily','weekly','monthly')),
    summary_text    TEXT NOT NULL,
    range_start     TEXT NOT NULL,
    range_end       TEXT NOT NULL,
    generated_at    TEXT NOT NULL,
    model_used      TEXT NOT NULL,
    token_count     INTEGER NOT NULL DEFAULT 0,
    UNIQUE (conversation_id, level, range_start, range_end)
);

CREATE INDEX IF NOT EXISTS idx_summaries_conv_level ON hierarchical_summaries(conversation_id, level);

CREATE TABLE IF NOT EXISTS semantic_tags (
    conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
    tag             TEXT NOT NULL,
    confidence      REAL NOT NULL DEFAULT 0,
    extracted_at    TEXT NOT NULL,
    PRIMARY KEY (conversation_id, tag)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag ON semantic_tags(tag);

CREATE TABLE IF NOT EXISTS failed_embeddings (
    message_id TEXT PRIMARY KEY,
    reason     TEXT NOT NULL,
    first_seen TEXT NOT NULL,
    last_seen  TEXT NOT NULL,
    attempts   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS pending_vector_deletes (
    conversation_id TEXT PRIMARY KEY,
    requested_at    TEXT NOT NULL,
    attempts        INTEGER NOT NULL DEFAULT 0,
    last_error      TEXT
);

CREATE TABLE IF NOT EXISTS access_log (
    conversation_id TEXT PRIMARY KEY REFERENCES conversations(id) ON DELETE CASCADE,
    last_accessed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS imported_files (
    path                  TEXT PRIMARY KEY,
    source_format         TEXT NOT NULL,
    imported_at           TEXT NOT NULL,
    conversations_created INTEGER NOT NULL DEFAULT 0,
    status                TEXT NOT NULL DEFAULT 'pending',
    error                 TEXT
);
`

const SchemaVersion = 2
