package sqlite

// Schema creates the tables on startup. CREATE IF NOT EXISTS keeps reopen
// idempotent; there is no migration framework at this scale.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id       TEXT NOT NULL,
	receiver_id     TEXT NOT NULL,
	conversation_id TEXT NOT NULL,
	journey_id      TEXT,
	body            TEXT NOT NULL,
	created_at      DATETIME NOT NULL,
	traveling_date  DATETIME,
	delivered       BOOLEAN NOT NULL DEFAULT 0,
	read            BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
CREATE INDEX IF NOT EXISTS idx_messages_undelivered ON messages(receiver_id, delivered);
CREATE INDEX IF NOT EXISTS idx_messages_journey ON messages(journey_id);

CREATE TABLE IF NOT EXISTS conversation_metadata (
	conversation_id TEXT NOT NULL,
	user_id         TEXT NOT NULL,
	unread_count    INTEGER NOT NULL DEFAULT 0,
	last_updated    DATETIME NOT NULL,
	PRIMARY KEY (conversation_id, user_id)
);
`
