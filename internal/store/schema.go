package store

import "database/sql"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    email TEXT PRIMARY KEY,
    password_hash TEXT NOT NULL,
    profile TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    email TEXT NOT NULL REFERENCES accounts(email),
    logged_in_at DATETIME NOT NULL
);
`

// InitSchema creates the tables if they do not exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
