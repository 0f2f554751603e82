// Package storage opens the client-local SQLite database shared by the
// history and identity stores. Callers treat a nil *sql.DB as "storage
// unavailable" and degrade to in-memory operation.
package storage

import (
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
)

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
