package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// OpenStore opens the sqlite file that persists backend descriptors and
// creates its schema when missing.
func OpenStore(path string) (*ConfigStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	store := &ConfigStore{db: conn}
	if err := store.setupSchema(); err != nil {
		conn.Close()
		return nil, err
	}
	return store, nil
}
