package store

import (
	"database/sql"
	"errors"
	"os"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

var sqliteBackend = &Backend{
	Name:    "sqlite",
	Open:    openSQLite,
	Version: "sqlite (modernc)",
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
);`

type sqliteStore struct {
	db *sqlx.DB
}

func openSQLite(path string, create bool) (Store, error) {
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A handle is single-consumer; one connection keeps the write lock
	// discipline simple.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Fetch(key []byte) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, "SELECT value FROM kv WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *sqliteStore) Store(key, value []byte) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func (s *sqliteStore) Delete(key []byte) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
