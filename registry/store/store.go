// Package store is the optional SQLite-backed persistence layer for the name
// registry: path bindings survive a node restart when a store path is
// configured. Mounts are not persisted. The in-memory registry.Registry remains authoritative at
// runtime; Store only loads/saves snapshots of it.
package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/foundation42/microkernel/message"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store persists registry bindings to a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// applies any pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Save replaces the persisted binding set with bindings.
func (s *Store) Save(bindings map[string]message.ActorID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM bindings`); err != nil {
		tx.Rollback()
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO bindings (path, node, seq) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for path, id := range bindings {
		if _, err := stmt.Exec(path, id.Node, id.Seq); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Load returns every persisted binding.
func (s *Store) Load() (map[string]message.ActorID, error) {
	rows, err := s.db.Query(`SELECT path, node, seq FROM bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]message.ActorID)
	for rows.Next() {
		var path string
		var id message.ActorID
		if err := rows.Scan(&path, &id.Node, &id.Seq); err != nil {
			return nil, fmt.Errorf("store: scan binding: %w", err)
		}
		out[path] = id
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
