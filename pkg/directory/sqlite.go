package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

var ErrDirectoryClosed = errors.New("directory closed")

const schema = `CREATE TABLE IF NOT EXISTS entities (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL UNIQUE,
	folded TEXT NOT NULL
)`

// SQLite is a directory stored in a SQLite database. Names keep their
// insertion order; matching runs on a case-folded copy of each name.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the directory database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warnf("Failed to set %s: %v", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create directory schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Add inserts names, ignoring ones already present.
func (s *SQLite) Add(ctx context.Context, names ...string) error {
	if s.db == nil {
		return ErrDirectoryClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO entities (name, folded) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name, fold(name)); err != nil {
			return fmt.Errorf("failed to insert %q: %w", name, err)
		}
	}
	return tx.Commit()
}

// Search returns every name containing query, ignoring case.
func (s *SQLite) Search(ctx context.Context, query string) ([]string, error) {
	if s.db == nil {
		return nil, ErrDirectoryClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM entities WHERE instr(folded, ?) > 0 ORDER BY id", fold(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		results = append(results, name)
	}
	return results, rows.Err()
}

// Len returns the number of stored names.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, ErrDirectoryClosed
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n)
	return n, err
}

// Close releases the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
