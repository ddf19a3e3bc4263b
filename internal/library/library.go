// Package library persists programs in a SQL database so SAVE, LOAD, DIR,
// and KILL survive across sessions. The same store runs on a local sqlite3
// file or on a shared mysql/postgres server for classroom setups.
package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/James-HoneyBadger/timewarp/internal/engine"
)

// ErrNotFound reports a LOAD or KILL of a name the store has never seen.
var ErrNotFound = errors.New("program not found")

// name is VARCHAR rather than TEXT so the primary key works on mysql too.
const schema = `
CREATE TABLE IF NOT EXISTS programs (
	name       VARCHAR(64) PRIMARY KEY,
	language   VARCHAR(16) NOT NULL,
	source     TEXT NOT NULL,
	updated_at VARCHAR(32) NOT NULL
)`

type Entry struct {
	Name     string
	Language engine.Kind
	Source   string
	Updated  time.Time
}

type Store struct {
	driver string
	db     *sql.DB
}

// Open connects using a database/sql driver name matching the blank
// imports (sqlite3, mysql, postgres) and ensures the schema exists.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open program library: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reach program library: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create programs table: %w", err)
	}
	return &Store{driver: driver, db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save stores source under name, replacing any previous version.
func (s *Store) Save(name string, kind engine.Kind, source string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	if _, err := tx.Exec(s.bind(`DELETE FROM programs WHERE name = ?`), name); err != nil {
		tx.Rollback()
		return fmt.Errorf("save %q: %w", name, err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		s.bind(`INSERT INTO programs (name, language, source, updated_at) VALUES (?, ?, ?, ?)`),
		name, string(kind), source, stamp,
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("save %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save %q: %w", name, err)
	}
	return nil
}

// Load fetches the named program. Missing names report ErrNotFound.
func (s *Store) Load(name string) (Entry, error) {
	row := s.db.QueryRow(
		s.bind(`SELECT name, language, source, updated_at FROM programs WHERE name = ?`), name)
	entry, err := scanEntry(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("load %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load %q: %w", name, err)
	}
	return entry, nil
}

// Dir lists every stored program in name order.
func (s *Store) Dir() ([]Entry, error) {
	rows, err := s.db.Query(`SELECT name, language, source, updated_at FROM programs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list programs: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return entries, nil
}

// Kill removes the named program. Missing names report ErrNotFound.
func (s *Store) Kill(name string) error {
	res, err := s.db.Exec(s.bind(`DELETE FROM programs WHERE name = ?`), name)
	if err != nil {
		return fmt.Errorf("kill %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("kill %q: %w", name, ErrNotFound)
	}
	return nil
}

func scanEntry(scan func(dest ...any) error) (Entry, error) {
	var e Entry
	var language, updated string
	if err := scan(&e.Name, &language, &e.Source, &updated); err != nil {
		return Entry{}, err
	}
	e.Language = engine.Kind(language)
	e.Updated, _ = time.Parse(time.RFC3339, updated)
	return e, nil
}

// bind rewrites ? placeholders to the $n form postgres expects. sqlite3 and
// mysql both take ? as written.
func (s *Store) bind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
