package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const dbFile = "nyay.db"

// Connection pragmas. busy_timeout is applied first by the driver.
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Columns the chat log and favorites code reads and writes. A database that
// lacks any of them was not created by this package.
var requiredColumns = map[string][]string{
	"chat_sessions": {"id", "created_at"},
	"messages":      {"id", "session_id", "seq", "role", "content", "sources_json", "created_at"},
	"favorites":     {"precedent_id", "precedent_json", "created_at"},
}

// Store persists chat logs and favorite precedents in SQLite.
type Store struct {
	db      *sql.DB
	now     func() time.Time
	version int
}

// Open opens the store in dataDir, creating the database on first use and
// bringing its schema up to date. ":memory:" opens a private in-memory store.
func Open(dataDir string) (*Store, error) {
	dsn := ":memory:"
	if dataDir != ":memory:" {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, dbFile)
	}

	db, err := sql.Open("sqlite", dsn+pragmas)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Append numbers messages by counting rows inside a transaction, so all
	// writes go through one connection. It also keeps :memory: a single database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.upgrade(); err != nil {
		db.Close()
		return nil, fmt.Errorf("upgrading schema: %w", err)
	}
	if err := s.checkSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchemaVersion is the number of the last migration applied to the database.
func (s *Store) SchemaVersion() int {
	return s.version
}

type migration struct {
	version int
	name    string
}

func migrations() ([]migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}
	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		var v int
		if _, err := fmt.Sscanf(e.Name(), "%d_", &v); err != nil {
			return nil, fmt.Errorf("migration %q has no version prefix", e.Name())
		}
		out = append(out, migration{version: v, name: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

// upgrade applies every migration newer than the database's user_version,
// each in its own transaction together with the version bump.
func (s *Store) upgrade() error {
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&s.version); err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}

	all, err := migrations()
	if err != nil {
		return err
	}
	for _, m := range all {
		if m.version <= s.version {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + m.name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", m.name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying %s: %w", m.name, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing %s: %w", m.name, err)
		}
		s.version = m.version
	}
	return nil
}

// checkSchema makes sure every column the store uses is present.
func (s *Store) checkSchema() error {
	tables := make([]string, 0, len(requiredColumns))
	for t := range requiredColumns {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		have, err := s.columns(table)
		if err != nil {
			return err
		}
		var missing []string
		for _, col := range requiredColumns[table] {
			if !have[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("table %s is missing columns %s (schema version %d)",
				table, strings.Join(missing, ", "), s.version)
		}
	}
	return nil
}

func (s *Store) columns(table string) (map[string]bool, error) {
	rows, err := s.db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("inspecting %s: %w", table, err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		have[name] = true
	}
	return have, rows.Err()
}
