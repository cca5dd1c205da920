package patterns

import (
	"bytes"
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"go-metronome/debug"
	"go-metronome/patterns/migrations"
	"go-metronome/sequencer"
)

// ErrExists is returned when a pattern name is already taken
var ErrExists = errors.New("pattern already exists")

//go:embed samples.pat
var samplePat []byte

// Samples returns the built-in patterns
func Samples() []Pattern {
	ps, err := ReadPat(bytes.NewReader(samplePat))
	if err != nil {
		panic(fmt.Sprintf("built-in patterns: %v", err))
	}
	return ps
}

// Store persists patterns in SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the pattern database at path and applies
// the embedded migrations. ":memory:" opens a private in-memory store.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pattern store path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path)
	}
	dsn += "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrate(context.Background(), db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Names lists stored patterns alphabetically
func (s *Store) Names(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM patterns ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan pattern name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Count returns the number of stored patterns
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM patterns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patterns: %w", err)
	}
	return n, nil
}

// Get loads one pattern by name (case-insensitive)
func (s *Store) Get(ctx context.Context, name string) (Pattern, error) {
	var (
		p      Pattern
		figure int
	)
	err := s.db.QueryRowContext(ctx, `SELECT name, figure FROM patterns WHERE name = ?`, name).Scan(&p.Name, &figure)
	if errors.Is(err, sql.ErrNoRows) {
		return Pattern{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return Pattern{}, fmt.Errorf("get pattern %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT note, cells FROM pattern_rows WHERE pattern = ? ORDER BY position`, p.Name)
	if err != nil {
		return Pattern{}, fmt.Errorf("get pattern rows %q: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			note  int
			cells string
		)
		if err := rows.Scan(&note, &cells); err != nil {
			return Pattern{}, fmt.Errorf("scan pattern row: %w", err)
		}
		p.Rows = append(p.Rows, Row{Key: uint8(note), Cells: splitCells(cells, figure)})
	}
	if err := rows.Err(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// Create stores a new pattern, failing with ErrExists on a taken name
func (s *Store) Create(ctx context.Context, p Pattern) error {
	return s.write(ctx, p, false)
}

// Put creates or replaces a pattern
func (s *Store) Put(ctx context.Context, p Pattern) error {
	return s.write(ctx, p, true)
}

func (s *Store) write(ctx context.Context, p Pattern, replace bool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	now := s.now().UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if replace {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO patterns (name, figure, created_at, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET figure = excluded.figure, updated_at = excluded.updated_at`,
			p.Name, p.Figure(), now, now)
	} else {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO patterns (name, figure, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			p.Name, p.Figure(), now, now)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrExists, p.Name)
		}
		return fmt.Errorf("save pattern %q: %w", p.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_rows WHERE pattern = ?`, p.Name); err != nil {
		return fmt.Errorf("clear rows of %q: %w", p.Name, err)
	}
	for i, r := range p.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pattern_rows (pattern, position, note, cells) VALUES (?, ?, ?, ?)`,
			p.Name, i, int(r.Key), joinCells(r.Cells)); err != nil {
			return fmt.Errorf("save row %d of %q: %w", i, p.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pattern %q: %w", p.Name, err)
	}
	debug.Log("patterns", "saved %q (%d rows, figure %d)", p.Name, len(p.Rows), p.Figure())
	return nil
}

// Rename changes a pattern's name
func (s *Store) Rename(ctx context.Context, from, to string) error {
	p, err := s.Get(ctx, from)
	if err != nil {
		return err
	}
	p.Name = to
	if err := p.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pattern_rows WHERE pattern = ?`, from); err != nil {
		return fmt.Errorf("rename %q: %w", from, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE patterns SET name = ?, updated_at = ? WHERE name = ?`,
		to, s.now().UTC().UnixMilli(), from); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ErrExists, to)
		}
		return fmt.Errorf("rename %q: %w", from, err)
	}
	for i, r := range p.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pattern_rows (pattern, position, note, cells) VALUES (?, ?, ?, ?)`,
			to, i, int(r.Key), joinCells(r.Cells)); err != nil {
			return fmt.Errorf("rename %q: %w", from, err)
		}
	}
	return tx.Commit()
}

// Delete removes a pattern
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patterns WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete pattern %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	// rows go with the cascade; clean up explicitly when foreign keys are off
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pattern_rows WHERE pattern = ?`, name); err != nil {
		return fmt.Errorf("delete rows of %q: %w", name, err)
	}
	return nil
}

// Import reads a pattern file and stores every pattern in it, replacing
// patterns of the same name. It returns how many were stored.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	ps, err := ReadPat(r)
	if err != nil {
		return 0, fmt.Errorf("read patterns: %w", err)
	}
	for i, p := range ps {
		if err := s.Put(ctx, p); err != nil {
			return i, err
		}
	}
	return len(ps), nil
}

// Export writes every stored pattern as a pattern file
func (s *Store) Export(ctx context.Context, w io.Writer) error {
	names, err := s.Names(ctx)
	if err != nil {
		return err
	}
	ps := make([]Pattern, 0, len(names))
	for _, name := range names {
		p, err := s.Get(ctx, name)
		if err != nil {
			return err
		}
		ps = append(ps, p)
	}
	return WritePat(w, ps)
}

// Seed imports the built-in patterns into an empty store
func (s *Store) Seed(ctx context.Context) (int, error) {
	n, err := s.Count(ctx)
	if err != nil || n > 0 {
		return 0, err
	}
	return s.Import(ctx, bytes.NewReader(samplePat))
}

// Grid loads a pattern and converts it for the engine
func (s *Store) Grid(ctx context.Context, name string, names func(uint8) string) (*sequencer.Grid, error) {
	p, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Grid(names), nil
}

func joinCells(cells []sequencer.Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

func splitCells(s string, figure int) []sequencer.Cell {
	cells := make([]sequencer.Cell, max(figure, 0))
	for i, part := range strings.Split(s, ",") {
		if i >= len(cells) {
			break
		}
		cells[i] = sequencer.Cell(part)
	}
	return cells
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
