package leadstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteBackend implements Backend as a cell grid in a local SQLite file, so
// the pipeline can run without a spreadsheet.
type SQLiteBackend struct {
	db *sql.DB
}

const sqliteCellsMigration = `
CREATE TABLE IF NOT EXISTS tabs (
	name       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cells (
	tab   TEXT NOT NULL REFERENCES tabs(name),
	row   INTEGER NOT NULL,
	col   INTEGER NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (tab, row, col)
);
`

// NewSQLiteBackend opens (or creates) a SQLite lead table file.
func NewSQLiteBackend(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteCellsMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: migrate")
	}
	return &SQLiteBackend{db: db}, nil
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// ListTabs implements Backend.
func (b *SQLiteBackend) ListTabs(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM tabs ORDER BY created_at, name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tabs")
	}
	defer rows.Close()

	var tabs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tab")
		}
		tabs = append(tabs, name)
	}
	return tabs, eris.Wrap(rows.Err(), "sqlite: list tabs iterate")
}

// AddTab implements Backend.
func (b *SQLiteBackend) AddTab(ctx context.Context, tab string) error {
	_, err := b.db.ExecContext(ctx, `INSERT OR IGNORE INTO tabs (name) VALUES (?)`, tab)
	return eris.Wrapf(err, "sqlite: add tab %q", tab)
}

func (b *SQLiteBackend) tabExists(ctx context.Context, tab string) (bool, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tabs WHERE name = ?`, tab).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check tab")
	}
	return n > 0, nil
}

// Get implements Backend. Rows are returned from the range's first row (or
// row 1) through the last row holding a value, like the Sheets API.
func (b *SQLiteBackend) Get(ctx context.Context, rng string) ([][]string, error) {
	r, err := ParseA1(rng)
	if err != nil {
		return nil, err
	}
	ok, err := b.tabExists(ctx, r.Tab)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrTabNotFound
	}

	startRow, startCol := max(r.StartRow, 1), max(r.StartCol, 1)
	query := `SELECT row, col, value FROM cells WHERE tab = ? AND row >= ? AND col >= ? AND value != ''`
	args := []any{r.Tab, startRow, startCol}
	if r.EndRow > 0 {
		query += ` AND row <= ?`
		args = append(args, r.EndRow)
	}
	if r.EndCol > 0 {
		query += ` AND col <= ?`
		args = append(args, r.EndCol)
	}
	query += ` ORDER BY row, col`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get range")
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var row, col int
		var value string
		if err := rows.Scan(&row, &col, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		ri, ci := row-startRow, col-startCol
		for len(out) <= ri {
			out = append(out, []string{})
		}
		for len(out[ri]) < ci {
			out[ri] = append(out[ri], "")
		}
		out[ri] = append(out[ri], value)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: get range iterate")
}

// Append implements Backend.
func (b *SQLiteBackend) Append(ctx context.Context, rng string, row []string) (string, error) {
	r, err := ParseA1(rng)
	if err != nil {
		return "", err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin append")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tabs WHERE name = ?`, r.Tab).Scan(&exists); err != nil {
		return "", eris.Wrap(err, "sqlite: check tab")
	}
	if exists == 0 {
		return "", ErrTabNotFound
	}

	var last sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(row) FROM cells WHERE tab = ? AND value != ''`, r.Tab,
	).Scan(&last); err != nil {
		return "", eris.Wrap(err, "sqlite: last row")
	}
	next := int(last.Int64) + 1

	for i, v := range row {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO cells (tab, row, col, value) VALUES (?, ?, ?, ?)`,
			r.Tab, next, i+1, v,
		); err != nil {
			return "", eris.Wrap(err, "sqlite: insert cell")
		}
	}
	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit append")
	}

	width := max(len(row), 1)
	return fmt.Sprintf("%s!A%d:%s%d", QuoteTab(r.Tab), next, ColumnLetter(width), next), nil
}

// BatchUpdate implements Backend. All updates commit in one transaction.
func (b *SQLiteBackend) BatchUpdate(ctx context.Context, updates []CellUpdate) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin update")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range updates {
		r, err := ParseA1(u.Range)
		if err != nil {
			return err
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tabs WHERE name = ?`, r.Tab).Scan(&exists); err != nil {
			return eris.Wrap(err, "sqlite: check tab")
		}
		if exists == 0 {
			return ErrTabNotFound
		}
		startRow, startCol := max(r.StartRow, 1), max(r.StartCol, 1)
		for i, vals := range u.Values {
			for j, v := range vals {
				if _, err := tx.ExecContext(ctx,
					`INSERT OR REPLACE INTO cells (tab, row, col, value) VALUES (?, ?, ?, ?)`,
					r.Tab, startRow+i, startCol+j, v,
				); err != nil {
					return eris.Wrap(err, "sqlite: write cell")
				}
			}
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit update")
}
