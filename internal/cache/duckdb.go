package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// DuckDBStore is an on-disk Store that persists each dataset as one Parquet
// file named after its key. Keys survive process restarts; a second process
// issuing the same logical request hits the same file.
type DuckDBStore struct {
	dir string
}

var _ Store = (*DuckDBStore)(nil)

// NewDuckDBStore creates a store rooted at dir, creating it if needed.
func NewDuckDBStore(dir string) (*DuckDBStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheFailed, "failed to create cache directory", err)
	}

	return &DuckDBStore{dir: dir}, nil
}

func (s *DuckDBStore) path(key Key) string {
	return filepath.Join(s.dir, key.String()+".parquet")
}

// Get implements Store by reading the key's Parquet file, if present.
func (s *DuckDBStore) Get(key Key) ([]types.Bar, bool, error) {
	path := s.path(key)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, false, nil
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCacheFailed, "failed to open duckdb", err)
	}
	defer db.Close()

	rows, err := db.Query(
		fmt.Sprintf(`SELECT symbol, time, open, high, low, close, volume FROM read_parquet('%s') ORDER BY time ASC`, escapePath(path)),
	)
	if err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCacheFailed, "failed to read cached parquet", err)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var bar types.Bar

		if err := rows.Scan(&bar.Symbol, &bar.Time, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume); err != nil {
			return nil, false, errors.Wrap(errors.ErrCodeCacheFailed, "failed to scan cached bar", err)
		}

		bars = append(bars, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, false, errors.Wrap(errors.ErrCodeCacheFailed, "error iterating cached bars", err)
	}

	return bars, true, nil
}

// Put implements Store by writing bars to a Parquet file via DuckDB COPY.
// The write goes to a temporary file first so a concurrent Get never sees a
// partially written dataset.
func (s *DuckDBStore) Put(key Key, bars []types.Bar) error {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to open duckdb", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE bars (
			symbol TEXT,
			time TIMESTAMP,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to create staging table", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO bars (symbol, time, open, high, low, close, volume) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to prepare insert", err)
	}

	for _, bar := range bars {
		if _, err := stmt.Exec(bar.Symbol, bar.Time, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
			stmt.Close()
			tx.Rollback()

			return errors.Wrap(errors.ErrCodeCacheFailed, "failed to insert bar", err)
		}
	}

	stmt.Close()

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to commit bars", err)
	}

	tmpPath := s.path(key) + ".tmp"

	_, err = db.Exec(fmt.Sprintf(`COPY bars TO '%s' (FORMAT PARQUET)`, escapePath(tmpPath)))
	if err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to export bars to parquet", err)
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		return errors.Wrap(errors.ErrCodeCacheFailed, "failed to publish cache file", err)
	}

	return nil
}

// escapePath escapes single quotes for embedding a path in a SQL literal.
func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
