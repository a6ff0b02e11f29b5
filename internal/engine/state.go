package engine

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/marktide/marktide/internal/logger"
	"github.com/marktide/marktide/internal/types"
	"github.com/marktide/marktide/pkg/errors"
)

// RunStore persists the fills and the equity curve of backtest runs in an
// in-memory DuckDB database and exports them to parquet at the end of a run.
type RunStore struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// NewRunStore opens the database and creates the tables.
func NewRunStore(log *logger.Logger) (*RunStore, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to open run store database", err)
	}

	store := &RunStore{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := store.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return store, nil
}

func (s *RunStore) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			run_id TEXT,
			order_id TEXT,
			symbol TEXT,
			side TEXT,
			price DOUBLE,
			quantity DOUBLE,
			fee DOUBLE,
			executed_at TIMESTAMP,
			reason TEXT,
			pnl DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to create fills table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS equity_curve (
			run_id TEXT,
			observed_at TIMESTAMP,
			equity DOUBLE,
			cash DOUBLE,
			unrealized_pnl DOUBLE,
			realized_pnl DOUBLE,
			last_signal TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to create equity_curve table", err)
	}

	return nil
}

// RecordFill stores one fill, including rejections.
func (s *RunStore) RecordFill(runID string, fill types.Fill) error {
	insert := s.sq.
		Insert("fills").
		Columns("run_id", "order_id", "symbol", "side", "price", "quantity", "fee", "executed_at", "reason", "pnl").
		Values(runID, fill.OrderID, fill.Symbol, fill.Side, fill.Price, fill.Quantity, fill.Fee, fill.Time, fill.Reason, fill.PnL).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to insert fill", err)
	}

	return nil
}

// RecordEquity stores one mark-to-market observation.
func (s *RunStore) RecordEquity(runID string, record TraceRecord) error {
	insert := s.sq.
		Insert("equity_curve").
		Columns("run_id", "observed_at", "equity", "cash", "unrealized_pnl", "realized_pnl", "last_signal").
		Values(runID, record.Time, record.Equity, record.Cash, record.UnrealizedPnL, record.RealizedPnL, string(record.LastSignal)).
		RunWith(s.db)

	if _, err := insert.Exec(); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to insert equity record", err)
	}

	return nil
}

// GetFills returns the fills of a run in execution order.
func (s *RunStore) GetFills(runID string) ([]types.Fill, error) {
	query := s.sq.
		Select("order_id", "symbol", "side", "price", "quantity", "fee", "executed_at", "reason", "pnl").
		From("fills").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("executed_at ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to query fills", err)
	}
	defer rows.Close()

	var fills []types.Fill

	for rows.Next() {
		var fill types.Fill
		if err := rows.Scan(
			&fill.OrderID,
			&fill.Symbol,
			&fill.Side,
			&fill.Price,
			&fill.Quantity,
			&fill.Fee,
			&fill.Time,
			&fill.Reason,
			&fill.PnL,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to scan fill", err)
		}

		fills = append(fills, fill)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "error iterating fills", err)
	}

	return fills, nil
}

// GetEquityCurve returns the equity trace of a run in time order.
func (s *RunStore) GetEquityCurve(runID string) ([]TraceRecord, error) {
	query := s.sq.
		Select("observed_at", "equity", "cash", "unrealized_pnl", "realized_pnl", "last_signal").
		From("equity_curve").
		Where(squirrel.Eq{"run_id": runID}).
		OrderBy("observed_at ASC").
		RunWith(s.db)

	rows, err := query.Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to query equity curve", err)
	}
	defer rows.Close()

	var trace []TraceRecord

	for rows.Next() {
		var (
			record TraceRecord
			signal string
		)

		if err := rows.Scan(
			&record.Time,
			&record.Equity,
			&record.Cash,
			&record.UnrealizedPnL,
			&record.RealizedPnL,
			&signal,
		); err != nil {
			return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to scan equity record", err)
		}

		record.LastSignal = types.SignalAction(signal)
		trace = append(trace, record)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStateStoreFailed, "error iterating equity curve", err)
	}

	return trace, nil
}

// ExportParquet writes the fills and the equity curve to parquet files in
// the given directory.
func (s *RunStore) ExportParquet(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to create results directory", err)
	}

	fillsPath := filepath.Join(dir, "fills.parquet")
	if _, err := s.db.Exec(fmt.Sprintf(`COPY fills TO '%s' (FORMAT PARQUET)`, escapePath(fillsPath))); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to export fills to parquet", err)
	}

	equityPath := filepath.Join(dir, "equity_curve.parquet")
	if _, err := s.db.Exec(fmt.Sprintf(`COPY equity_curve TO '%s' (FORMAT PARQUET)`, escapePath(equityPath))); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to export equity curve to parquet", err)
	}

	s.log.Info("run store exported",
		zap.String("fills", fillsPath),
		zap.String("equity_curve", equityPath),
	)

	return nil
}

// Cleanup drops all stored runs.
func (s *RunStore) Cleanup() error {
	if _, err := s.db.Exec(`DELETE FROM fills; DELETE FROM equity_curve;`); err != nil {
		return errors.Wrap(errors.ErrCodeStateStoreFailed, "failed to clean run store", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func escapePath(path string) string {
	return strings.ReplaceAll(path, "'", "''")
}
