// Package store persists backtest results in DuckDB for later retrieval by
// identifier, strategy name, or date range. The full result is stored as a
// JSON document next to a few indexed summary columns, which keeps the
// round-trip lossless without mirroring every field into SQL.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/pkg/errors"
)

// Store is a DuckDB-backed result repository.
type Store struct {
	db  *sql.DB
	log *logger.Logger
	sq  squirrel.StatementBuilderType
}

// Open opens (or creates) the database at path; use ":memory:" for an
// ephemeral store.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "open result store", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "connect to result store", err)
	}

	s := &Store{
		db:  db,
		log: log,
		sq:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}

	if err := s.initialize(); err != nil {
		db.Close()

		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_results (
			id TEXT PRIMARY KEY,
			strategy_name TEXT,
			start_date TIMESTAMP,
			end_date TIMESTAMP,
			created_at TIMESTAMP,
			total_return_pct DOUBLE,
			sharpe_ratio DOUBLE,
			total_trades INTEGER,
			result TEXT
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "create backtest_results table", err)
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS health_snapshots (
			strategy_name TEXT,
			timestamp TIMESTAMP,
			rolling_sharpe DOUBLE,
			win_rate DOUBLE,
			profit_factor DOUBLE,
			trade_count INTEGER,
			max_drawdown_pct DOUBLE
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreUnavailable, "create health_snapshots table", err)
	}

	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists a finished result. The ID must be unique per run.
func (s *Store) Save(result *types.BacktestResult) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return errors.Wrap(errors.ErrCodeEncodeFailed, "encode backtest result", err)
	}

	query, args, err := s.sq.Insert("backtest_results").
		Columns("id", "strategy_name", "start_date", "end_date", "created_at",
			"total_return_pct", "sharpe_ratio", "total_trades", "result").
		Values(result.ID, result.Config.StrategyName, result.Config.StartDate, result.Config.EndDate,
			result.CreatedAt, result.TotalReturnPct, result.SharpeRatio, result.TotalTrades, string(doc)).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "build insert", err)
	}

	if _, err := s.db.Exec(query, args...); err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "insert backtest result", err)
	}

	s.log.Debug("backtest result saved",
		zap.String("id", result.ID),
		zap.String("strategy", result.Config.StrategyName),
	)

	return nil
}

// Load retrieves one result by ID.
func (s *Store) Load(id string) (*types.BacktestResult, error) {
	query, args, err := s.sq.Select("result").
		From("backtest_results").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build select", err)
	}

	var doc string

	if err := s.db.QueryRow(query, args...).Scan(&doc); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.Newf(errors.ErrCodeResultNotFound, "backtest result %s not found", id)
		}

		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "load backtest result", err)
	}

	var result types.BacktestResult

	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "decode backtest result", err)
	}

	return &result, nil
}

// Summary is one row of a result listing.
type Summary struct {
	ID             string
	StrategyName   string
	StartDate      time.Time
	EndDate        time.Time
	CreatedAt      time.Time
	TotalReturnPct float64
	SharpeRatio    float64
	TotalTrades    int
}

// Filter narrows List; empty fields match everything.
type Filter struct {
	StrategyName optional.Option[string]
	From         optional.Option[time.Time]
	To           optional.Option[time.Time]
}

// List returns result summaries matching the filter, newest first.
func (s *Store) List(filter Filter) ([]Summary, error) {
	builder := s.sq.Select("id", "strategy_name", "start_date", "end_date", "created_at",
		"total_return_pct", "sharpe_ratio", "total_trades").
		From("backtest_results").
		OrderBy("created_at DESC")

	if name, err := filter.StrategyName.Take(); err == nil {
		builder = builder.Where(squirrel.Eq{"strategy_name": name})
	}

	if from, err := filter.From.Take(); err == nil {
		builder = builder.Where(squirrel.GtOrEq{"created_at": from})
	}

	if to, err := filter.To.Take(); err == nil {
		builder = builder.Where(squirrel.LtOrEq{"created_at": to})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "build list query", err)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "list backtest results", err)
	}
	defer rows.Close()

	var out []Summary

	for rows.Next() {
		var row Summary

		if err := rows.Scan(&row.ID, &row.StrategyName, &row.StartDate, &row.EndDate,
			&row.CreatedAt, &row.TotalReturnPct, &row.SharpeRatio, &row.TotalTrades); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "scan result row", err)
		}

		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "iterate result rows", err)
	}

	return out, nil
}

// RecordHealth writes a strategy-monitoring snapshot. The write is best
// effort: a failure is logged and swallowed, never surfaced as a backtest
// failure.
func (s *Store) RecordHealth(snapshot types.HealthSnapshot) {
	query, args, err := s.sq.Insert("health_snapshots").
		Columns("strategy_name", "timestamp", "rolling_sharpe", "win_rate",
			"profit_factor", "trade_count", "max_drawdown_pct").
		Values(snapshot.StrategyName, snapshot.Timestamp, snapshot.RollingSharpe, snapshot.WinRate,
			snapshot.ProfitFactor, snapshot.TradeCount, snapshot.MaxDrawdownPct).
		ToSql()
	if err == nil {
		_, err = s.db.Exec(query, args...)
	}

	if err != nil {
		s.log.Warn("health snapshot write failed",
			zap.String("strategy", snapshot.StrategyName),
			zap.Error(err),
		)
	}
}
