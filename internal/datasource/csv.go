// Package datasource loads historical bars and signal streams from CSV
// files through an embedded DuckDB instance, which handles parsing, type
// inference, and date ordering in SQL instead of hand-rolled readers.
package datasource

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/pkg/errors"
)

// CSVSource reads bar and signal CSVs via DuckDB's read_csv.
type CSVSource struct {
	db  *sql.DB
	log *logger.Logger
}

// NewCSVSource creates an in-memory DuckDB session for CSV loading.
func NewCSVSource(log *logger.Logger) (*CSVSource, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "open duckdb session", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "connect to duckdb session", err)
	}

	return &CSVSource{
		db:  db,
		log: log,
	}, nil
}

// Close releases the session.
func (c *CSVSource) Close() error {
	return c.db.Close()
}

// LoadBars reads a bar CSV with columns symbol, date, open, high, low,
// close, volume and returns per-symbol histories ordered ascending by date.
func (c *CSVSource) LoadBars(path string) (map[string][]types.HistoricalBar, error) {
	c.log.Debug("loading bars", zap.String("path", path))

	// read_csv takes the path as a literal, not a placeholder.
	query := fmt.Sprintf(`
		SELECT symbol, date, open, high, low, close, volume
		FROM read_csv(%s, header = true)
		ORDER BY symbol, date
	`, quoteLiteral(path))

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "read bar csv %s", path)
	}
	defer rows.Close()

	out := make(map[string][]types.HistoricalBar)

	for rows.Next() {
		var (
			symbol                     string
			date                       time.Time
			open, high, low, lastPrice float64
			volume                     float64
		)

		if err := rows.Scan(&symbol, &date, &open, &high, &low, &lastPrice, &volume); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "scan bar row in %s", path)
		}

		out[symbol] = append(out[symbol], types.HistoricalBar{
			Date:   date.UTC(),
			Open:   decimal.NewFromFloat(open),
			High:   decimal.NewFromFloat(high),
			Low:    decimal.NewFromFloat(low),
			Close:  decimal.NewFromFloat(lastPrice),
			Volume: volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "iterate bar rows in %s", path)
	}

	if len(out) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoData, "bar csv %s contains no rows", path)
	}

	return out, nil
}

// LoadSignals reads a signal CSV with columns date, symbol, direction,
// confidence, price, rationale, ordered ascending by date. Direction
// accepts the usual buy/long and sell/short spellings.
func (c *CSVSource) LoadSignals(path string) ([]types.Signal, error) {
	c.log.Debug("loading signals", zap.String("path", path))

	query := fmt.Sprintf(`
		SELECT date, symbol, direction, confidence, price, rationale
		FROM read_csv(%s, header = true)
		ORDER BY date
	`, quoteLiteral(path))

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "read signal csv %s", path)
	}
	defer rows.Close()

	var out []types.Signal

	for rows.Next() {
		var (
			date              time.Time
			symbol, direction string
			confidence, price float64
			rationale         sql.NullString
		)

		if err := rows.Scan(&date, &symbol, &direction, &confidence, &price, &rationale); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "scan signal row in %s", path)
		}

		parsed, err := types.ParseDirection(direction)
		if err != nil {
			return nil, err
		}

		out = append(out, types.Signal{
			Date:       date.UTC(),
			Symbol:     symbol,
			Direction:  parsed,
			Confidence: confidence,
			Price:      decimal.NewFromFloat(price),
			Rationale:  rationale.String,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataParseFailed, err, "iterate signal rows in %s", path)
	}

	return out, nil
}

// quoteLiteral escapes a string for embedding as a SQL literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
