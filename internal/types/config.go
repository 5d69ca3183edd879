package types

import (
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/quantfold/backtest/internal/engine/impact"
	"github.com/quantfold/backtest/pkg/errors"
)

// AllocationMode selects how capital is split across instruments in a
// multi-symbol backtest.
type AllocationMode string

const (
	AllocationEqualWeight AllocationMode = "equal_weight"
	AllocationCustom      AllocationMode = "custom"
)

// Allocation configures multi-symbol capital allocation. Weights are only
// consulted in custom mode and must be non-negative and sum close to 1.0;
// the engine does not renormalize on the caller's behalf.
type Allocation struct {
	Mode    AllocationMode     `yaml:"mode" json:"mode" jsonschema:"title=Allocation Mode,enum=equal_weight,enum=custom"`
	Weights map[string]float64 `yaml:"weights,omitempty" json:"weights,omitempty" jsonschema:"title=Per-Symbol Weights"`
}

// BacktestConfig is the full configuration of one backtest run.
type BacktestConfig struct {
	StrategyName   string          `yaml:"strategy_name" json:"strategy_name" jsonschema:"title=Strategy Name" validate:"required"`
	Symbols        []string        `yaml:"symbols" json:"symbols" jsonschema:"title=Symbols,description=Instruments to simulate" validate:"required,min=1,dive,required"`
	StartDate      time.Time       `yaml:"start_date" json:"start_date" jsonschema:"title=Start Date"`
	EndDate        time.Time       `yaml:"end_date" json:"end_date" jsonschema:"title=End Date"`
	InitialCapital decimal.Decimal `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting capital in account currency"`

	// PositionSizePct is the fraction of current equity committed per position.
	PositionSizePct float64 `yaml:"position_size_pct" json:"position_size_pct" jsonschema:"title=Position Size Percent,minimum=0,maximum=1" validate:"gt=0,lte=1"`
	// ConfidenceThreshold filters out signals below this confidence.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold" jsonschema:"title=Confidence Threshold,minimum=0,maximum=1" validate:"gte=0,lte=1"`

	StopLossPct   optional.Option[float64] `yaml:"stop_loss_pct,omitempty" json:"stop_loss_pct,omitempty" jsonschema:"title=Stop Loss Percent"`
	TakeProfitPct optional.Option[float64] `yaml:"take_profit_pct,omitempty" json:"take_profit_pct,omitempty" jsonschema:"title=Take Profit Percent"`

	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" jsonschema:"title=Commission Rate" validate:"gte=0"`
	SlippageRate   float64 `yaml:"slippage_rate" json:"slippage_rate" jsonschema:"title=Slippage Rate" validate:"gte=0"`

	// BenchmarkReturns is an optional series of benchmark daily returns
	// aligned to the simulated date range, used for beta/alpha.
	BenchmarkReturns []float64 `yaml:"benchmark_returns,omitempty" json:"benchmark_returns,omitempty" jsonschema:"title=Benchmark Daily Returns"`

	Allocation            optional.Option[Allocation] `yaml:"allocation,omitempty" json:"allocation,omitempty" jsonschema:"title=Allocation Strategy"`
	RebalanceIntervalDays optional.Option[int]        `yaml:"rebalance_interval_days,omitempty" json:"rebalance_interval_days,omitempty" jsonschema:"title=Rebalance Interval (trading days)"`

	Impact impact.Config `yaml:"impact" json:"impact" jsonschema:"title=Market Impact Model"`
}

// DefaultConfig returns a configuration with sensible engine defaults; the
// caller still has to fill in strategy name, symbols and date range.
func DefaultConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital:      decimal.NewFromInt(100_000),
		PositionSizePct:     0.1,
		ConfidenceThreshold: 0.5,
		CommissionRate:      0.001,
		SlippageRate:        0.0005,
		Impact:              impact.DefaultConfig(),
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the cross-field invariants that
// struct tags cannot express.
func (c *BacktestConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if !c.EndDate.After(c.StartDate) {
		return errors.Newf(errors.ErrCodeInvalidDateRange, "end date %s is not after start date %s",
			c.EndDate.Format(time.DateOnly), c.StartDate.Format(time.DateOnly))
	}

	if c.InitialCapital.LessThanOrEqual(decimal.Zero) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "initial capital must be positive")
	}

	if sl, err := c.StopLossPct.Take(); err == nil && (sl <= 0 || sl >= 1) {
		return errors.Newf(errors.ErrCodeInvalidStopLoss, "stop loss pct %f must be in (0, 1)", sl)
	}

	if tp, err := c.TakeProfitPct.Take(); err == nil && tp <= 0 {
		return errors.Newf(errors.ErrCodeInvalidTakeProfit, "take profit pct %f must be positive", tp)
	}

	if alloc, err := c.Allocation.Take(); err == nil && alloc.Mode == AllocationCustom {
		sum := 0.0

		for symbol, w := range alloc.Weights {
			if w < 0 {
				return errors.Newf(errors.ErrCodeInvalidWeights, "weight for %s is negative", symbol)
			}

			sum += w
		}

		if math.Abs(sum-1.0) > 0.05 {
			return errors.Newf(errors.ErrCodeInvalidWeights, "custom weights sum to %.4f, expected ~1.0", sum)
		}
	}

	return nil
}

// UnmarshalYAML implements custom unmarshaling so plain YAML scalars map
// onto the optional fields.
func (c *BacktestConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		StrategyName          string             `yaml:"strategy_name"`
		Symbols               []string           `yaml:"symbols"`
		StartDate             time.Time          `yaml:"start_date"`
		EndDate               time.Time          `yaml:"end_date"`
		InitialCapital        decimal.Decimal    `yaml:"initial_capital"`
		PositionSizePct       float64            `yaml:"position_size_pct"`
		ConfidenceThreshold   float64            `yaml:"confidence_threshold"`
		StopLossPct           *float64           `yaml:"stop_loss_pct"`
		TakeProfitPct         *float64           `yaml:"take_profit_pct"`
		CommissionRate        float64            `yaml:"commission_rate"`
		SlippageRate          float64            `yaml:"slippage_rate"`
		BenchmarkReturns      []float64          `yaml:"benchmark_returns"`
		AllocationMode        string             `yaml:"allocation_mode"`
		AllocationWeights     map[string]float64 `yaml:"allocation_weights"`
		RebalanceIntervalDays *int               `yaml:"rebalance_interval_days"`
		Impact                *impact.Config     `yaml:"impact"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	c.StrategyName = raw.StrategyName
	c.Symbols = raw.Symbols
	c.StartDate = raw.StartDate
	c.EndDate = raw.EndDate
	c.InitialCapital = raw.InitialCapital
	c.PositionSizePct = raw.PositionSizePct
	c.ConfidenceThreshold = raw.ConfidenceThreshold
	c.CommissionRate = raw.CommissionRate
	c.SlippageRate = raw.SlippageRate
	c.BenchmarkReturns = raw.BenchmarkReturns

	if raw.StopLossPct != nil {
		c.StopLossPct = optional.Some(*raw.StopLossPct)
	}

	if raw.TakeProfitPct != nil {
		c.TakeProfitPct = optional.Some(*raw.TakeProfitPct)
	}

	if raw.AllocationMode != "" {
		c.Allocation = optional.Some(Allocation{
			Mode:    AllocationMode(raw.AllocationMode),
			Weights: raw.AllocationWeights,
		})
	}

	if raw.RebalanceIntervalDays != nil {
		c.RebalanceIntervalDays = optional.Some(*raw.RebalanceIntervalDays)
	}

	if raw.Impact != nil {
		c.Impact = *raw.Impact
	} else {
		c.Impact = impact.DefaultConfig()
	}

	return nil
}

// GenerateSchema generates a JSON schema for the BacktestConfig.
func (c *BacktestConfig) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			name := t.String()

			switch {
			case strings.HasPrefix(name, "optional.Option[float64]"):
				return &jsonschema.Schema{Type: "number"}
			case strings.HasPrefix(name, "optional.Option[int]"):
				return &jsonschema.Schema{Type: "integer"}
			case name == "decimal.Decimal":
				return &jsonschema.Schema{Type: "string", Description: "decimal number"}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the BacktestConfig.
func (c *BacktestConfig) GenerateSchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(c.GenerateSchema(), "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeEncodeFailed, "failed to marshal config schema", err)
	}

	return string(schemaBytes), nil
}
