package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/quantfold/backtest/internal/datasource"
	"github.com/quantfold/backtest/internal/engine"
	"github.com/quantfold/backtest/internal/logger"
	"github.com/quantfold/backtest/internal/metrics"
	"github.com/quantfold/backtest/internal/optimizer"
	"github.com/quantfold/backtest/internal/store"
	"github.com/quantfold/backtest/internal/tearsheet"
	"github.com/quantfold/backtest/internal/types"
	"github.com/quantfold/backtest/internal/validation"
)

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Simulate and statistically validate trading strategies",
		Commands: []*cli.Command{
			runCommand(),
			walkForwardCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Path to the backtest config YAML",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "bars",
			Aliases:  []string{"b"},
			Usage:    "Path to the bar history CSV",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "signals",
			Aliases:  []string{"s"},
			Usage:    "Path to the signal stream CSV",
			Required: true,
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a single backtest and print its tear sheet",
		Flags: append(dataFlags(),
			&cli.StringFlag{
				Name:  "store",
				Usage: "DuckDB path for persisting the result (omit to skip)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "File path for a YAML tear sheet export (omit to skip)",
			},
			&cli.IntFlag{
				Name:  "bootstrap-samples",
				Usage: "Bootstrap resample count for confidence intervals",
				Value: 1000,
			},
			&cli.IntFlag{
				Name:  "monte-carlo-paths",
				Usage: "Monte Carlo path count (0 disables)",
				Value: 500,
			},
		),
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	zlog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	cfg, bars, signals, err := loadInputs(cmd, zlog)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	onBar := engine.OnBarCallback(func(current, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total))
		}

		_ = bar.Set(current)
	})

	result, err := engine.New(zlog).Run(cfg, bars, signals, optional.Some(onBar))
	if err != nil {
		return err
	}

	fmt.Println()

	// Statistical layers. Undersized samples come back absent and the tear
	// sheet notes them instead of failing the run.
	result.Extended = optional.Some(metrics.Compute(result.EquityCurve, cfg.BenchmarkReturns, result.AnnualizedReturnPct))
	result.Benchmark = metrics.Compare(result.EquityCurve, cfg.BenchmarkReturns, result.TotalReturnPct)
	result.ConfidenceIntervals = validation.Bootstrap(result.Trades, int(cmd.Int("bootstrap-samples")))

	monteCarlo := validation.MonteCarlo(result.EquityCurve, int(cmd.Int("monte-carlo-paths")), 50)

	sheet := tearsheet.Build(result, monteCarlo)
	sheet.Render(os.Stdout)

	if path := cmd.String("report"); path != "" {
		out, err := sheet.YAML()
		if err != nil {
			return err
		}

		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
	}

	if path := cmd.String("store"); path != "" {
		db, err := store.Open(path, zlog)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Save(result); err != nil {
			return err
		}

		db.RecordHealth(healthSnapshot(result))

		fmt.Printf("result %s saved to %s\n", result.ID, path)
	}

	return nil
}

func walkForwardCommand() *cli.Command {
	return &cli.Command{
		Name:  "walkforward",
		Usage: "Run walk-forward parameter optimization",
		Flags: append(dataFlags(),
			&cli.IntFlag{
				Name:  "folds",
				Usage: "Number of rolling train/test folds",
				Value: 3,
			},
			&cli.FloatSliceFlag{
				Name:  "confidence-grid",
				Usage: "Candidate confidence thresholds",
			},
			&cli.FloatSliceFlag{
				Name:  "size-grid",
				Usage: "Candidate position size fractions",
			},
			&cli.FloatSliceFlag{
				Name:  "stop-grid",
				Usage: "Candidate stop-loss fractions",
			},
			&cli.FloatSliceFlag{
				Name:  "target-grid",
				Usage: "Candidate take-profit fractions",
			},
			&cli.StringFlag{
				Name:  "output",
				Usage: "File path for the JSON result (omit to skip)",
			},
		),
		Action: walkForwardAction,
	}
}

func walkForwardAction(ctx context.Context, cmd *cli.Command) error {
	zlog, err := logger.NewLogger()
	if err != nil {
		return err
	}

	cfg, bars, signals, err := loadInputs(cmd, zlog)
	if err != nil {
		return err
	}

	folds, err := optimizer.SplitFolds(cfg.StartDate, cfg.EndDate, int(cmd.Int("folds")))
	if err != nil {
		return err
	}

	space := optimizer.ParamSpace{
		ConfidenceThresholds: cmd.FloatSlice("confidence-grid"),
		PositionSizePcts:     cmd.FloatSlice("size-grid"),
		StopLossPcts:         cmd.FloatSlice("stop-grid"),
		TakeProfitPcts:       cmd.FloatSlice("target-grid"),
	}

	opt := optimizer.New(engine.New(zlog), zlog)

	result, err := opt.Optimize(cfg, bars, signals, folds, space)
	if err != nil {
		return err
	}

	fmt.Printf("folds: %d\n", len(result.Folds))
	fmt.Printf("avg in-sample return: %.2f%%\n", result.AvgInSampleReturnPct)
	fmt.Printf("avg out-of-sample return: %.2f%%\n", result.AvgOutOfSampleReturnPct)
	fmt.Printf("overfitting ratio: %s\n", result.OverfittingRatio)
	fmt.Printf("out-of-sample win rate: %.1f%%\n", result.OutOfSampleWinRate*100)
	fmt.Printf("mean out-of-sample sharpe: %.3f\n", result.MeanOutOfSampleSharpe)
	fmt.Printf("final capital: %s\n", result.FinalCapital)

	if path := cmd.String("output"); path != "" {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}

		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
	}

	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema of the backtest config",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			var cfg types.BacktestConfig

			schema, err := cfg.GenerateSchemaJSON()
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}

// loadInputs reads the config YAML and the bar/signal CSVs named by the
// shared data flags.
func loadInputs(cmd *cli.Command, zlog *logger.Logger) (types.BacktestConfig, map[string][]types.HistoricalBar, []types.Signal, error) {
	var cfg types.BacktestConfig

	raw, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return cfg, nil, nil, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, nil, nil, err
	}

	source, err := datasource.NewCSVSource(zlog)
	if err != nil {
		return cfg, nil, nil, err
	}
	defer source.Close()

	bars, err := source.LoadBars(cmd.String("bars"))
	if err != nil {
		return cfg, nil, nil, err
	}

	signals, err := source.LoadSignals(cmd.String("signals"))
	if err != nil {
		return cfg, nil, nil, err
	}

	return cfg, bars, signals, nil
}

func healthSnapshot(result *types.BacktestResult) types.HealthSnapshot {
	snapshot := types.HealthSnapshot{
		StrategyName:   result.Config.StrategyName,
		Timestamp:      time.Now().UTC(),
		RollingSharpe:  result.SharpeRatio,
		WinRate:        result.WinRate,
		ProfitFactor:   result.ProfitFactor.Float64(),
		TradeCount:     result.TotalTrades,
		MaxDrawdownPct: result.MaxDrawdownPct,
	}

	if ext, err := result.Extended.Take(); err == nil && len(ext.RollingSharpe) > 0 {
		snapshot.RollingSharpe = ext.RollingSharpe[len(ext.RollingSharpe)-1].Sharpe
	}

	return snapshot
}
