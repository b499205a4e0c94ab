package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sells-group/region-cli/internal/batch"
	"github.com/sells-group/region-cli/internal/fetcher"
)

var (
	assignPoints      string
	assignOutput      string
	assignSinks       []string
	assignConcurrency int
	assignGroupBy     string
	assignDelimiter   string
)

var assignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign a region code per layer to every point in a file",
	Long: "Streams point records (pipe-delimited text or .xlsx), locates each point in every " +
		"configured boundary layer and writes one row per point to the configured sinks.",
	Example: "  region-cli assign --points points.psv --output out.psv \\\n" +
		"    --layer sa1=data/SA1_2021.zip:SA1_CODE21 --layer lga=data/LGA_2021.shp:LGA_CODE21",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := applyAssignFlags(cmd); err != nil {
			return err
		}
		if err := cfg.Validate("assign"); err != nil {
			return err
		}

		layers, err := loadLayers(ctx, cfg.Layers, cfg.Download)
		if err != nil {
			return err
		}
		if cfg.Store.SaveLayers {
			if err := saveLayers(ctx, layers); err != nil {
				return err
			}
		}

		rows, errs, err := fetcher.OpenRecords(ctx, cfg.Points.Path, fetcher.SourceOptions{
			Delimiter: cfg.Points.DelimiterRune(),
			Sheet:     cfg.Points.Sheet,
		})
		if err != nil {
			return err
		}

		sinks, cleanup, err := openSinks(ctx, cfg.Points.Path)
		if err != nil {
			return err
		}
		defer cleanup()

		driver := batch.New(layers, batch.Options{
			IDColumn:      cfg.Points.IDColumn,
			RetiredColumn: cfg.Points.RetiredColumn,
			LonColumn:     cfg.Points.LonColumn,
			LatColumn:     cfg.Points.LatColumn,
			GroupBy:       cfg.Points.GroupBy,
			SkipZero:      cfg.Points.SkipZero,
			Concurrency:   cfg.Batch.Concurrency,
			ChunkSize:     cfg.Batch.ChunkSize,
		})

		stats, runErr := driver.Run(ctx, rows, errs, sinks)
		if err := multierr.Append(runErr, sinks.Close()); err != nil {
			return err
		}

		zap.L().Info("assignments written",
			zap.String("points", cfg.Points.Path),
			zap.Strings("sinks", cfg.Output.Sinks),
			zap.Int("written", stats.Written),
		)
		return nil
	},
}

func applyAssignFlags(cmd *cobra.Command) error {
	if err := applyLayerFlags(); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("points") {
		cfg.Points.Path = assignPoints
	}
	if flags.Changed("output") {
		cfg.Output.Path = assignOutput
	}
	if flags.Changed("sink") {
		cfg.Output.Sinks = assignSinks
	}
	if flags.Changed("concurrency") {
		cfg.Batch.Concurrency = assignConcurrency
	}
	if flags.Changed("group-by") {
		cfg.Points.GroupBy = assignGroupBy
	}
	if flags.Changed("delimiter") {
		cfg.Points.Delimiter = assignDelimiter
	}
	return nil
}

func init() {
	f := assignCmd.Flags()
	f.StringVar(&assignPoints, "points", "", "point records file (.psv, .txt, .csv or .xlsx)")
	f.StringVarP(&assignOutput, "output", "o", "", "pipe-delimited output file")
	f.StringSliceVar(&assignSinks, "sink", nil, "output sinks: psv, sqlite, postgres")
	f.IntVar(&assignConcurrency, "concurrency", 0, "classification workers (default from config)")
	f.StringVar(&assignGroupBy, "group-by", "", "column to roll up into one extra row per group")
	f.StringVar(&assignDelimiter, "delimiter", "", "input field delimiter (default |)")
	f.StringArrayVar(&layerFlags, "layer", nil, "boundary layer as name=path:field (repeatable, overrides config)")
	rootCmd.AddCommand(assignCmd)
}
