package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketsrc/hermes/internal/app"
	"github.com/marketsrc/hermes/internal/core"
	"github.com/marketsrc/hermes/internal/logger"
)

var (
	fetchKind      string
	fetchTimeframe string
	fetchStart     string
	fetchEnd       string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbol]",
	Short: "Fetch one piece of market data through the routing stack",
	Long: `Fetch routes a single request through the configured providers,
exactly as the server would, and prints the result as JSON. News allows
an empty symbol for market-wide items.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchKind, "kind", "k", "quote", "data kind: quote, bars, or news")
	fetchCmd.Flags().StringVarP(&fetchTimeframe, "timeframe", "t", "1d", "bar interval (bars only)")
	fetchCmd.Flags().StringVar(&fetchStart, "start", "", "range start, RFC3339 (bars only)")
	fetchCmd.Flags().StringVar(&fetchEnd, "end", "", "range end, RFC3339 (bars only)")
	rootCmd.AddCommand(fetchCmd)
}

func fetchRange() (core.Range, error) {
	if fetchStart == "" && fetchEnd == "" {
		end := time.Now().UTC()
		return core.Range{Start: end.Add(-24 * time.Hour), End: end}, nil
	}
	start, err := time.Parse(time.RFC3339, fetchStart)
	if err != nil {
		return core.Range{}, fmt.Errorf("invalid --start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, fetchEnd)
	if err != nil {
		return core.Range{}, fmt.Errorf("invalid --end: %w", err)
	}
	return core.Range{Start: start, End: end}, nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	application, err := app.New(cfg, log, buildClients(cfg)...)
	if err != nil {
		return fmt.Errorf("building application: %w", err)
	}

	var symbol string
	if len(args) > 0 {
		symbol = args[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var result any
	switch core.DataKind(fetchKind) {
	case core.KindQuote:
		if symbol == "" {
			return fmt.Errorf("quote requires a symbol")
		}
		result, err = application.Router().GetQuote(ctx, symbol)
	case core.KindBars:
		if symbol == "" {
			return fmt.Errorf("bars require a symbol")
		}
		timeframe := core.Timeframe(fetchTimeframe)
		if !timeframe.IsValid() {
			return fmt.Errorf("unsupported timeframe %q", fetchTimeframe)
		}
		var rng core.Range
		if rng, err = fetchRange(); err != nil {
			return err
		}
		result, err = application.Router().GetBars(ctx, symbol, timeframe, rng)
	case core.KindNews:
		result, err = application.Router().GetNews(ctx, symbol)
	default:
		return fmt.Errorf("unknown kind %q", fetchKind)
	}
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
