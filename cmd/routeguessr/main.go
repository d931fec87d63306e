package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ramkansal/routeguessr/internal/config"
	"github.com/ramkansal/routeguessr/internal/logger"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "1.0.0"

// app is what PersistentPreRunE prepares for every subcommand.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

var (
	configFile   string
	logLevel     string
	dbDriver     string
	dbDSN        string
	requestDelay time.Duration
	callBudget   int
	fetcherMode  string

	current app
)

var rootCmd = &cobra.Command{
	Use:   "routeguessr",
	Short: "Crawl climbing areas for the route guessing game",
	Long: `routeguessr walks a climbing site's area tree.

  discover  pick one random route with a photo under an area
  build     crawl every route under an area into the database
  enrich    add descriptions and comments to stored routes
  migrate   copy a database into another backend
  serve     run the JSON API`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg.MergeFlags(config.Flags{
			RequestDelay: requestDelay,
			CallBudget:   callBudget,
			Fetcher:      fetcherMode,
			Driver:       dbDriver,
			DSN:          dbDSN,
			LogLevel:     logLevel,
		})
		if err := cfg.Validate(); err != nil {
			return err
		}

		log, err := logger.Init(cfg.LoggerConfig())
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		current = app{cfg: cfg, log: log}
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default routeguessr.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	pf.StringVar(&dbDriver, "db-driver", "", "database driver: postgres or sqlite")
	pf.StringVar(&dbDSN, "db-dsn", "", "database connection string")
	pf.DurationVar(&requestDelay, "delay", -1, "pause between requests of a build or enrich run")
	pf.IntVar(&callBudget, "budget", 0, "area pages a discovery may visit")
	pf.StringVar(&fetcherMode, "fetcher", "", "page fetcher: http or browser")

	rootCmd.AddCommand(discoverCmd(), buildCmd(), enrichCmd(), migrateCmd(), serveCmd())
}

func main() {
	enableANSI()
	if err := rootCmd.Execute(); err != nil {
		fatal("%v", err)
	}
}

// signalContext is cancelled on Ctrl+C.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	registerSignals(sig)
	go func() {
		select {
		case <-sig:
			fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!"))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// openStore opens the configured database.
func openStore() (*store.GormStore, error) {
	db := current.cfg.Database
	return store.Open(db.Driver, db.DSN, current.log)
}

// ensureScheme defaults bare hosts to https.
func ensureScheme(u string) string {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return "https://" + u
	}
	return u
}

// ---------- Utilities ----------

func clr(color, text string) string {
	codes := map[string]string{
		"red":    "\033[31m",
		"green":  "\033[32m",
		"yellow": "\033[33m",
		"cyan":   "\033[36m",
		"dim":    "\033[2m",
		"reset":  "\033[0m",
	}
	c, ok := codes[color]
	if !ok {
		return text
	}
	return c + text + codes["reset"]
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", clr("red", "ERROR:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}
