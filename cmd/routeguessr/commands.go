package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ramkansal/routeguessr/internal/crawler"
	"github.com/ramkansal/routeguessr/internal/jobs"
	"github.com/ramkansal/routeguessr/internal/output"
	"github.com/ramkansal/routeguessr/internal/server"
	"github.com/ramkansal/routeguessr/internal/store"
	"github.com/ramkansal/routeguessr/pkg/plugin"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func discoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "discover <area-url>",
		Short: "Pick one random route with a photo under an area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			cfg := current.cfg.CrawlerConfig()
			c := crawler.New(cfg, crawler.NewFetcher(cfg, current.log), nil, current.log)
			defer c.Close()

			d, err := c.Discover(ctx, ensureScheme(args[0]))
			if errors.Is(err, crawler.ErrNoRouteDiscovered) {
				fmt.Fprintf(os.Stderr, "  %s no route with a photo found within %d area pages\n", clr("yellow", "!"), cfg.CallBudget)
				return err
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		},
	}
}

func buildCmd() *cobra.Command {
	var reportPath string
	cmd := &cobra.Command{
		Use:   "build <area-url>",
		Short: "Crawl every route under an area into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := current.cfg.CrawlerConfig()
			events := make(chan plugin.CrawlEvent, 1000)
			c := crawler.New(cfg, crawler.NewFetcher(cfg, current.log), st, current.log, crawler.WithEvents(events))
			defer c.Close()

			root := ensureScheme(args[0])
			fmt.Fprintf(os.Stderr, "\n  %s %s\n  %s %s  %s %s\n\n",
				clr("cyan", "Root:"), root,
				clr("dim", "Delay:"), cfg.RequestDelay,
				clr("dim", "Fetcher:"), string(cfg.FetcherMode),
			)

			var report *output.TextWriter
			if reportPath != "" {
				report = output.NewTextWriter(reportPath)
			}
			done := make(chan struct{})
			go func() {
				defer close(done)
				showProgress(events, report)
			}()

			sum, err := c.Build(ctx, root)
			close(events)
			<-done
			if err != nil {
				return err
			}

			printSummary(sum)
			if report != nil {
				if err := report.Finalize(sum); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Fprintf(os.Stderr, "    Output: %s\n\n", clr("green", reportPath))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&reportPath, "report", "o", "", "write a plain text build report to this file")
	return cmd
}

// showProgress drives a spinner from build events until the channel closes.
func showProgress(events <-chan plugin.CrawlEvent, report *output.TextWriter) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("routes"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	for e := range events {
		if report != nil {
			report.WriteEvent(e)
		}
		switch e.Type {
		case plugin.EventRoutePersisted, plugin.EventRouteSkipped, plugin.EventRouteFailed:
			_ = bar.Add(1)
		case plugin.EventAreaVisited:
			bar.Describe("routes " + clr("dim", e.URL))
		}
	}
}

func printSummary(s *plugin.BuildSummary) {
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  %s\n", strings.Repeat("─", 50))
	fmt.Fprintf(os.Stderr, "  %s Build complete: %s\n", clr("green", "✓"), s.AreaName)
	fmt.Fprintf(os.Stderr, "    Areas:  %s visited, %d leaves\n", clr("cyan", fmt.Sprint(s.AreasVisited)), s.LeavesVisited)
	fmt.Fprintf(os.Stderr, "    Routes: %s stored, %s skipped, %s failed\n",
		clr("cyan", fmt.Sprint(s.RoutesPersisted)),
		clr("yellow", fmt.Sprint(s.RoutesSkipped)),
		clr("red", fmt.Sprint(s.RoutesFailed)),
	)
	fmt.Fprintf(os.Stderr, "    Images: %s stored in %s\n", clr("cyan", fmt.Sprint(s.ImagesPersisted)), output.FmtDur(s.Duration))
	fmt.Fprintln(os.Stderr)
}

func enrichCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Add descriptions and comments to stored routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := current.cfg.CrawlerConfig()
			if limit > 0 {
				cfg.EnrichLimit = limit
			}
			c := crawler.New(cfg, crawler.NewFetcher(cfg, current.log), st, current.log)
			defer c.Close()

			sum, err := c.Enrich(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "  %s %d routes: %d described, %d comments, %s failed\n",
				clr("green", "✓"), sum.Routes, sum.Details, sum.Comments, clr("red", fmt.Sprint(sum.Failed)))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "routes to enrich in this run (0 for all)")
	return cmd
}

func migrateCmd() *cobra.Command {
	var fromDriver, fromDSN, toDriver, toDSN string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy every area, route and image from one database to another",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			src, err := store.Open(fromDriver, fromDSN, current.log)
			if err != nil {
				return fmt.Errorf("source: %w", err)
			}
			defer src.Close()

			if toDriver == "" {
				toDriver, toDSN = current.cfg.Database.Driver, current.cfg.Database.DSN
			}
			dst, err := store.Open(toDriver, toDSN, current.log)
			if err != nil {
				return fmt.Errorf("destination: %w", err)
			}
			defer dst.Close()

			sum, err := store.Migrate(ctx, src, dst, current.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "  %s %d areas, %d routes, %d images, %d details, %d comments copied, %s orphans skipped\n",
				clr("green", "✓"), sum.Areas, sum.Routes, sum.Images, sum.Details, sum.Comments,
				clr("yellow", fmt.Sprint(sum.Orphans)))
			return nil
		},
	}
	cmd.Flags().StringVar(&fromDriver, "from-driver", "sqlite", "source driver")
	cmd.Flags().StringVar(&fromDSN, "from-dsn", "", "source connection string")
	cmd.Flags().StringVar(&toDriver, "to-driver", "", "destination driver (default: configured database)")
	cmd.Flags().StringVar(&toDSN, "to-dsn", "", "destination connection string")
	_ = cmd.MarkFlagRequired("from-dsn")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			st, err := openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cfg := current.cfg.CrawlerConfig()
			c := crawler.New(cfg, crawler.NewFetcher(cfg, current.log), st, current.log)
			defer c.Close()

			reg := jobs.NewRegistry(ctx, current.log)
			defer func() {
				cancel()
				reg.Wait()
			}()

			if addr == "" {
				addr = current.cfg.Server.Addr
			}
			return server.New(c, c, reg, st, current.log).Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
