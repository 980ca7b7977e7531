package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	vmtop "github.com/jondoveston/vmtop/internal"
	"github.com/jondoveston/vmtop/internal/config"
	"github.com/jondoveston/vmtop/internal/logging"
	"github.com/jondoveston/vmtop/internal/pipeline"
	"github.com/jondoveston/vmtop/internal/server"
	"github.com/jondoveston/vmtop/internal/source"
)

var version = "dev"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vmtop [base-url]",
	Short: "Terminal dashboard for per-VM CPU, memory and network metrics",
	Long: `vmtop lists the virtual machines reported by a metrics backend and shows
CPU, memory and network charts for the selected one.

The backend is a simulator-style HTTP API ({base}/vmlist, {base}/vminfo?name=),
a Prometheus server scraping node_exporter, or node_exporter endpoints directly.

Examples:
  vmtop http://127.0.0.1:5000
  vmtop --source prometheus --prometheus-url http://prometheus.lan:9090
  vmtop --source node_exporter --node-exporter-url http://host:9100/metrics
  VMTOP_BASE_URL=http://sim.lan:5000 vmtop snapshot
  vmtop serve --listen-addr :8080`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one fetch cycle and print the entities and chart data as JSON",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Print the backend's service snapshot as JSON",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve snapshots and selection over HTTP and websocket",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// flags maps every command line flag to its viper key.
var flags = map[string]string{
	"base-url":          "base_url",
	"resource":          "resource",
	"source":            "source",
	"timeout":           "timeout",
	"max-concurrency":   "max_concurrency",
	"refresh-interval":  "refresh_interval",
	"prometheus-url":    "prometheus_url",
	"prometheus-job":    "prometheus_job",
	"prometheus-window": "prometheus_window",
	"prometheus-step":   "prometheus_step",
	"node-exporter-url": "node_exporter_url",
	"log-level":         "log_level",
	"log-json":          "log_json",
	"log-file":          "log_file",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("base-url", "http://127.0.0.1:5000", "backend base URL")
	pf.String("resource", "vm", "resource prefix of the list and info endpoints")
	pf.String("source", source.BackendHTTP, fmt.Sprintf("backend type %v", source.Backends))
	pf.Duration("timeout", 0, "per-request timeout (default 5s)")
	pf.Int("max-concurrency", 0, "parallel metric fetches, 0 for unbounded")
	pf.Duration("refresh-interval", 0, "time between fetch cycles (default 5s)")
	pf.String("prometheus-url", "", "Prometheus server URL")
	pf.String("prometheus-job", "node_exporter", "Prometheus job scraping the hosts")
	pf.Duration("prometheus-window", 0, "history fetched from Prometheus (default 10m)")
	pf.Duration("prometheus-step", 0, "Prometheus range query step (default 15s)")
	pf.StringSlice("node-exporter-url", nil, "node_exporter metrics endpoint URLs")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("log-file", "", "log file; the dashboard only logs when this is set")
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")

	serveCmd.Flags().String("listen-addr", "127.0.0.1:8080", "HTTP listen address")

	// dashes in flags become underscores in viper
	for flag, key := range flags {
		cobra.CheckErr(viper.BindPFlag(key, pf.Lookup(flag)))
	}
	cobra.CheckErr(viper.BindPFlag("listen_addr", serveCmd.Flags().Lookup("listen-addr")))
	cobra.CheckErr(config.Setup(viper.GetViper()))

	rootCmd.AddCommand(snapshotCmd, servicesCmd, serveCmd)
}

// app is the wired pipeline shared by every command.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	fetcher    *source.Fetcher
	refresher  *pipeline.Refresher
	selection  *pipeline.Selection
	sourceName string
}

// setup loads the config and connects to the backend. quiet keeps the
// dashboard's terminal clean by only logging to a configured file.
func setup(cmd *cobra.Command, quiet bool) (*app, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(viper.GetViper(), file)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if !quiet || cfg.LogFile != "" {
		var paths []string
		if cfg.LogFile != "" {
			paths = append(paths, cfg.LogFile)
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogJSON, paths...); err != nil {
			return nil, err
		}
	}

	opts := cfg.SourceOptions()
	opts.Logger = logger
	src, name, err := source.New(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	logger.Info("using backend",
		zap.String("source", name),
		zap.String("version", version),
	)

	fetcher := source.NewFetcher(src, logger, source.NewMetrics(prometheus.DefaultRegisterer))
	return &app{
		cfg:        cfg,
		logger:     logger,
		fetcher:    fetcher,
		refresher:  pipeline.NewRefresher(fetcher, pipeline.NewStore(), cfg.MaxConcurrency, logger),
		selection:  pipeline.NewSelection(nil),
		sourceName: name,
	}, nil
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		fmt.Fprintf(cmd.OutOrStdout(), "vmtop version %s\n", version)
		return nil
	}

	// the positional argument only applies when neither the flag nor the
	// environment set a base URL
	if len(args) == 1 && !cmd.Flags().Changed("base-url") && os.Getenv("VMTOP_BASE_URL") == "" {
		viper.Set("base_url", args[0])
	}

	a, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	return vmtop.Dashboard(cmd.Context(), vmtop.Options{
		Refresher:       a.refresher,
		Selection:       a.selection,
		SourceName:      a.sourceName,
		RefreshInterval: a.cfg.RefreshInterval,
		Logger:          a.logger,
	})
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	res, err := a.refresher.Refresh(cmd.Context())
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func runServices(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	return writeJSON(cmd.OutOrStdout(), a.fetcher.Services(cmd.Context()))
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer a.logger.Sync() //nolint:errcheck

	s := server.New(server.Options{
		Refresher:       a.refresher,
		Selection:       a.selection,
		Services:        a.fetcher,
		Gatherer:        prometheus.DefaultGatherer,
		RefreshInterval: a.cfg.RefreshInterval,
		Logger:          a.logger,
	})
	return s.Run(cmd.Context(), a.cfg.ListenAddr)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
