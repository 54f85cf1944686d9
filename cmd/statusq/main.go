// Command statusq queries the account status API in batch: it loads easy
// ids from a file, fans them out across a bounded worker pool, and writes
// the success and failure collections as JSON documents.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/aegistools/statusq/pkg/cache"
	"github.com/aegistools/statusq/pkg/client"
	"github.com/aegistools/statusq/pkg/config"
	"github.com/aegistools/statusq/pkg/loader"
	"github.com/aegistools/statusq/pkg/logging"
	"github.com/aegistools/statusq/pkg/pool"
	"github.com/aegistools/statusq/pkg/report"
)

const version = "0.1.0"

func main() {
	root := newRootCmd(os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the statusq command. stdout receives collections and
// the run summary; logs go to stderr.
func newRootCmd(stdout io.Writer) *cobra.Command {
	cfg := config.Default()
	var configPath, profileName string

	root := &cobra.Command{
		Use:           "statusq",
		Short:         "Batch account status query tool",
		Long:          "statusq queries the account status API for every identifier in an input file and writes ordered success and error collections.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := mergeConfig(cmd, &cfg, configPath, profileName); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cmd.Context(), cfg, stdout)
		},
	}

	flags := root.Flags()
	flags.StringVarP(&cfg.Input, "input", "i", "", "Path of input file with one easy id per line (required)")
	flags.StringVarP(&cfg.Output, "output", "o", "", "Path of the success document; prints to stdout when omitted")
	flags.StringVarP(&cfg.ErrorOutput, "error", "e", "", "Path of the error document; prints to stdout when omitted")
	flags.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Status API base URL")
	flags.StringVar(&cfg.StatusPath, "status-path", cfg.StatusPath, "Status API path under the base URL")
	flags.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "Number of pool workers")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Per-request timeout")
	flags.Float64Var(&cfg.RPS, "rps", cfg.RPS, "Outgoing requests per second, 0 = unlimited")
	flags.IntVar(&cfg.Burst, "burst", cfg.Burst, "Rate limiter burst size")
	flags.BoolVarP(&cfg.Progress, "progress", "s", cfg.Progress, "Show a progress bar")
	flags.StringVar(&cfg.CacheRedis, "cache-redis", cfg.CacheRedis, "Redis address for the payload cache, empty = disabled")
	flags.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Payload cache TTL")
	flags.StringVar(&cfg.PDFPath, "pdf", cfg.PDFPath, "Path for an optional PDF summary report")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log level (debug, info, warn, error)")
	flags.BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "Colored console logging")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Address to serve Prometheus metrics during the run, empty = disabled")
	flags.StringVar(&configPath, "config", config.DefaultFilePath(), "Path of the YAML config file")
	flags.StringVar(&profileName, "profile", "", "Config profile name")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the statusq version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(stdout, "statusq", version)
		},
	})

	return root
}

// mergeConfig resolves the final configuration: flags beat environment
// variables, which beat the profile file, which beats defaults.
func mergeConfig(cmd *cobra.Command, cfg *config.Config, configPath, profileName string) error {
	file, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	base := config.Default()
	if err := base.Apply(file.Resolve(profileName)); err != nil {
		return err
	}

	flags := cmd.Flags()
	if !flags.Changed("endpoint") {
		cfg.Endpoint = envString("STATUSQ_ENDPOINT", base.Endpoint)
	}
	if !flags.Changed("status-path") {
		cfg.StatusPath = envString("STATUSQ_STATUS_PATH", base.StatusPath)
	}
	if !flags.Changed("workers") {
		cfg.Workers = envInt("STATUSQ_WORKERS", base.Workers)
	}
	if !flags.Changed("timeout") {
		cfg.Timeout = base.Timeout
	}
	if !flags.Changed("rps") {
		cfg.RPS = base.RPS
	}
	if !flags.Changed("burst") {
		cfg.Burst = base.Burst
	}
	if !flags.Changed("cache-redis") {
		cfg.CacheRedis = envString("STATUSQ_CACHE_REDIS", base.CacheRedis)
	}
	if !flags.Changed("cache-ttl") {
		cfg.CacheTTL = base.CacheTTL
	}
	if !flags.Changed("log-level") {
		cfg.LogLevel = envString("STATUSQ_LOG_LEVEL", base.LogLevel)
	}
	if !flags.Changed("pretty") {
		cfg.Pretty = base.Pretty
	}
	return nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// runBatch executes one batch run end to end. Per-identifier failures are
// data in the error document; only setup failures return an error.
func runBatch(ctx context.Context, cfg config.Config, stdout io.Writer) error {
	start := time.Now()

	logger := logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.Pretty,
	})

	requestURL, err := cfg.RequestURL()
	if err != nil {
		return err
	}
	logger.Info().
		Str("request_url", requestURL).
		Int("workers", cfg.Workers).
		Msg("Starting batch run")

	if err := preflight(ctx, cfg, requestURL); err != nil {
		return err
	}

	items, err := loader.LoadFile(cfg.Input, logging.NewLogger("loader"))
	if err != nil {
		return err
	}

	clientCfg := client.DefaultConfig(requestURL)
	clientCfg.Timeout = cfg.Timeout
	clientCfg.CacheTTL = cfg.CacheTTL
	if cfg.CacheRedis != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.CacheRedis})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to cache redis: %w", err)
		}
		defer redisClient.Close()
		clientCfg.Cache = cache.NewManager(redisClient)
	}

	statusClient, err := client.New(clientCfg)
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

	poolCfg := pool.Config{
		Workers: cfg.Workers,
		RPS:     cfg.RPS,
		Burst:   cfg.Burst,
	}
	var bar *progressbar.ProgressBar
	if cfg.Progress {
		bar = progressbar.NewOptions(len(items),
			progressbar.OptionSetDescription("Querying account status"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		poolCfg.Progress = func() { _ = bar.Add(1) }
	}

	dispatcher, err := pool.New(statusClient, poolCfg)
	if err != nil {
		return err
	}

	final := dispatcher.Run(ctx, items)
	if bar != nil {
		_ = bar.Finish()
	}

	reporter := report.New(stdout)
	if err := reporter.Write(final, report.Options{
		OutputPath: cfg.Output,
		ErrorPath:  cfg.ErrorOutput,
		PDFPath:    cfg.PDFPath,
	}); err != nil {
		return err
	}
	reporter.Summary(final, time.Since(start))

	return nil
}

// preflight surfaces fatal setup errors before any work item is dispatched:
// unreadable input, unwritable output locations, unreachable endpoint.
func preflight(ctx context.Context, cfg config.Config, requestURL string) error {
	if _, err := os.Stat(cfg.Input); err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	for _, path := range []string{cfg.Output, cfg.ErrorOutput, cfg.PDFPath} {
		if path == "" {
			continue
		}
		if err := checkWritable(path); err != nil {
			return err
		}
	}

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	spin.Suffix = " probing status endpoint"
	spin.Start()
	defer spin.Stop()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	// Any HTTP response means the endpoint is reachable; only transport
	// failures are fatal here.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("status endpoint unreachable: %w", err)
	}
	resp.Body.Close()

	return nil
}

// checkWritable verifies the parent directory of an output path exists, so
// a typo fails the run before any work item is dispatched.
func checkWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s: %s is not a directory", path, dir)
	}
	return nil
}

// serveMetrics exposes the Prometheus registry for the duration of the run.
func serveMetrics(addr string, logger zerolog.Logger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}
