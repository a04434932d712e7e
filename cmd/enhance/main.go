package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/enhance-goodreads-export/auth"
	"github.com/aluiziolira/enhance-goodreads-export/config"
	"github.com/aluiziolira/enhance-goodreads-export/enhance"
	"github.com/aluiziolira/enhance-goodreads-export/fetch"
	"github.com/aluiziolira/enhance-goodreads-export/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defaultCfg := config.DefaultConfig()
	csvDefault := ""
	if value, ok := config.EnvString("ENHANCE_CSV"); ok {
		csvDefault = value
	}
	emailDefault := ""
	if value, ok := config.EnvString("ENHANCE_EMAIL"); ok {
		emailDefault = value
	}
	passwordDefault := ""
	if value, ok := config.EnvString("ENHANCE_PASSWORD"); ok {
		passwordDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("ENHANCE_METRICS_ADDR"); ok {
		metricsDefault = value
	}
	retriesDefault := defaultCfg.MaxRetries
	if value, ok, err := config.EnvInt("ENHANCE_MAX_RETRIES"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid ENHANCE_MAX_RETRIES: %v\n", err)
		os.Exit(1)
	} else if ok {
		retriesDefault = value
	}

	csvPath := flag.String("csv", csvDefault, "Goodreads export CSV to enhance (updated in place)")
	updatePath := flag.String("update", "", "Previously enhanced CSV to carry derived fields forward from")
	force := flag.Bool("force", false, "Reprocess every row, even ones that already have derived fields")
	ignoreErrors := flag.Bool("ignore-errors", false, "Log per-book errors and continue instead of aborting")
	genreVotes := flag.String("genre-votes", "", "Minimum shelf votes for a genre, absolute (\"10\") or relative (\"25%\")")
	email := flag.String("email", emailDefault, "Account email for the credential sign-in flow")
	password := flag.String("password", passwordDefault, "Account password for the credential sign-in flow")
	browserLogin := flag.Bool("browser-login", false, "Sign in through a visible browser window instead of credentials")
	timeoutMs := flag.Int("timeout", int(defaultCfg.Timeout/time.Millisecond), "Per-request timeout (milliseconds)")
	maxRetries := flag.Int("max-retries", retriesDefault, "Maximum retry attempts per page")
	retryBackoffMs := flag.Int("retry-backoff", int(defaultCfg.RetryBackoff/time.Millisecond), "Initial retry backoff (milliseconds)")
	retryBackoffMaxMs := flag.Int("retry-backoff-max", int(defaultCfg.RetryBackoffMax/time.Millisecond), "Maximum retry backoff (milliseconds)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.CSVPath = *csvPath
	cfg.UpdatePath = *updatePath
	cfg.Force = *force
	cfg.IgnoreErrors = *ignoreErrors
	cfg.Email = *email
	cfg.Password = *password
	cfg.BrowserLogin = *browserLogin
	cfg.Timeout = time.Duration(*timeoutMs) * time.Millisecond
	cfg.MaxRetries = *maxRetries
	cfg.RetryBackoff = time.Duration(*retryBackoffMs) * time.Millisecond
	cfg.RetryBackoffMax = time.Duration(*retryBackoffMaxMs) * time.Millisecond
	cfg.MetricsAddr = *metricsAddr
	cfg.Verbose = *verbose
	if *genreVotes != "" {
		if err := cfg.SetGenreVotes(*genreVotes); err != nil {
			slog.Error("invalid -genre-votes", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, finishing the current book")
	}()

	sess, err := login(ctx, cfg)
	if err != nil {
		slog.Error("sign-in failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("signed in", slog.String("user_agent", sess.UserAgent))

	fetcher, err := fetch.New(cfg, sess)
	if err != nil {
		slog.Error("initialising fetcher", slog.Any("error", err))
		os.Exit(1)
	}

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" && fetcher.Metrics != nil {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(fetcher.Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	result, err := enhance.New(cfg, fetcher).Run(ctx)
	if err != nil {
		slog.Error("enhancement failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(result, cfg.CSVPath)
}

func login(ctx context.Context, cfg *config.Config) (*auth.Session, error) {
	if cfg.BrowserLogin {
		return auth.NewBrowserFlow(cfg, nil).Login(ctx)
	}
	flow, err := auth.NewCredentialFlow(cfg, nil)
	if err != nil {
		return nil, err
	}
	return flow.Login(ctx)
}

func printSummary(result *models.EnhanceResult, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Enhancement complete")
	fmt.Printf("  Total rows:      %d\n", result.TotalRecords)
	fmt.Printf("  Enhanced:        %d\n", result.Processed)
	fmt.Printf("  Carried forward: %d\n", result.CarriedForward)
	fmt.Printf("  Skipped:         %d\n", result.Skipped)
	fmt.Printf("  Failed:          %d\n", result.Failed)
	if len(result.FailedBookIDs) > 0 {
		fmt.Printf("  Failed books:    %v\n", result.FailedBookIDs)
	}
	fmt.Printf("  Fetches:         %d\n", result.FetchCount)
	fmt.Printf("  Retries:         %d\n", result.RetryCount)
	fmt.Printf("  Checkpoints:     %d\n", result.Checkpoints)
	fmt.Printf("  Duration:        %v\n", result.Duration())
	fmt.Printf("  Output file:     %s\n", outputFile)
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
