package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/benchwatch/internal/bench"
	"github.com/ppiankov/benchwatch/internal/browser"
	"github.com/ppiankov/benchwatch/internal/config"
	"github.com/ppiankov/benchwatch/internal/mutate"
	"github.com/ppiankov/benchwatch/internal/profile"
	"github.com/ppiankov/benchwatch/internal/store"
	"github.com/ppiankov/benchwatch/internal/watcher"
)

var (
	benchURL                string
	benchBazelConfig        string
	benchInitialTimeout     int
	benchIncrementalTimeout int
	benchBrowserTimeout     int
	benchIbazel             string
	benchHarnessConfig      string
	benchResultsDB          string
	benchNotify             bool
	benchRuns               int
)

func init() {
	f := rootCmd.Flags()
	f.StringVar(&benchURL, "url", "", "Page to load in a headless browser; reload RTT is measured when set")
	f.StringVar(&benchBazelConfig, "config", "", "bazel --config name forwarded to the watcher invocation")
	f.IntVar(&benchInitialTimeout, "initial_timeout", 300, "Seconds to wait for the initial build")
	f.IntVar(&benchIncrementalTimeout, "incremental_timeout", 60, "Seconds to wait for the incremental build")
	f.IntVar(&benchBrowserTimeout, "browser_timeout", 60, "Seconds to wait for each page load")
	f.StringVar(&benchIbazel, "ibazel", "", "Path to the ibazel binary (default from harness config)")
	f.StringVar(&benchHarnessConfig, "harness_config", "", "Path to a harness settings YAML")
	f.StringVar(&benchResultsDB, "results_db", "", "SQLite file recording run history")
	f.BoolVar(&benchNotify, "notify", false, "Wake the log scan on fsnotify events instead of the next tick")
	f.IntVar(&benchRuns, "runs", 1, "Number of benchmark sequences to run")
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	target, modifyFile := args[0], args[1]

	cfg, err := config.Load(benchHarnessConfig)
	if err != nil {
		return err
	}
	if benchIbazel != "" {
		cfg.IbazelPath = benchIbazel
	}
	if benchNotify {
		cfg.Notify = true
	}
	if benchResultsDB != "" {
		cfg.ResultsDB = benchResultsDB
	}

	var history *store.Store
	if cfg.ResultsDB != "" {
		history, err = store.Open(cfg.ResultsDB)
		if err != nil {
			return err
		}
		defer func() { _ = history.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs := benchRuns
	if runs < 1 {
		runs = 1
	}
	for i := 0; i < runs; i++ {
		if err := runOnce(ctx, cfg, target, modifyFile, history); err != nil {
			return err
		}
	}
	return nil
}

// runOnce performs one full benchmark sequence against a fresh watcher
// subprocess and a fresh profile log.
func runOnce(ctx context.Context, cfg *config.Config, target, modifyFile string, history *store.Store) error {
	dir, err := os.MkdirTemp("", "benchwatch-")
	if err != nil {
		return fmt.Errorf("allocate profile dir: %w", err)
	}
	// The profile file itself is created by the watcher; OS temp cleanup
	// owns the directory afterwards.
	profilePath := filepath.Join(dir, "profile.jsonl")

	sup, err := watcher.Start(watcher.Config{
		Bin:         cfg.IbazelPath,
		Target:      target,
		ProfilePath: profilePath,
		BazelConfig: benchBazelConfig,
		Grace:       cfg.ShutdownGrace(),
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	go sup.Monitor(runCtx, cancel)

	opts := []profile.Option{profile.WithInterval(cfg.PollInterval())}
	if cfg.Notify {
		opts = append(opts, profile.WithNotify())
	}

	benchOpts := bench.Options{
		Target:             target,
		ModifyFile:         modifyFile,
		URL:                benchURL,
		InitialTimeout:     time.Duration(benchInitialTimeout) * time.Second,
		IncrementalTimeout: time.Duration(benchIncrementalTimeout) * time.Second,
		BrowserTimeout:     time.Duration(benchBrowserTimeout) * time.Second,
		Events:             profile.NewPoller(profilePath, opts...),
		Mutate:             mutate.AppendNewline,
		Out:                os.Stdout,
	}
	if benchURL != "" {
		b, err := browser.Launch(runCtx)
		if err != nil {
			_ = sup.Stop()
			return err
		}
		defer b.Close()
		benchOpts.Browser = b
	}

	res, runErr := bench.New(benchOpts).Run(runCtx)

	// A cancellation from the monitor carries the real failure: the
	// watcher died, not the wait.
	if runErr != nil {
		if cause := context.Cause(runCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			runErr = cause
		}
	}

	stopErr := sup.Stop()
	if runErr != nil {
		return runErr
	}
	if stopErr != nil {
		return stopErr
	}

	if history != nil {
		rec := store.Run{
			Target:        target,
			InitialMS:     res.InitialBuild.Milliseconds(),
			IncrementalMS: res.IncrementalRTT.Milliseconds(),
		}
		if res.Browsed {
			ms := res.BrowserRTT.Milliseconds()
			rec.BrowserMS = &ms
		}
		if err := history.Record(rec); err != nil {
			return err
		}
	}
	return nil
}
