package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-optima-rum/internal/agent"
	"github.com/penwyp/go-optima-rum/internal/core/model"
	"github.com/penwyp/go-optima-rum/internal/data/parser"
	"github.com/penwyp/go-optima-rum/internal/data/scanner"
	"github.com/penwyp/go-optima-rum/internal/util"
)

var (
	// Logging related
	debug bool

	// Collector connection
	apiKey   string
	endpoint string

	// Signal stream input
	streamDir string

	// Session behavior
	sampleRate   int
	initialURL   string
	exclusions   []string
	noRouteTrack bool
	noContinuous bool

	// Delivery tuning
	batchSize    int
	batchTimeout time.Duration

	// Replay behavior
	dryRun bool

	rootCmd = &cobra.Command{
		Use:   "go-optima-rum [flags]",
		Short: "Real user monitoring collection engine",
		Long: `go-optima-rum replays browser signal streams through the monitoring
engine and ships the resulting view payloads to an Optima collector.

The engine consumes JSONL signal streams produced by the browser bridge,
tracks view lifecycles and route changes, attributes web vitals and
resources to views, and delivers payloads with an immediate-vs-batched
policy.

Examples:
  go-optima-rum --dir /var/optima/streams --api-key KEY      # Replay recorded streams
  go-optima-rum --dir ./streams --dry-run                    # Replay without sending
  go-optima-rum watch --dir /var/optima/streams --api-key KEY # Tail live streams`,
		RunE: runReplay,
	}
)

const defaultLogFile = "~/.go-optima-rum/logs/app.log"

func init() {
	// Input data configuration
	rootCmd.PersistentFlags().StringVar(&streamDir, "dir", ".",
		"Signal stream directory (JSONL files)")

	// Collector connection
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "",
		"Collector API key (engine disables itself without one)")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "",
		"Collector endpoint base URL")

	// Session behavior
	rootCmd.PersistentFlags().IntVar(&sampleRate, "sample-rate", 100,
		"Percentage of sessions tracked (1-100)")
	rootCmd.PersistentFlags().StringVar(&initialURL, "initial-url", "",
		"Page URL at engine start (defaults to the first navigation signal)")
	rootCmd.PersistentFlags().StringSliceVar(&exclusions, "exclude", nil,
		"URL substrings excluded from resource tracking (replaces defaults)")
	rootCmd.PersistentFlags().BoolVar(&noRouteTrack, "no-route-tracking", false,
		"Disable route-change view detection")
	rootCmd.PersistentFlags().BoolVar(&noContinuous, "no-continuous", false,
		"Disable continuous metric updates")

	// Delivery tuning
	rootCmd.PersistentFlags().IntVar(&batchSize, "batch-size", 0,
		"Payloads per batch (0 = default)")
	rootCmd.PersistentFlags().DurationVar(&batchTimeout, "batch-timeout", 0,
		"Max wait before a partial batch flushes (0 = default)")

	// System and debugging
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false,
		"Enable debug mode")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"Print payloads instead of sending them")
}

func runReplay(cmd *cobra.Command, args []string) error {
	initLogging()

	files, err := scanner.ListStreamFiles(expandPath(streamDir))
	if err != nil {
		return fmt.Errorf("failed to list stream files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .jsonl stream files in %s", streamDir)
	}

	p := parser.NewParser()
	var streams [][]*model.Signal
	for _, file := range files {
		signals, err := p.ParseFile(file)
		if err != nil {
			util.LogWarnf("Skipping %s: %v", file, err)
			continue
		}
		streams = append(streams, signals)
	}
	seedInitialURL(streams)

	eng := agent.New(buildConfig())
	if err := eng.Execute(agent.Command{Name: agent.CmdInit}); err != nil {
		return err
	}
	defer eng.Shutdown()

	var total int
	for _, signals := range streams {
		for _, sig := range signals {
			eng.ProcessSignal(sig)
		}
		total += len(signals)
	}

	util.LogInfof("Replayed %d signals from %d files", total, len(files))
	printStatus(eng)
	return nil
}

func Execute() error {
	return rootCmd.Execute()
}

func buildConfig() *agent.Config {
	cfg := agent.DefaultConfig()
	cfg.APIKey = apiKey
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	cfg.SampleRate = sampleRate
	cfg.InitialURL = initialURL
	cfg.ExclusionList = exclusions
	cfg.EnableRouteChangeTracking = !noRouteTrack
	cfg.EnableContinuousMetrics = !noContinuous
	cfg.BatchSize = batchSize
	cfg.BatchTimeout = batchTimeout
	cfg.Debug = debug
	if dryRun {
		cfg.DryRunWriter = os.Stdout
	}
	return cfg
}

// seedInitialURL backfills --initial-url from the stream's first navigation
// signal so replayed sessions start on the right page.
func seedInitialURL(streams [][]*model.Signal) {
	if initialURL != "" {
		return
	}
	for _, signals := range streams {
		for _, sig := range signals {
			if sig.Type == model.SignalNavigation && sig.Navigation != nil {
				initialURL = sig.Navigation.URL
				return
			}
		}
	}
}

func printStatus(eng *agent.Orchestrator) {
	st := eng.GetStatus()
	if st.Disabled {
		fmt.Println("engine disabled (missing key or sampled out)")
		return
	}
	fmt.Printf("session %s: %d views completed, %d immediate / %d batched sent, %d dropped\n",
		st.SessionID, st.ViewHistory, st.SentImmediate, st.SentBatched, st.Dropped)
}

func initLogging() {
	logLevel := "info"
	if debug {
		logLevel = "debug"
	}
	logFile := expandPath(defaultLogFile)
	ensureDir(filepath.Dir(logFile))
	util.InitLogger(logLevel, logFile, debug)
}

// Helper functions

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
