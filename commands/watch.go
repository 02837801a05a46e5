package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/penwyp/go-optima-rum/internal/agent"
	"github.com/penwyp/go-optima-rum/internal/data/scanner"
	"github.com/penwyp/go-optima-rum/internal/util"
)

var (
	// Stream intake flags
	watchReadExisting bool

	// Status reporting flags
	watchStatusInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail live signal streams and ship payloads continuously",
	Long: `Watches the stream directory for appended JSONL lines and feeds them
through the engine as they arrive. Views complete when the stream says so
(route changes, unload) or when activity goes stale.

Stops cleanly on SIGINT/SIGTERM after flushing any queued payloads.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchReadExisting, "read-existing", false,
		"Replay existing file contents before tailing")
	watchCmd.Flags().DurationVar(&watchStatusInterval, "status-interval", time.Minute,
		"How often to log engine status (0 = never)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	initLogging()

	w, err := scanner.NewStreamWatcher(expandPath(streamDir), watchReadExisting)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", streamDir, err)
	}
	defer w.Close()

	eng := agent.New(buildConfig())
	if err := eng.Execute(agent.Command{Name: agent.CmdInit}); err != nil {
		return err
	}
	defer eng.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		util.LogInfo("Shutting down")
		cancel()
	}()

	if watchStatusInterval > 0 {
		go logStatus(ctx, eng)
	}

	eng.Run(ctx, w.Signals())
	printStatus(eng)
	return nil
}

func logStatus(ctx context.Context, eng *agent.Orchestrator) {
	ticker := time.NewTicker(watchStatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := eng.GetStatus()
			util.LogInfof("status: view=%s type=%s history=%d sent=%d/%d dropped=%d",
				st.ActiveViewID, st.ViewType, st.ViewHistory,
				st.SentImmediate, st.SentBatched, st.Dropped)
		}
	}
}
