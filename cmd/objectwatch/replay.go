package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"objectwatch/internal/monitor"
	"objectwatch/internal/report"
	"objectwatch/internal/store"
	"objectwatch/internal/timeutil"
	"objectwatch/internal/track"
)

var (
	replayInput    string
	replaySpeed    float64
	replayOutput   string
	replayChart    string
	replayStore    string
	replayExternal bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded detector frames through the tracker",
	Long: "replay feeds frames recorded with watch --record back through a fresh tracker, " +
		"paced by their timestamps, and prints a summary of the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var st *store.Store
		if replayStore != "" {
			if st, err = store.Open(replayStore); err != nil {
				return err
			}
		}
		collector := report.NewCollector(0)
		mw, cleanup, err := newWriters(cfg, writerOptions{
			Output:       replayOutput,
			Store:        st,
			Collector:    collector,
			NoExternal:   !replayExternal,
			NoStatusFile: true,
		})
		if err != nil {
			if st != nil {
				st.Close()
			}
			return err
		}
		defer cleanup()

		src, err := monitor.OpenJSONLSource(replayInput)
		if err != nil {
			return err
		}
		defer src.Close()

		tracker := track.New(cfg.Params(), track.WithTargetClass(cfg.TargetClass))
		if st != nil {
			if err := st.StartSession(ctx, tracker.SessionID(), cfg.TargetClass, time.Now()); err != nil {
				return err
			}
		}
		m := monitor.New(tracker, cfg.Filter(),
			monitor.NewReplaySource(src, replaySpeed, timeutil.RealClock{}),
			monitor.WithStatusWriter(mw),
			monitor.WithAlertWriter(mw))
		if err := m.Run(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Replay of %s (session %s)\n", replayInput, tracker.SessionID())
		if err := collector.Summary().Write(out); err != nil {
			return err
		}
		if replayChart != "" {
			f, err := os.Create(replayChart)
			if err != nil {
				return err
			}
			title := fmt.Sprintf("%s replay", cfg.TargetClass)
			if err := report.RenderTimeline(f, title, collector.Points(), collector.Alerts()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(out, "Timeline written to %s\n", replayChart)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to recorded frames (JSONL)")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays as fast as possible)")
	replayCmd.Flags().StringVar(&replayOutput, "output", outputNone, "Console output: auto, plain, color, json, none")
	replayCmd.Flags().StringVar(&replayChart, "chart", "", "Write an HTML timeline chart to this path")
	replayCmd.Flags().StringVar(&replayStore, "store", "", "Store replayed alerts in this SQLite file")
	replayCmd.Flags().BoolVar(&replayExternal, "publish", false, "Also publish to configured GreptimeDB/InfluxDB")
	replayCmd.MarkFlagRequired("input")
}
