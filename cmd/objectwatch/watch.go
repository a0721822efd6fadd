package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"objectwatch/internal/alert"
	"objectwatch/internal/config"
	"objectwatch/internal/logging"
	"objectwatch/internal/monitor"
	"objectwatch/internal/report"
	"objectwatch/internal/scenario"
	"objectwatch/internal/scene"
	"objectwatch/internal/server"
	"objectwatch/internal/store"
	"objectwatch/internal/track"
)

// collectorLimit bounds the points kept for the live timeline chart.
const collectorLimit = 20000

// shutdownGrace is how long a stopped watch waits for a source read that
// cannot be interrupted, such as stdin.
const shutdownGrace = 2 * time.Second

var (
	watchInput       string
	watchScenario    string
	watchFrames      int
	watchOutput      string
	watchRecord      string
	watchAddr        string
	watchStore       string
	watchTarget      string
	watchWatchConfig bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Track objects from a live detector stream",
	Long: "watch reads detector frames as JSON lines (--input, \"-\" for stdin) or renders a " +
		"synthetic scenario, tracks every instance of the target class and publishes status " +
		"and alerts to the configured outputs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyWatchFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if watchOutput == outputTUI {
			// Log lines would tear the full-screen UI.
			ctx = logging.NewContext(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)))
		}
		return runWatch(ctx, cfg)
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchInput, "input", "", `Detector frames as JSONL; "-" reads stdin, empty runs the synthetic scene`)
	f.StringVar(&watchScenario, "scenario", "", "Built-in scenario name or scenario YAML path (overrides config)")
	f.IntVar(&watchFrames, "frames", 0, "Stop the synthetic scene after this many frames (0 runs forever)")
	f.StringVar(&watchOutput, "output", outputAuto, "Console output: auto, plain, color, json, tui, none")
	f.StringVar(&watchRecord, "record", "", "Record incoming frames to a JSONL file for replay")
	f.StringVar(&watchAddr, "addr", "", "HTTP dashboard address (overrides config; \"off\" disables)")
	f.StringVar(&watchStore, "store", "", "SQLite alert history path (overrides config)")
	f.StringVar(&watchTarget, "target", "", "Target class (overrides config)")
	f.BoolVar(&watchWatchConfig, "watch-config", false, "Reload tracking thresholds when the config file changes")
}

func applyWatchFlags(cmd *cobra.Command, cfg *config.Config) {
	if watchScenario != "" {
		cfg.Scene.Scenario = watchScenario
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = watchAddr
		if watchAddr == "off" {
			cfg.Server.Addr = ""
		}
	}
	if watchStore != "" {
		cfg.Store.Path = watchStore
	}
	if watchTarget != "" {
		cfg.TargetClass = watchTarget
	}
}

// newSource opens the frame source. The scene is paced by the monitor at the
// configured frame interval; recorded or piped frames are processed as they
// arrive.
func newSource(cfg *config.Config, input string, maxFrames int) (monitor.Source, time.Duration, func() error, error) {
	noop := func() error { return nil }
	switch input {
	case "":
		sc, err := scenario.Lookup(cfg.Scene.Scenario)
		if err != nil {
			return nil, 0, nil, err
		}
		s := scene.New(sc, scene.Config{
			Class:     cfg.TargetClass,
			Width:     cfg.Scene.Width,
			Height:    cfg.Scene.Height,
			JitterPx:  cfg.Scene.JitterPx,
			Dropout:   cfg.Scene.Dropout,
			Interval:  cfg.FrameInterval,
			MaxFrames: maxFrames,
		}, rand.New(rand.NewSource(cfg.Scene.Seed)))
		return s, cfg.FrameInterval, noop, nil
	case "-":
		return monitor.NewJSONLSource(os.Stdin), 0, noop, nil
	}
	src, err := monitor.OpenJSONLSource(input)
	if err != nil {
		return nil, 0, nil, err
	}
	return src, 0, src.Close, nil
}

func newDispatcher(cfg config.Alerts) *alert.Dispatcher {
	var sinks []alert.Sink
	if len(cfg.Command) > 0 {
		sinks = append(sinks, alert.CommandSink{Args: cfg.Command, Timeout: 10 * time.Second})
	}
	if cfg.Bell {
		sinks = append(sinks, alert.BellSink{Out: os.Stderr})
	}
	if len(sinks) == 0 {
		return nil
	}
	return alert.NewDispatcher(cfg.QueueSize, cfg.MinInterval, sinks...)
}

func runWatch(ctx context.Context, cfg *config.Config) error {
	log := logging.FromContext(ctx)

	var st *store.Store
	if cfg.Store.Path != "" {
		var err error
		if st, err = store.Open(cfg.Store.Path); err != nil {
			return err
		}
	}
	collector := report.NewCollector(collectorLimit)

	mw, cleanup, err := newWriters(cfg, writerOptions{Output: watchOutput, Store: st, Collector: collector})
	if err != nil {
		if st != nil {
			st.Close()
		}
		return err
	}
	defer cleanup()
	nsw, naw := mw.Len()
	log.Info("publishers ready", "status_writers", nsw, "alert_writers", naw)

	tracker := track.New(cfg.Params(), track.WithTargetClass(cfg.TargetClass), track.WithLogger(log))
	if st != nil {
		if err := st.StartSession(ctx, tracker.SessionID(), cfg.TargetClass, time.Now()); err != nil {
			return err
		}
	}

	src, interval, closeSrc, err := newSource(cfg, watchInput, watchFrames)
	if err != nil {
		return err
	}
	defer closeSrc()

	opts := []monitor.Option{
		monitor.WithStatusWriter(mw),
		monitor.WithAlertWriter(mw),
		monitor.WithInterval(interval),
	}
	if watchRecord != "" {
		rec, err := monitor.NewFrameRecorder(watchRecord)
		if err != nil {
			return err
		}
		defer rec.Close()
		opts = append(opts, monitor.WithFrameWriter(rec))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d := newDispatcher(cfg.Alerts); d != nil {
		d.Start(runCtx)
		defer func() {
			cancel()
			d.Wait()
		}()
		opts = append(opts, monitor.WithDispatcher(d))
	}
	m := monitor.New(tracker, cfg.Filter(), src, opts...)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		// The source ending stops the server and the config watcher too.
		defer cancel()
		return runMonitor(gctx, m, shutdownGrace)
	})
	if cfg.Server.Addr != "" {
		var sopts []server.Option
		if st != nil {
			sopts = append(sopts, server.WithHistory(st))
		}
		sopts = append(sopts, server.WithTimeline(collector))
		srv := server.NewServer(m, sopts...)
		g.Go(func() error {
			if err := srv.Run(gctx, cfg.Server.Addr); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	if watchWatchConfig && configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, schemaPath, config.DefaultDebounce, func(c *config.Config) {
				m.SetParams(c.Params())
				log.Info("tracking thresholds reloaded",
					"move_threshold_px", c.Tracking.MoveThresholdPx,
					"missing_after", c.Tracking.MissingAfter)
			})
		})
	}
	return g.Wait()
}

// runMonitor runs m until it finishes. When ctx ends first it waits a short
// grace period for the current cycle and then gives up on a source read that
// ignores cancellation. The abandoned monitor is closed first, so a frame that
// arrives later reaches none of the writers released after return.
func runMonitor(ctx context.Context, m *monitor.Monitor, grace time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		m.Close()
		logging.FromContext(ctx).Warn("frame source did not stop, abandoning it")
		return nil
	}
}
