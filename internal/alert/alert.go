// Package alert delivers alerts to side-effect sinks (sound, terminal bell)
// without ever blocking the tracking loop.
package alert

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"objectwatch/internal/logging"
	"objectwatch/internal/metrics"
	"objectwatch/internal/status"
)

// Sink plays one alert. Errors are logged by the dispatcher and never reach
// the tracking loop.
type Sink interface {
	Name() string
	Play(ctx context.Context, a status.AlertRow) error
}

// CommandSink runs an external player, e.g. ["aplay", "alert.wav"].
// OBJECTWATCH_ALERT_KIND and OBJECTWATCH_ALERT_ID are set for the command.
type CommandSink struct {
	Args    []string
	Timeout time.Duration
}

func (c CommandSink) Name() string { return "command" }

func (c CommandSink) Play(ctx context.Context, a status.AlertRow) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("alert command is empty")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...)
	cmd.Env = append(cmd.Environ(),
		"OBJECTWATCH_ALERT_KIND="+a.Kind,
		fmt.Sprintf("OBJECTWATCH_ALERT_ID=%d", a.IdentityID),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(c.Args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// BellSink rings the terminal bell.
type BellSink struct {
	Out io.Writer
}

func (b BellSink) Name() string { return "bell" }

func (b BellSink) Play(_ context.Context, _ status.AlertRow) error {
	_, err := io.WriteString(b.Out, "\a")
	return err
}

// Dispatcher queues alerts for a single delivery goroutine. A full queue drops
// the alert; deliveries closer together than the minimum interval are skipped
// so overlapping sounds do not pile up.
type Dispatcher struct {
	sinks   []Sink
	queue   chan status.AlertRow
	limiter *rate.Limiter
	dropped atomic.Int64
	wg      sync.WaitGroup
}

// NewDispatcher returns a dispatcher with a queue of the given size.
func NewDispatcher(queueSize int, minInterval time.Duration, sinks ...Sink) *Dispatcher {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Dispatcher{
		sinks:   sinks,
		queue:   make(chan status.AlertRow, max(queueSize, 1)),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Dispatch enqueues a without blocking and reports whether it was accepted.
func (d *Dispatcher) Dispatch(a status.AlertRow) bool {
	select {
	case d.queue <- a:
		return true
	default:
		d.dropped.Add(1)
		metrics.AlertsDropped.WithLabelValues("queue_full").Inc()
		return false
	}
}

// Dropped returns how many alerts were discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Start runs the delivery loop in a goroutine; Wait blocks until it exits.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Run(ctx)
	}()
}

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logging.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.queue:
			if !d.limiter.Allow() {
				metrics.AlertsDropped.WithLabelValues("rate_limited").Inc()
				log.Debug("alert sound suppressed", "kind", a.Kind, "identity", a.IdentityID)
				continue
			}
			for _, s := range d.sinks {
				if err := s.Play(ctx, a); err != nil {
					metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
					log.Warn("alert sink failed", "sink", s.Name(), "err", err)
				}
			}
		}
	}
}

// Wait blocks until the loop launched by Start has returned.
func (d *Dispatcher) Wait() { d.wg.Wait() }
