package location

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/geo"
)

// Handler receives each fix that passes the monitor's gates.
type Handler func(ctx context.Context, fix Fix)

// Monitor runs a provider's continuous watch in the background and forwards
// fixes that are both at least Interval apart in time and at least
// DistanceMeters apart in space from the last forwarded fix. The first fix
// is always forwarded.
type Monitor struct {
	provider Provider
	opts     WatchOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	nowFunc func() time.Time
}

// NewMonitor creates a Monitor. Zero options fall back to the defaults.
func NewMonitor(p Provider, opts WatchOptions) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.DistanceMeters <= 0 {
		opts.DistanceMeters = DefaultDistanceMeters
	}
	return &Monitor{provider: p, opts: opts, nowFunc: time.Now}
}

// Options returns the effective gates.
func (m *Monitor) Options() WatchOptions { return m.opts }

// Current requests a one-shot fix, stamping it if the provider did not.
func (m *Monitor) Current(ctx context.Context) (Fix, error) {
	fix, err := m.provider.CurrentFix(ctx)
	if err != nil {
		return Fix{}, eris.Wrap(err, "location: current fix")
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = m.nowFunc()
	}
	return fix, nil
}

// Start begins the continuous watch. It fails if a watch is already running.
func (m *Monitor) Start(ctx context.Context, h Handler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return eris.New("location: monitor already running")
	}

	wctx, cancel := context.WithCancel(ctx)
	fixes, err := m.provider.Watch(wctx, m.opts)
	if err != nil {
		cancel()
		return eris.Wrap(err, "location: start watch")
	}

	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	go m.loop(wctx, fixes, h, done)

	zap.L().Debug("location watch started",
		zap.Duration("interval", m.opts.Interval),
		zap.Float64("distance_m", m.opts.DistanceMeters),
	)
	return nil
}

// Stop cancels the watch and waits for the loop to exit. No handler call
// happens after Stop returns. Stop is safe to call more than once.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Done returns a channel closed when the running watch ends, either because
// the provider ran out of fixes or the watch was stopped. It returns nil when
// no watch was started.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Running reports whether a watch is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) loop(ctx context.Context, fixes <-chan Fix, h Handler, done chan struct{}) {
	defer close(done)

	var (
		last    Fix
		hasLast bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case fix, ok := <-fixes:
			if !ok {
				return
			}
			if fix.Timestamp.IsZero() {
				fix.Timestamp = m.nowFunc()
			}
			if hasLast && !m.passes(last, fix) {
				continue
			}
			// Cancellation wins over a fix that raced it.
			if ctx.Err() != nil {
				return
			}
			last, hasLast = fix, true
			h(ctx, fix)
		}
	}
}

func (m *Monitor) passes(last, next Fix) bool {
	if next.Timestamp.Sub(last.Timestamp) < m.opts.Interval {
		return false
	}
	return geo.DistanceMeters(last.Point(), next.Point()) >= m.opts.DistanceMeters
}
