// Package health serves liveness and readiness probes.
//
// Every check runs on its own ticker. A check turns unhealthy after
// FailureThreshold consecutive failures and healthy again after
// SuccessThreshold consecutive successes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Kind selects the probe a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

func (k Kind) String() string {
	if k == Readiness {
		return "readiness"
	}
	return "liveness"
}

// Check describes one registered check.
type Check struct {
	Name             string
	Kind             Kind
	Timeout          time.Duration
	Func             CheckFunc
	FailureThreshold int
	SuccessThreshold int
}

type probe struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Touched only by the goroutine that runs the check.
	fails, oks int
}

func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// run executes the check once and returns true when the health state flipped.
func (p *probe) run(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Func(ctx)
	p.lastErr.Store(&err)

	was := p.healthy.Load()
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.FailureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.oks++
		if p.oks >= p.SuccessThreshold {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

// Health owns the registered checks and the manual readiness flag.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// New creates a Health that starts not ready. State changes are logged to lg.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// Add registers c. Zero thresholds default to 3 failures and 1 success.
// Checks start healthy.
func (h *Health) Add(c Check) {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	p := &probe{Check: c}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// AddLivenessCheck registers a liveness check with default thresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Check{Name: name, Kind: Liveness, Timeout: timeout, Func: fn})
}

// AddReadinessCheck registers a readiness check with default thresholds.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.Add(Check{Name: name, Kind: Readiness, Timeout: timeout, Func: fn})
}

// Start runs every registered check immediately and then every interval
// until Stop is called or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	for _, p := range probes {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.run(ctx) {
			h.logFlip(p)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) logFlip(p *probe) {
	fields := []zap.Field{zap.String("check", p.Name), zap.Stringer("kind", p.Kind)}
	if p.healthy.Load() {
		h.lg.Info("Health check recovered", fields...)
		return
	}
	h.lg.Warn("Health check failing", append(fields, zap.Error(p.err()))...)
}

// Stop cancels the check goroutines. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string)
	for _, p := range h.probes {
		if p.Kind != kind || p.healthy.Load() {
			continue
		}
		if err := p.err(); err != nil {
			out[p.Name] = err.Error()
		} else {
			out[p.Name] = "check is unhealthy"
		}
	}
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

// writeStatus writes {"status":"ok"} with 200, or
// {"status":"unhealthy","checks":{name:error}} with 503.
func writeStatus(w http.ResponseWriter, failures map[string]string) {
	status := http.StatusOK
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			names := make([]string, 0, len(failures))
			for name := range failures {
				names = append(names, name)
			}
			sort.Strings(names)
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
