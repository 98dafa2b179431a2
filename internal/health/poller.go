// Package health polls backend services for readiness on a cron schedule.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
)

// Pinger issues a health request and returns the HTTP status.
type Pinger interface {
	Ping(ctx context.Context, rawURL string) (int, error)
}

// BackendStatus is the last observed state of one backend.
type BackendStatus struct {
	Name       string    `json:"name"`
	Up         bool      `json:"up"`
	Required   bool      `json:"required"`
	StatusCode int       `json:"statusCode,omitempty"`
	Error      string    `json:"error,omitempty"`
	LatencyMS  int64     `json:"latencyMs"`
	CheckedAt  time.Time `json:"checkedAt"`
	Breaker    string    `json:"breaker,omitempty"`
}

// Report is a readiness snapshot.
type Report struct {
	Ready    bool            `json:"ready"`
	Backends []BackendStatus `json:"backends"`
}

type target struct {
	name     string
	url      string
	required bool
}

// Poller checks every configured backend on a schedule and keeps the
// latest result per backend.
type Poller struct {
	targets  []target
	schedule string
	timeout  time.Duration
	pinger   Pinger
	breaker  func(service string) string
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	polls   sync.WaitGroup
	status  map[string]BackendStatus
}

// NewPoller creates a Poller for all configured services. breaker, when
// non-nil, reports the client-side breaker state per service.
func NewPoller(cfg *config.Config, pinger Pinger, breaker func(string) string, logger *slog.Logger, m *metrics.Metrics) *Poller {
	path := "/" + strings.TrimLeft(cfg.Health.Path, "/")
	var targets []target
	for _, name := range cfg.ServiceNames() {
		base, ok := cfg.ServiceURL(name)
		if !ok {
			continue
		}
		targets = append(targets, target{
			name:     name,
			url:      strings.TrimRight(base, "/") + path,
			required: cfg.Health.IsRequired(name),
		})
	}
	return &Poller{
		targets:  targets,
		schedule: cfg.Health.Schedule,
		timeout:  time.Duration(cfg.Health.TimeoutSeconds) * time.Second,
		pinger:   pinger,
		breaker:  breaker,
		logger:   logger.With("component", "health_poller"),
		metrics:  m,
		cron:     cron.New(),
		status:   make(map[string]BackendStatus),
	}
}

// Start schedules polling and runs a first poll in the background. An
// empty schedule disables polling.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.schedule == "" {
		p.logger.Info("health schedule not configured, skipping poller")
		return nil
	}
	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid health schedule %q: %w", p.schedule, err)
	}
	if _, err := p.cron.AddFunc(p.schedule, func() { p.PollOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule health poll: %w", err)
	}

	p.cron.Start()
	p.running = true
	p.polls.Go(func() { p.PollOnce(ctx) })

	p.logger.Info("health poller started",
		"schedule", p.schedule,
		"backends", len(p.targets),
	)
	return nil
}

// Stop stops the scheduler and waits for running polls to finish. The
// lock is released before waiting, since a finishing poll needs it to
// record its results.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopped := p.cron.Stop()
	p.mu.Unlock()

	<-stopped.Done()
	p.polls.Wait()
	p.logger.Info("health poller stopped")
}

// PollOnce checks every backend concurrently and records the results.
func (p *Poller) PollOnce(ctx context.Context) {
	var wg sync.WaitGroup
	results := make([]BackendStatus, len(p.targets))
	for i, t := range p.targets {
		wg.Go(func() {
			results[i] = p.check(ctx, t)
		})
	}
	wg.Wait()

	p.mu.Lock()
	for _, r := range results {
		prev, seen := p.status[r.Name]
		if seen && prev.Up != r.Up {
			p.logger.Warn("backend readiness changed", "service", r.Name, "up", r.Up, "err", r.Error)
		}
		p.status[r.Name] = r
	}
	p.mu.Unlock()
}

func (p *Poller) check(ctx context.Context, t target) BackendStatus {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	code, err := p.pinger.Ping(ctx, t.url)
	st := BackendStatus{
		Name:       t.name,
		Required:   t.required,
		StatusCode: code,
		LatencyMS:  time.Since(start).Milliseconds(),
		CheckedAt:  time.Now().UTC(),
	}
	switch {
	case err != nil:
		st.Error = err.Error()
	case code >= http.StatusOK && code < http.StatusMultipleChoices:
		st.Up = true
	default:
		st.Error = fmt.Sprintf("status %d", code)
	}

	if p.metrics != nil {
		up := 0.0
		if st.Up {
			up = 1
		}
		p.metrics.BackendUp.WithLabelValues(t.name).Set(up)
	}
	return st
}

// Snapshot returns the latest status of every backend. The report is ready
// when every required backend answered its last poll and its breaker is
// not open. Backends never polled count as down.
func (p *Poller) Snapshot() Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	rep := Report{Ready: true, Backends: make([]BackendStatus, 0, len(p.targets))}
	for _, t := range p.targets {
		st, ok := p.status[t.name]
		if !ok {
			st = BackendStatus{Name: t.name, Required: t.required, Error: "not checked yet"}
		}
		if p.breaker != nil {
			st.Breaker = p.breaker(t.name)
		}
		if t.required && (!st.Up || st.Breaker == "open") {
			rep.Ready = false
		}
		rep.Backends = append(rep.Backends, st)
	}
	sort.Slice(rep.Backends, func(i, j int) bool { return rep.Backends[i].Name < rep.Backends[j].Name })
	return rep
}
