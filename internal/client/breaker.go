package client

import (
	"sync"
	"time"

	"admin-bff/internal/metrics"
)

// Breaker states reported by State.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

type breaker struct {
	failures  int
	openUntil time.Time
	probing   bool
}

// Breakers keeps one circuit breaker per backend service. After threshold
// consecutive failures a service is open for cooldown; then a single trial
// call is let through and its outcome closes or reopens the breaker.
type Breakers struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	byService map[string]*breaker
	now       func() time.Time
	metrics   *metrics.Metrics
}

// NewBreakers creates a breaker set. A threshold <= 0 disables breaking.
func NewBreakers(threshold int, cooldown time.Duration, m *metrics.Metrics) *Breakers {
	return &Breakers{
		threshold: threshold,
		cooldown:  cooldown,
		byService: make(map[string]*breaker),
		now:       time.Now,
		metrics:   m,
	}
}

// Allow reports whether a call to service may proceed.
func (b *Breakers) Allow(service string) bool {
	if b.threshold <= 0 {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.byService[service]
	if br == nil || br.openUntil.IsZero() {
		return true
	}
	if b.now().Before(br.openUntil) || br.probing {
		return false
	}
	br.probing = true
	return true
}

// Record reports the outcome of a call to service.
func (b *Breakers) Record(service string, ok bool) {
	if b.threshold <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.byService[service]
	if br == nil {
		br = &breaker{}
		b.byService[service] = br
	}
	if ok {
		wasOpen := !br.openUntil.IsZero()
		*br = breaker{}
		if wasOpen {
			b.setGauge(service, 0)
		}
		return
	}

	br.failures++
	if br.probing || br.failures >= b.threshold {
		br.openUntil = b.now().Add(b.cooldown)
		br.probing = false
		b.setGauge(service, 1)
	}
}

// State returns the breaker state for service.
func (b *Breakers) State(service string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	br := b.byService[service]
	switch {
	case br == nil || br.openUntil.IsZero():
		return StateClosed
	case b.now().Before(br.openUntil):
		return StateOpen
	default:
		return StateHalfOpen
	}
}

func (b *Breakers) setGauge(service string, v float64) {
	if b.metrics != nil {
		b.metrics.BreakerOpen.WithLabelValues(service).Set(v)
	}
}
