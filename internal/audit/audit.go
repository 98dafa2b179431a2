// Package audit records successful mutating calls made through the BFF.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"admin-bff/internal/metrics"
)

var (
	errQueueFull = errors.New("audit queue full")
	errStopped   = errors.New("audit recorder stopped")
)

const (
	queueSize    = 256
	writeTimeout = 5 * time.Second
)

// Entry is one audit record.
type Entry struct {
	ID         uuid.UUID
	TenantID   string
	UserID     string
	Method     string
	Route      string
	Resource   string
	ResourceID string
	Status     int
	RequestID  string
	At         time.Time
}

// Recorder accepts audit entries. Record never blocks on I/O and never fails
// the caller.
type Recorder interface {
	Record(e Entry)
}

// Nop discards entries. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(Entry) {}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ execer = (*pgxpool.Pool)(nil)

const insertEntry = `INSERT INTO audit_log
	(entry_id, tenant_id, user_id, method, route, resource, resource_id, status, request_id, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// PGRecorder writes entries to PostgreSQL from a single background writer.
// Entries arriving while the queue is full are dropped.
type PGRecorder struct {
	db      execer
	queue   chan Entry
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewPGRecorder creates a recorder writing through db.
func NewPGRecorder(db execer, logger *slog.Logger, m *metrics.Metrics) *PGRecorder {
	return &PGRecorder{
		db:      db,
		queue:   make(chan Entry, queueSize),
		logger:  logger.With("component", "audit"),
		metrics: m,
		done:    make(chan struct{}),
	}
}

// Record enqueues e. Missing IDs and timestamps are filled in.
func (r *PGRecorder) Record(e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.fail(e, errStopped)
		return
	}
	select {
	case r.queue <- e:
	default:
		r.fail(e, errQueueFull)
	}
}

// Start launches the writer.
func (r *PGRecorder) Start() {
	r.startOnce.Do(func() { go r.run() })
}

// Stop closes the queue and waits until queued entries are written.
func (r *PGRecorder) Stop() {
	r.stopOnce.Do(func() {
		r.Start()
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
		<-r.done
	})
}

func (r *PGRecorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.write(context.Background(), e); err != nil {
			r.fail(e, err)
		}
	}
}

func (r *PGRecorder) write(ctx context.Context, e Entry) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := r.db.Exec(ctx, insertEntry,
		e.ID, e.TenantID, e.UserID, e.Method, e.Route,
		e.Resource, e.ResourceID, e.Status, e.RequestID, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PGRecorder) fail(e Entry, err error) {
	r.logger.Warn("audit entry not recorded",
		"err", err,
		"route", e.Route,
		"tenant", e.TenantID,
		"request_id", e.RequestID,
	)
	if r.metrics != nil {
		r.metrics.AuditFailures.Inc()
	}
}
