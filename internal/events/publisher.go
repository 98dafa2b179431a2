package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
)

const (
	publishQueueSize = 256
	publishTimeout   = 2 * time.Second
)

var (
	errQueueFull = errors.New("invalidation queue full")
	errStopped   = errors.New("publisher stopped")
)

type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func() (publishChannel, io.Closer, error)

// Publisher publishes invalidation events from a single background writer.
// PublishInvalidation only enqueues, so a slow or silent broker never holds
// up the request that invalidated. Events arriving while the queue is full
// are dropped. The connection is opened on first use and reopened after a
// failed publish.
type Publisher struct {
	exchange string
	origin   string
	dial     dialFunc
	logger   *slog.Logger
	metrics  *metrics.Metrics

	queue chan Event
	abort chan struct{}
	done  chan struct{}

	mu        sync.RWMutex
	closed    bool
	startOnce sync.Once
	stopOnce  sync.Once

	// owned by the writer goroutine
	ch   publishChannel
	conn io.Closer
}

// NewPublisher creates a Publisher for cfg.Events. origin identifies this
// replica so its own events can be skipped by its consumer.
func NewPublisher(cfg *config.Config, origin string, logger *slog.Logger, m *metrics.Metrics) *Publisher {
	url, exchange := cfg.Events.AMQPURL, cfg.Events.Exchange
	return &Publisher{
		exchange: exchange,
		origin:   origin,
		dial: func() (publishChannel, io.Closer, error) {
			conn, err := dial(url)
			if err != nil {
				return nil, nil, err
			}
			ch, err := conn.Channel()
			if err != nil {
				_ = conn.Close()
				return nil, nil, err
			}
			if err := ch.ExchangeDeclare(exchange, exchangeType, true, false, false, false, nil); err != nil {
				_ = ch.Close()
				_ = conn.Close()
				return nil, nil, err
			}
			return ch, conn, nil
		},
		logger:  logger.With("component", "invalidation_publisher"),
		metrics: m,
		queue:   make(chan Event, publishQueueSize),
		abort:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// PublishInvalidation queues an announcement that prefix was invalidated.
// It never blocks.
func (p *Publisher) PublishInvalidation(_ context.Context, prefix string) error {
	ev := Event{
		Type:   TypeInvalidate,
		Prefix: prefix,
		Origin: p.origin,
		At:     time.Now().UTC(),
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.count("dropped")
		return errStopped
	}
	select {
	case p.queue <- ev:
		return nil
	default:
		p.count("dropped")
		return errQueueFull
	}
}

// Start launches the writer.
func (p *Publisher) Start() {
	p.startOnce.Do(func() { go p.run() })
}

// Stop closes the queue and waits for queued events to be sent. When ctx
// ends first, the remaining events are dropped.
func (p *Publisher) Stop(ctx context.Context) error {
	var err error
	p.stopOnce.Do(func() {
		p.Start()
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		select {
		case <-p.done:
		case <-ctx.Done():
			close(p.abort)
			<-p.done
			err = ctx.Err()
		}
	})
	return err
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()
	for ev := range p.queue {
		select {
		case <-p.abort:
			p.count("dropped")
			continue
		default:
		}
		if err := p.send(ev); err != nil {
			p.logger.Warn("invalidation not published", "prefix", ev.Prefix, "err", err)
		}
	}
}

func (p *Publisher) send(ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		p.count("error")
		return fmt.Errorf("encode event: %w", err)
	}

	if p.ch == nil {
		ch, conn, err := p.dial()
		if err != nil {
			p.count("error")
			return fmt.Errorf("connect to broker: %w", err)
		}
		p.ch, p.conn = ch, conn
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: contentType,
		MessageId:   uuid.NewString(),
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		p.reset()
		p.count("error")
		return fmt.Errorf("publish invalidation: %w", err)
	}
	p.count("ok")
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

func (p *Publisher) count(outcome string) {
	if p.metrics != nil {
		p.metrics.EventsTotal.WithLabelValues("published", outcome).Inc()
	}
}
