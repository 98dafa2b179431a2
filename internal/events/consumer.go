package events

import (
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
)

// Consumer receives invalidation events from other replicas and passes the
// prefix to drop. It reconnects after reconnectDelay when the broker goes away.
type Consumer struct {
	amqpURL   string
	exchange  string
	keyPrefix string
	origin    string
	drop      func(prefix string)
	logger    *slog.Logger
	metrics   *metrics.Metrics
	done      chan struct{}
	stopped   chan struct{}
}

// NewConsumer creates a Consumer. drop is called for every accepted event.
func NewConsumer(cfg *config.Config, origin string, drop func(prefix string), logger *slog.Logger, m *metrics.Metrics) *Consumer {
	return &Consumer{
		amqpURL:   cfg.Events.AMQPURL,
		exchange:  cfg.Events.Exchange,
		keyPrefix: cfg.Cache.KeyPrefix,
		origin:    origin,
		drop:      drop,
		logger:    logger.With("component", "invalidation_consumer"),
		metrics:   m,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Start begins consuming in the background.
func (c *Consumer) Start() {
	go c.consumeLoop()
}

// Stop stops the consumer and waits for the loop to exit.
func (c *Consumer) Stop() {
	close(c.done)
	<-c.stopped
}

func (c *Consumer) consumeLoop() {
	defer close(c.stopped)
	for {
		err := c.connect()
		select {
		case <-c.done:
			c.logger.Info("invalidation consumer stopped")
			return
		default:
		}
		c.logger.Error("broker connection lost",
			"err", err,
			"retry_in", reconnectDelay,
		)
		select {
		case <-c.done:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) connect() error {
	conn, err := dial(c.amqpURL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(c.exchange, exchangeType, true, false, false, false, nil); err != nil {
		return err
	}

	// Exclusive, auto-deleted queue: every replica gets every event.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return err
	}

	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	c.logger.Info("invalidation consumer connected",
		"exchange", c.exchange,
		"queue", q.Name,
	)

	connClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-c.done:
			return nil
		case err := <-connClose:
			return err
		case msg, ok := <-msgs:
			if !ok {
				return amqp.ErrClosed
			}
			c.handleMessage(msg.Body)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) {
	ev, err := decodeEvent(body, c.keyPrefix)
	if err != nil {
		c.logger.Warn("discarding invalidation event", "err", err)
		c.count("error")
		return
	}
	if ev.Origin == c.origin {
		c.count("ignored")
		return
	}
	c.drop(ev.Prefix)
	c.count("ok")
}

func (c *Consumer) count(outcome string) {
	if c.metrics != nil {
		c.metrics.EventsTotal.WithLabelValues("received", outcome).Inc()
	}
}
