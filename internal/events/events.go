// Package events broadcasts cache invalidations between BFF replicas over a
// RabbitMQ fanout exchange. Each replica publishes the key prefix it just
// invalidated and drops the same prefix from its in-process cache when
// another replica announces one.
package events

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TypeInvalidate is the only event type.
const TypeInvalidate = "invalidate"

const (
	exchangeType   = "fanout"
	reconnectDelay = 5 * time.Second
	contentType    = "application/json"
)

// dialTimeout bounds the TCP connect and the AMQP handshake.
var dialTimeout = 3 * time.Second

// dial opens a broker connection that gives up after dialTimeout instead of
// the library's 30s default.
func dial(url string) (*amqp.Connection, error) {
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
}

// Event is the message body published on the exchange.
type Event struct {
	Type   string    `json:"type"`
	Prefix string    `json:"prefix"`
	Origin string    `json:"origin"`
	At     time.Time `json:"at"`
}

var (
	errUnknownType = errors.New("unknown event type")
	errBadPrefix   = errors.New("invalid invalidation prefix")
)

// decodeEvent parses and checks an event body. keyPrefix is the cache key
// prefix every accepted invalidation must start with.
func decodeEvent(body []byte, keyPrefix string) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, err
	}
	if ev.Type != TypeInvalidate {
		return Event{}, errUnknownType
	}
	// "<prefix>:<tenant>:<resource>:" and nothing broader.
	parts := strings.Split(ev.Prefix, ":")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] == "" || parts[2] == "" || parts[3] != "" {
		return Event{}, errBadPrefix
	}
	return ev, nil
}
