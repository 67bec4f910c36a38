// Package events announces changes to the experiment collections over NATS.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

// Kind names the change being announced.
type Kind string

const (
	DefinitionAdded    Kind = "definitions.added"
	DefinitionUpdated  Kind = "definitions.updated"
	ResponseSubmitted  Kind = "responses.submitted"
	defaultPrefix           = "experimentd"
	defaultConnTimeout      = 2 * time.Second
)

// Event is the JSON payload of every message.
type Event struct {
	ID   string    `json:"id"`
	Kind Kind      `json:"kind"`
	Name string    `json:"name"`
	At   time.Time `json:"at"`
}

// Publisher announces a change. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, name string) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Kind, string) error { return nil }
func (Nop) Close() error                                { return nil }

// Config controls the NATS connection.
type Config struct {
	URL            string
	SubjectPrefix  string
	Token          string
	ConnectTimeout time.Duration
}

// NATSPublisher publishes events as JSON on <prefix>.<kind>.
type NATSPublisher struct {
	conn   *nats.Conn
	owned  bool
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// Connect dials NATS and returns a publisher that owns the connection.
func Connect(cfg Config, logger *logging.Logger) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnTimeout
	}
	opts := []nats.Option{
		nats.Name("experimentd"),
		nats.Timeout(timeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	p := NewNATSPublisher(nc, cfg.SubjectPrefix, logger)
	p.owned = true
	return p, nil
}

// NewNATSPublisher publishes on an existing connection, which the caller
// keeps ownership of.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logging.Logger) *NATSPublisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &NATSPublisher{
		conn:   nc,
		prefix: prefix,
		logger: logger.Named("events"),
		now:    time.Now,
	}
}

// Subject returns the subject kind is published on.
func (p *NATSPublisher) Subject(kind Kind) string {
	return p.prefix + "." + string(kind)
}

// Publish sends one event and flushes it to the server.
func (p *NATSPublisher) Publish(ctx context.Context, kind Kind, name string) error {
	ev := Event{
		ID:   uuid.NewString(),
		Kind: kind,
		Name: name,
		At:   p.now().UTC(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	if err := p.flush(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", subject, err)
	}
	p.logger.Debug(ctx, "event published",
		zap.String("subject", subject),
		zap.String("event.id", ev.ID),
	)
	return nil
}

// flush waits for the server to acknowledge what was published. NATS
// refuses a context without a deadline, so one is supplied.
func (p *NATSPublisher) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); ok {
		return p.conn.FlushWithContext(ctx)
	}
	return p.conn.FlushTimeout(defaultConnTimeout)
}

// Close flushes and closes the connection if this publisher opened it.
func (p *NATSPublisher) Close() error {
	if !p.owned {
		return nil
	}
	err := p.conn.FlushTimeout(defaultConnTimeout)
	p.conn.Close()
	if errors.Is(err, nats.ErrConnectionClosed) {
		return nil
	}
	return err
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*NATSPublisher)(nil)
)
