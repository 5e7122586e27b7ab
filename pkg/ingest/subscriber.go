// Package ingest consumes subsystem event streams from NATS and writes
// the raw records into the record store the collectors read from.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/storage"
	natsgo "github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubscriberConfig configures the NATS ingest subscriber.
type SubscriberConfig struct {
	// URL of the NATS server.
	URL string

	// Subject pattern to subscribe to. Subjects are expected to follow
	// events.<system>.<kind>.
	Subject string

	// Systems accepted from the stream; empty accepts any.
	Systems []string

	// ReconnectWait between reconnection attempts.
	ReconnectWait time.Duration
}

func (c *SubscriberConfig) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "events.>"
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
}

// payload is the wire shape subsystems publish. Subsystem-specific
// values travel under the fields key.
type payload struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id"`
	SessionID string                 `json:"session_id"`
	Fields    map[string]interface{} `json:"fields"`
}

// Subscriber bridges NATS subjects into the record store. One bad
// message is logged and dropped; it never stops the subscription.
type Subscriber struct {
	config  SubscriberConfig
	store   storage.RecordStore
	logger  *zap.Logger
	allowed map[string]bool

	nc  *natsgo.Conn
	sub *natsgo.Subscription

	mu      sync.Mutex
	started bool
}

// NewSubscriber creates an ingest subscriber writing into store.
func NewSubscriber(config SubscriberConfig, store storage.RecordStore, logger *zap.Logger) (*Subscriber, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	config.applyDefaults()

	allowed := make(map[string]bool, len(config.Systems))
	for _, system := range config.Systems {
		allowed[system] = true
	}

	return &Subscriber{
		config:  config,
		store:   store,
		logger:  logger,
		allowed: allowed,
	}, nil
}

// Start connects and subscribes. Messages are handled until Stop.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("subscriber already started")
	}

	nc, err := natsgo.Connect(s.config.URL,
		natsgo.ReconnectWait(s.config.ReconnectWait),
		natsgo.MaxReconnects(-1),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS at %s: %w", s.config.URL, err)
	}
	s.nc = nc

	sub, err := nc.Subscribe(s.config.Subject, func(msg *natsgo.Msg) {
		s.handle(ctx, msg)
	})
	if err != nil {
		nc.Close()
		return fmt.Errorf("subscribing to %s: %w", s.config.Subject, err)
	}
	s.sub = sub
	s.started = true

	s.logger.Info("Ingest subscriber started",
		zap.String("url", s.config.URL),
		zap.String("subject", s.config.Subject),
	)
	return nil
}

// handle normalizes one message into a raw record and appends it.
func (s *Subscriber) handle(ctx context.Context, msg *natsgo.Msg) {
	system, kind, ok := parseSubject(msg.Subject)
	if !ok {
		s.logger.Warn("Dropping message with unparseable subject", zap.String("subject", msg.Subject))
		return
	}
	if len(s.allowed) > 0 && !s.allowed[system] {
		return
	}

	var p payload
	if err := json.Unmarshal(msg.Data, &p); err != nil {
		s.logger.Warn("Dropping undecodable message",
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	record := domain.RawRecord{
		ID:        p.ID,
		System:    system,
		Kind:      kind,
		Timestamp: p.Timestamp,
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Fields:    p.Fields,
	}
	if err := s.store.Append(ctx, record); err != nil {
		s.logger.Error("Failed to store ingested record",
			zap.String("system", system),
			zap.String("record_id", record.ID),
			zap.Error(err))
	}
}

// parseSubject splits events.<system>.<kind>; kind may be empty.
func parseSubject(subject string) (system, kind string, ok bool) {
	parts := strings.Split(subject, ".")
	if len(parts) < 2 || parts[0] != "events" {
		return "", "", false
	}
	system = parts[1]
	if len(parts) > 2 {
		kind = strings.Join(parts[2:], ".")
	}
	return system, kind, true
}

// Stop drains the subscription and closes the connection.
func (s *Subscriber) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false

	if err := s.sub.Drain(); err != nil {
		s.logger.Warn("Failed to drain subscription", zap.Error(err))
	}
	s.nc.Close()
	s.logger.Info("Ingest subscriber stopped")
	return nil
}
