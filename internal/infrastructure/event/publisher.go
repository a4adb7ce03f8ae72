package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Publisher delivers a claimed outbox entry to its downstream consumer
type Publisher interface {
	Publish(ctx context.Context, entry *shared.OutboxEntry) error
}

// LogPublisher writes entries to the log instead of a broker.
// It is used when no NATS URL is configured.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a new LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs the entry and always succeeds
func (p *LogPublisher) Publish(_ context.Context, entry *shared.OutboxEntry) error {
	p.logger.Info("outbox message published to log",
		zap.String("outbox_id", entry.ID.String()),
		zap.String("topic", entry.Topic),
		zap.String("aggregate_id", entry.AggregateID.String()),
		zap.ByteString("payload", entry.Payload),
	)
	return nil
}

// NATSPublisher publishes outbox entries to a JetStream stream.
// The outbox ID is used as the message ID so redeliveries are deduplicated
// by the stream.
type NATSPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *zap.Logger
}

// NewNATSPublisher connects to NATS and makes sure the stream captures the
// configured subject
func NewNATSPublisher(ctx context.Context, cfg config.NATSConfig, clientName string, logger *zap.Logger) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats: url is required")
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectJitter(500*time.Millisecond, time.Second),
		nats.NoCallbacksAfterClientClose(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats: connect: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("nats: jetstream: %w", err)
	}

	p := &NATSPublisher{conn: conn, js: js, logger: logger}
	if err := p.ensureStream(ctx, cfg.Stream, cfg.Subject); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

// ensureStream creates the stream or appends the subject to an existing one
func (p *NATSPublisher) ensureStream(ctx context.Context, name, subject string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	subjects := []string{subject}
	stream, err := p.js.Stream(ctx, name)
	switch {
	case err == nil:
		info, err := stream.Info(ctx)
		if err != nil {
			return fmt.Errorf("nats: stream info %s: %w", name, err)
		}
		subjects = lo.Uniq(append(subjects, info.Config.Subjects...))
	case !errors.Is(err, jetstream.ErrStreamNotFound):
		return fmt.Errorf("nats: lookup stream %s: %w", name, err)
	}

	if _, err := p.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
	}); err != nil {
		return fmt.Errorf("nats: ensure stream %s: %w", name, err)
	}
	p.logger.Info("nats stream ready", zap.String("stream", name), zap.Strings("subjects", subjects))
	return nil
}

// Publish sends the payload to the subject named by the entry topic
func (p *NATSPublisher) Publish(ctx context.Context, entry *shared.OutboxEntry) error {
	ack, err := p.js.Publish(ctx, entry.Topic, entry.Payload, jetstream.WithMsgID(entry.ID.String()))
	if err != nil {
		return fmt.Errorf("nats: publish %s: %w", entry.Topic, err)
	}
	if ack.Duplicate {
		p.logger.Debug("nats dropped duplicate message", zap.String("outbox_id", entry.ID.String()))
	}
	return nil
}

// Close drains the connection
func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
