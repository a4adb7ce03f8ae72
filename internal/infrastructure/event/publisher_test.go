package event

import (
	"context"
	"testing"

	"github.com/catalogsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisher_Publish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	publisher := NewLogPublisher(zap.New(core))
	entry := newTranslationEntry()

	require.NoError(t, publisher.Publish(context.Background(), entry))

	published := logs.FilterMessage("outbox message published to log").All()
	require.Len(t, published, 1)
	fields := published[0].ContextMap()
	assert.Equal(t, "catalog.translation.requested", fields["topic"])
	assert.Equal(t, entry.ID.String(), fields["outbox_id"])
}

func TestNewNATSPublisher_RequiresURL(t *testing.T) {
	_, err := NewNATSPublisher(context.Background(), config.NATSConfig{Stream: "CATALOG"}, "test", zap.NewNop())
	assert.Error(t, err)
}

func TestNewNATSPublisher_ConnectFailure(t *testing.T) {
	cfg := config.NATSConfig{URL: "nats://127.0.0.1:1", Stream: "CATALOG", Subject: "catalog.translation.requested"}

	_, err := NewNATSPublisher(context.Background(), cfg, "test", zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats: connect")
}
