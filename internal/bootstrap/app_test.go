package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestApp_CloseReleasesInReverseOrder(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	app := &App{Logger: zap.New(core)}

	var order []string
	record := func(name string, err error) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}
	app.onClose("database", record("database", nil))
	app.onClose("run lock", record("run lock", errors.New("redis: connection reset")))
	app.onClose("outbox processor", record("outbox processor", nil))

	err := app.Close(context.Background())

	assert.Equal(t, []string{"outbox processor", "run lock", "database"}, order)
	assert.ErrorContains(t, err, "run lock: redis: connection reset")
	assert.Equal(t, 1, logs.FilterMessage("Error closing run lock").Len())

	order = nil
	assert.NoError(t, app.Close(context.Background()))
	assert.Empty(t, order)
}
