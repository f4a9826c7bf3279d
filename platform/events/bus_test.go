package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"lead_intake_backend/platform/logger"

	"github.com/stretchr/testify/assert"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func quietLogger() *logger.Logger {
	return logger.NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishRunsAllHandlers(t *testing.T) {
	bus := NewInMemoryBus(quietLogger())
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
			calls.Add(1)
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{NewBaseEvent()})
	cancel()
	bus.Wait()

	assert.Equal(t, int32(3), calls.Load())
}

func TestPublishSurvivesPanickingHandler(t *testing.T) {
	bus := NewInMemoryBus(quietLogger())
	var ran atomic.Bool
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error { panic("boom") }))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		ran.Store(true)
		return nil
	}))

	bus.Publish(context.Background(), pingEvent{NewBaseEvent()})
	bus.Wait()

	assert.True(t, ran.Load())
}

type otherEvent struct{ BaseEvent }

func (otherEvent) EventName() string { return "test.other" }

func TestPublishOnlyReachesMatchingSubscribers(t *testing.T) {
	bus := NewInMemoryBus(quietLogger())
	var pings, others atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		pings.Add(1)
		return nil
	}))
	bus.Subscribe("test.other", HandlerFunc(func(context.Context, Event) error {
		others.Add(1)
		return errors.New("logged, not returned")
	}))

	bus.Publish(context.Background(), otherEvent{NewBaseEvent()})
	bus.Wait()

	assert.Equal(t, int32(0), pings.Load())
	assert.Equal(t, int32(1), others.Load())
}
