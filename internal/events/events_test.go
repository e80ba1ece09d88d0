package events_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/timelock/internal/events"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func ev(id string, typ model.EventType, amount model.Amount) model.Event {
	return model.Event{ID: id, Type: typ, Amount: amount, Timestamp: t0}
}

func toggled(id string, enabled bool) model.Event {
	e := ev(id, model.EventDepositsToggled, 0)
	e.Enabled = &enabled
	return e
}

func TestBus_DeliversInOrder(t *testing.T) {
	bus := events.NewBus(logging.Discard())
	var got []string
	bus.Subscribe("a", events.SinkFunc(func(_ context.Context, e model.Event) error {
		got = append(got, "a:"+e.ID)
		return nil
	}))
	bus.Subscribe("b", events.SinkFunc(func(_ context.Context, e model.Event) error {
		got = append(got, "b:"+e.ID)
		return nil
	}))

	bus.Emit(context.Background(), ev("1", model.EventDeposited, 5))
	bus.Emit(context.Background(), ev("2", model.EventDeposited, 5))
	assert.Equal(t, []string{"a:1", "b:1", "a:2", "b:2"}, got)
}

func TestBus_FailingSinkIsLoggedAndSkipped(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewLogger(logging.LevelInfo)
	log.SetOutput(&buf)
	bus := events.NewBus(log)

	rec := events.NewRecorder()
	bus.Subscribe("broken", events.SinkFunc(func(context.Context, model.Event) error {
		return errors.New("disk full")
	}))
	bus.Subscribe("recorder", rec)

	bus.Emit(context.Background(), ev("1", model.EventDeposited, 5))
	assert.Equal(t, 1, rec.Len())
	assert.Contains(t, buf.String(), "event sink failed")
	assert.Contains(t, buf.String(), "broken")
	assert.Contains(t, buf.String(), "disk full")
}

func TestBus_ConcurrentSubscribeAndEmit(t *testing.T) {
	bus := events.NewBus(logging.Discard())
	rec := events.NewRecorder()
	bus.Subscribe("recorder", rec)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			bus.Emit(context.Background(), ev("x", model.EventDeposited, 1))
		}()
		go func() {
			defer wg.Done()
			bus.Subscribe("noop", events.SinkFunc(func(context.Context, model.Event) error { return nil }))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, rec.Len())
}

func TestRecorder(t *testing.T) {
	rec := events.NewRecorder()
	_, ok := rec.Last()
	assert.False(t, ok)

	rec.Emit(context.Background(), ev("1", model.EventDeposited, 3))
	rec.Emit(context.Background(), toggled("2", false))
	rec.Emit(context.Background(), ev("3", model.EventDeposited, 4))

	assert.Equal(t, 3, rec.Len())
	assert.Len(t, rec.ByType(model.EventDeposited), 2)
	assert.Empty(t, rec.ByType(model.EventWithdrawn))

	last, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, "3", last.ID)

	evs := rec.Events()
	evs[0].ID = "mutated"
	assert.Equal(t, "1", rec.Events()[0].ID)
}

func TestReplay_Lifecycle(t *testing.T) {
	stream := []model.Event{
		ev("0", model.EventDeployed, 0),
		ev("1", model.EventDeposited, 100),
		ev("2", model.EventWithdrawalInitiated, 100),
		ev("3", model.EventDeposited, 50),
		toggled("4", false),
		ev("5", model.EventWithdrawn, 100),
		ev("6", model.EventEmergencyWithdrawal, 50),
	}
	p, err := events.Replay(stream)
	require.NoError(t, err)

	assert.Zero(t, p.Balance)
	assert.Zero(t, p.Pending)
	assert.False(t, p.DepositsEnabled)
	assert.Equal(t, model.Amount(150), p.Deposited)
	assert.Equal(t, model.Amount(150), p.Released)

	require.Len(t, p.History, len(stream))
	balances := make([]model.Amount, len(p.History))
	for i, pt := range p.History {
		balances[i] = pt.Balance
	}
	assert.Equal(t, []model.Amount{0, 100, 100, 150, 150, 50, 0}, balances)
	assert.Equal(t, model.Amount(100), p.History[2].Pending)
	assert.Equal(t, "5", p.History[5].EventID)
}

func TestReplay_Empty(t *testing.T) {
	p, err := events.Replay(nil)
	require.NoError(t, err)
	assert.True(t, p.DepositsEnabled)
	assert.Empty(t, p.History)
}

func TestReplay_RejectsImpossibleStreams(t *testing.T) {
	tests := []struct {
		name   string
		stream []model.Event
	}{
		{"late deploy", []model.Event{ev("1", model.EventDeposited, 1), ev("2", model.EventDeployed, 0)}},
		{"overflow", []model.Event{ev("1", model.EventDeposited, model.Amount(^uint64(0))), ev("2", model.EventDeposited, 1)}},
		{"toggle without state", []model.Event{ev("1", model.EventDepositsToggled, 0)}},
		{"commit differs from balance", []model.Event{ev("1", model.EventDeposited, 10), ev("2", model.EventWithdrawalInitiated, 5)}},
		{"withdraw without commit", []model.Event{ev("1", model.EventDeposited, 10), ev("2", model.EventWithdrawn, 10)}},
		{"partial emergency", []model.Event{ev("1", model.EventDeposited, 10), ev("2", model.EventEmergencyWithdrawal, 4)}},
		{"unknown type", []model.Event{ev("1", model.EventType("minted"), 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := events.Replay(tt.stream)
			assert.Error(t, err)
		})
	}
}
