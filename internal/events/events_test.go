package events

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func testBus() *Bus {
	return NewBus(zerolog.New(nil).Level(zerolog.Disabled))
}

func TestBus_PublishDeliversToSubscribers(t *testing.T) {
	bus := testBus()

	var got []*Event
	bus.Subscribe(TradeSettled, func(e *Event) {
		got = append(got, e)
	})

	bus.Publish(&Event{Type: TradeSettled, Module: "trading"})
	bus.Publish(&Event{Type: TradeRejected, Module: "trading"})

	assert.Len(t, got, 1)
	assert.Equal(t, TradeSettled, got[0].Type)
	assert.Equal(t, "trading", got[0].Module)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestBus_SubscribeAllReceivesEveryType(t *testing.T) {
	bus := testBus()

	var count int
	bus.SubscribeAll(func(e *Event) {
		count++
	})

	bus.Publish(&Event{Type: ScoreUpdated})
	bus.Publish(&Event{Type: PriceUpdated})
	bus.Publish(&Event{Type: JobCompleted})

	assert.Equal(t, 3, count)
}

func TestBus_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	bus := testBus()

	var delivered bool
	bus.Subscribe(RankingUpdated, func(e *Event) {
		panic("handler blew up")
	})
	bus.Subscribe(RankingUpdated, func(e *Event) {
		delivered = true
	})

	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: RankingUpdated})
	})
	assert.True(t, delivered)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := testBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe(PriceUpdated, func(e *Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(&Event{Type: PriceUpdated})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
	assert.Equal(t, 1, bus.SubscriberCount(PriceUpdated))
}

func TestManager_EmitTyped(t *testing.T) {
	bus := testBus()
	mgr := NewManager(bus, zerolog.New(nil).Level(zerolog.Disabled))

	var got *Event
	bus.Subscribe(TradeRejected, func(e *Event) {
		got = e
	})

	mgr.EmitTyped(TradeRejected, "trading", TradeRejectedData{
		PortfolioID: "p1",
		Symbol:      "AAPL",
		Side:        "BUY",
		Reason:      "insufficient funds",
	})

	assert.NotNil(t, got)
	data, ok := got.Data.(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "AAPL", data["symbol"])
	assert.Equal(t, "insufficient funds", data["reason"])
}

func TestJobStatusData_OmitsEmptyFields(t *testing.T) {
	m := JobStatusData{JobName: "rescore"}.ToMap()
	assert.Equal(t, "rescore", m["job_name"])
	assert.NotContains(t, m, "duration_ms")
	assert.NotContains(t, m, "error")

	m = JobStatusData{JobName: "rescore", DurationMS: 12, Error: "boom"}.ToMap()
	assert.Equal(t, int64(12), m["duration_ms"])
	assert.Equal(t, "boom", m["error"])
}
