package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/venue"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeAdapter sleeps for delay, ignoring its context when stubborn is set.
type fakeAdapter struct {
	id       string
	delay    time.Duration
	stubborn bool
	fail     error
	panics   bool
	active   *atomic.Int32
	peak     *atomic.Int32
}

func (f *fakeAdapter) Venue() domain.Venue { return domain.Venue{ID: f.id} }
func (f *fakeAdapter) Supports(_, _ domain.Asset) bool { return true }

func (f *fakeAdapter) Quote(ctx context.Context, req venue.Request) (domain.Quote, error) {
	if f.active != nil {
		n := f.active.Add(1)
		defer f.active.Add(-1)
		for {
			p := f.peak.Load()
			if n <= p || f.peak.CompareAndSwap(p, n) {
				break
			}
		}
	}
	if f.panics {
		panic("boom")
	}
	if f.stubborn {
		time.Sleep(f.delay)
	} else {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Quote{}, domain.NewQuoteError(f.id, domain.ErrConnectivity, "", ctx.Err())
		}
	}
	if f.fail != nil {
		return domain.Quote{}, f.fail
	}
	return domain.Quote{Venue: f.Venue(), AmountIn: req.AmountIn, AmountOut: req.AmountIn.Mul(decimal.NewFromInt(2))}, nil
}

func req(a venue.Adapter, amount int64) Request {
	return Request{Adapter: a, Input: venue.Request{AmountIn: decimal.NewFromInt(amount)}}
}

func TestDispatch_TimeoutsDoNotDropResults(t *testing.T) {
	d := NewDispatcher(10, 100*time.Millisecond, discard)

	reqs := []Request{
		req(&fakeAdapter{id: "a", delay: 5 * time.Millisecond}, 1),
		req(&fakeAdapter{id: "b", delay: time.Second}, 2),
		req(&fakeAdapter{id: "c", delay: 5 * time.Millisecond}, 3),
		req(&fakeAdapter{id: "d", delay: time.Second, stubborn: true}, 4),
		req(&fakeAdapter{id: "e", delay: 5 * time.Millisecond}, 5),
	}

	start := time.Now()
	results := d.Dispatch(context.Background(), reqs)
	elapsed := time.Since(start)

	require.Len(t, results, 5)
	assert.Less(t, elapsed, 800*time.Millisecond, "a stubborn adapter must not hold up the fan-out")

	for i, r := range results {
		assert.Equal(t, reqs[i].Adapter.Venue().ID, r.Request.Adapter.Venue().ID)
	}
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, domain.ErrConnectivity)
	assert.True(t, results[2].OK())
	assert.ErrorIs(t, results[3].Err, domain.ErrConnectivity)
	assert.True(t, results[4].OK())
	assert.Equal(t, "10", results[4].Quote.AmountOut.String())

	assert.Len(t, Successful(results), 3)
}

func TestDispatch_FailureIsolated(t *testing.T) {
	d := NewDispatcher(2, time.Second, discard)
	failing := domain.NewQuoteError("x", domain.ErrResponse, "HTTP 500", nil)

	results := d.Dispatch(context.Background(), []Request{
		req(&fakeAdapter{id: "x", fail: failing}, 1),
		req(&fakeAdapter{id: "y", delay: 20 * time.Millisecond}, 1),
		req(&fakeAdapter{id: "z", panics: true}, 1),
	})

	assert.ErrorIs(t, results[0].Err, domain.ErrResponse)
	assert.True(t, results[1].OK())
	assert.ErrorIs(t, results[2].Err, domain.ErrResponse)
}

func TestDispatch_RespectsCeiling(t *testing.T) {
	var active, peak atomic.Int32
	d := NewDispatcher(3, time.Second, discard)

	reqs := make([]Request, 12)
	for i := range reqs {
		reqs[i] = req(&fakeAdapter{id: "v", delay: 10 * time.Millisecond, active: &active, peak: &peak}, int64(i+1))
	}
	results := d.Dispatch(context.Background(), reqs)

	assert.Len(t, Successful(results), 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestDispatch_Empty(t *testing.T) {
	assert.Empty(t, NewDispatcher(4, time.Second, discard).Dispatch(context.Background(), nil))
}
