// Package scheduler fans quote requests out to venues with a concurrency
// ceiling and a per-request time budget.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/metrics"
	"github.com/alanyoungcy/swapwatch/internal/venue"
)

// Request is one unit of work: ask Adapter to price Input.
type Request struct {
	Adapter venue.Adapter
	Input   venue.Request
}

// Result pairs a request with its outcome. Exactly one of Quote and Err is
// meaningful.
type Result struct {
	Request Request
	Quote   domain.Quote
	Err     error
	Elapsed time.Duration
}

// OK reports whether the request produced a quote.
func (r Result) OK() bool { return r.Err == nil }

// Dispatcher runs quote requests concurrently.
type Dispatcher struct {
	ceiling int
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher that runs at most ceiling requests at
// once and gives each one timeout to finish.
func NewDispatcher(ceiling int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if ceiling < 1 {
		ceiling = 1
	}
	return &Dispatcher{
		ceiling: ceiling,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Dispatch runs every request and blocks until each has returned or timed
// out. results[i] always belongs to reqs[i]. A failing or slow request never
// cancels its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(min(len(reqs), d.ceiling))
	for i, req := range reqs {
		g.Go(func() error {
			results[i] = d.run(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Successful returns the quotes of all successful results.
func Successful(results []Result) []domain.Quote {
	out := make([]domain.Quote, 0, len(results))
	for _, r := range results {
		if r.OK() {
			out = append(out, r.Quote)
		}
	}
	return out
}

type outcome struct {
	quote domain.Quote
	err   error
}

// run executes one request. The adapter call happens on its own goroutine
// so an adapter that ignores its context is abandoned at the deadline.
func (d *Dispatcher) run(ctx context.Context, req Request) Result {
	v := req.Adapter.Venue()
	start := time.Now()

	rctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: domain.NewQuoteError(v.ID, domain.ErrResponse, fmt.Sprintf("adapter panic: %v", p), nil)}
			}
		}()
		q, err := req.Adapter.Quote(rctx, req.Input)
		done <- outcome{quote: q, err: err}
	}()

	var res Result
	select {
	case o := <-done:
		res = Result{Request: req, Quote: o.quote, Err: o.err}
	case <-rctx.Done():
		res = Result{
			Request: req,
			Err:     domain.NewQuoteError(v.ID, domain.ErrConnectivity, "deadline exceeded", rctx.Err()),
		}
	}
	res.Elapsed = time.Since(start)

	if res.Err != nil {
		var qe *domain.QuoteError
		if !errors.As(res.Err, &qe) {
			res.Err = domain.NewQuoteError(v.ID, domain.ErrResponse, "", res.Err)
		}
		metrics.QuoteErrors.WithLabelValues(v.ID, metrics.ErrorKind(res.Err)).Inc()
		d.logger.Debug("quote request failed",
			slog.String("venue", v.ID),
			slog.String("from", req.Input.AssetIn.Name),
			slog.String("to", req.Input.AssetOut.Name),
			slog.String("amount", req.Input.AmountIn.String()),
			slog.String("error", res.Err.Error()),
		)
	} else {
		metrics.QuoteLatency.WithLabelValues(v.ID).Observe(res.Elapsed.Seconds())
	}
	return res
}
