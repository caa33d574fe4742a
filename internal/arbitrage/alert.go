package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/notify"
)

// AlertTimeFormat renders alert timestamps as yy/mm/dd HH:MM:SS, TZ.
const AlertTimeFormat = "06/01/02 15:04:05, MST"

// Notifier delivers a formatted alert. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Recorder persists a qualifying result. *service.ArbService satisfies it.
type Recorder interface {
	Record(ctx context.Context, res domain.ArbitrageResult) error
}

// AlerterConfig tunes an Alerter.
type AlerterConfig struct {
	// UIBaseURL is the aggregator web app used for per-leg links, e.g.
	// https://app.1inch.io.
	UIBaseURL    string
	HighFeeVenue string
	// Cooldown suppresses repeats of the same pair, amount and venues.
	// Zero alerts every time.
	Cooldown  time.Duration
	CacheSize int
	// Timeout bounds one delivery, notification plus persistence.
	Timeout time.Duration
}

// Alerter is the evaluator's Sink. Delivery runs in the background so a
// slow notifier never stalls the loop; failures are only logged.
type Alerter struct {
	cfg      AlerterConfig
	notifier Notifier
	recorder Recorder
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	recent *lru.Cache
	wg     sync.WaitGroup
}

var _ Sink = (*Alerter)(nil)

// NewAlerter creates an Alerter. notifier and recorder may be nil.
func NewAlerter(cfg AlerterConfig, notifier Notifier, recorder Recorder, now func() time.Time, logger *slog.Logger) (*Alerter, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	recent, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("arbitrage: alert cache: %w", err)
	}
	return &Alerter{
		cfg:      cfg,
		notifier: notifier,
		recorder: recorder,
		now:      now,
		recent:   recent,
		logger:   logger.With(slog.String("component", "alerter")),
	}, nil
}

func cooldownKey(res domain.ArbitrageResult) string {
	return strings.Join([]string{
		res.Base + "/" + res.Counter,
		domain.AmountKey(res.LegOut.AmountIn),
		res.LegOut.Venue.ID,
		res.LegBack.Venue.ID,
	}, "|")
}

// suppressed reports whether an identical opportunity was alerted within
// the cooldown, and marks this one as alerted otherwise.
func (a *Alerter) suppressed(res domain.ArbitrageResult) bool {
	if a.cfg.Cooldown <= 0 {
		return false
	}
	key := cooldownKey(res)
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if v, ok := a.recent.Get(key); ok {
		if now.Sub(v.(time.Time)) < a.cfg.Cooldown {
			return true
		}
	}
	a.recent.Add(key, now)
	return false
}

// Alert logs res and hands it to the notifier and recorder in the
// background.
func (a *Alerter) Alert(ctx context.Context, res domain.ArbitrageResult) {
	if a.suppressed(res) {
		a.logger.Debug("alert suppressed by cooldown", slog.String("key", cooldownKey(res)))
		return
	}

	a.logger.Info("arbitrage",
		slog.String("arb_id", res.ID),
		slog.String("pair", res.Base+"/"+res.Counter),
		slog.String("amount_in", res.LegOut.AmountIn.String()),
		slog.String("leg_out", res.LegOut.Venue.Name),
		slog.String("leg_back", res.LegBack.Venue.Name),
		slog.String("profit", res.Profit.String()),
	)

	msg := FormatMessage(res, a.cfg.UIBaseURL, a.cfg.HighFeeVenue)
	dctx := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		dctx, cancel := context.WithTimeout(dctx, a.cfg.Timeout)
		defer cancel()

		if a.notifier != nil {
			if err := a.notifier.Notify(dctx, notify.EventArbitrage, "", msg); err != nil {
				a.logger.Warn("alert delivery failed", slog.String("arb_id", res.ID), slog.String("error", err.Error()))
			}
		}
		if a.recorder != nil {
			if err := a.recorder.Record(dctx, res); err != nil {
				a.logger.Warn("record arbitrage failed", slog.String("arb_id", res.ID), slog.String("error", err.Error()))
			}
		}
	}()
}

// Wait blocks until in-flight deliveries finish.
func (a *Alerter) Wait() {
	a.wg.Wait()
}

// FormatMessage renders res as the HTML alert body: a timestamp, one linked
// line per leg and the profit. When either leg runs on the high-fee venue
// the first known fee estimate is appended.
func FormatMessage(res domain.ArbitrageResult, uiBase, highFeeVenue string) string {
	out, back := res.LegOut, res.LegBack
	basePlaces := int32(out.AssetIn.Decimals / 4)
	counterPlaces := int32(out.AssetOut.Decimals / 4)

	var b strings.Builder
	b.WriteString(res.DetectedAt.Format(AlertTimeFormat))
	b.WriteString("\n1) ")
	b.WriteString(legLine(uiBase, out, res.Base, res.Counter,
		out.AmountIn.Round(basePlaces), out.AmountOut.Round(counterPlaces)))
	b.WriteString("\n2) ")
	b.WriteString(legLine(uiBase, back, res.Counter, res.Base,
		back.AmountIn.Round(counterPlaces), back.AmountOut.Round(basePlaces)))
	fmt.Fprintf(&b, "\n-->Arbitrage: %s %s", Group(res.Profit), res.Base)

	if out.Venue.ID == highFeeVenue || back.Venue.ID == highFeeVenue {
		if fee, ok := out.Cost.KnownFee(); ok {
			fmt.Fprintf(&b, ", swap+bridge fees ~$%s", Group(fee.Round(0)))
		} else if fee, ok := back.Cost.KnownFee(); ok {
			fmt.Fprintf(&b, ", swap+bridge fees ~$%s", Group(fee.Round(0)))
		} else {
			b.WriteString(", swap+bridge fees n/a")
		}
	}
	return b.String()
}

func legLine(uiBase string, q domain.Quote, from, to string, in, out decimal.Decimal) string {
	text := fmt.Sprintf("Sell %s %s for %s %s on %s", Group(in), from, Group(out), to, q.Venue.Name)
	if q.Venue.Kind == domain.CentralizedExchange || uiBase == "" {
		return text
	}
	return fmt.Sprintf("<a href='%s/#/%s/swap/%s/%s'>%s</a>",
		strings.TrimRight(uiBase, "/"), q.Venue.ID, from, to, text)
}

// Group formats d with comma thousands separators.
func Group(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
