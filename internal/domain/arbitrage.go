package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArbitrageResult is a round trip base -> counter -> base whose profit
// cleared the pair's minimum.
type ArbitrageResult struct {
	ID         string          `json:"id"`
	Base       string          `json:"base"`
	Counter    string          `json:"counter"`
	LegOut     Quote           `json:"leg_out"`
	LegBack    Quote           `json:"leg_back"`
	Profit     decimal.Decimal `json:"profit"`
	DetectedAt time.Time       `json:"detected_at"`
}

// ArbRecord is the flattened, persisted form of an ArbitrageResult.
type ArbRecord struct {
	ID            string           `json:"id"`
	Base          string           `json:"base"`
	Counter       string           `json:"counter"`
	AmountIn      decimal.Decimal  `json:"amount_in"`
	CounterAmount decimal.Decimal  `json:"counter_amount"`
	AmountBack    decimal.Decimal  `json:"amount_back"`
	Profit        decimal.Decimal  `json:"profit"`
	LegOutVenue   string           `json:"leg_out_venue"`
	LegBackVenue  string           `json:"leg_back_venue"`
	FeeEstimate   *decimal.Decimal `json:"fee_estimate,omitempty"`
	DetectedAt    time.Time        `json:"detected_at"`
}

// Record flattens r for storage.
func (r ArbitrageResult) Record() ArbRecord {
	rec := ArbRecord{
		ID:            r.ID,
		Base:          r.Base,
		Counter:       r.Counter,
		AmountIn:      r.LegOut.AmountIn,
		CounterAmount: r.LegOut.AmountOut,
		AmountBack:    r.LegBack.AmountOut,
		Profit:        r.Profit,
		LegOutVenue:   r.LegOut.Venue.ID,
		LegBackVenue:  r.LegBack.Venue.ID,
		DetectedAt:    r.DetectedAt,
	}
	if fee, ok := r.LegOut.Cost.KnownFee(); ok {
		rec.FeeEstimate = &fee
	} else if fee, ok := r.LegBack.Cost.KnownFee(); ok {
		rec.FeeEstimate = &fee
	}
	return rec
}
