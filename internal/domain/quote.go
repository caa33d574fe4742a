package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Cost is the execution cost attached to a quote. Every field is optional;
// nil means the value is unknown.
type Cost struct {
	GasUnits    *uint64
	GasPriceWei *big.Int
	// FeeAmount is the total swap plus bridge cost expressed in the
	// settlement asset.
	FeeAmount *decimal.Decimal
	// ExchangeFee is the taker fee charged by an order book, in units of
	// the input asset.
	ExchangeFee *decimal.Decimal
}

// KnownFee reports the fee amount and whether it is known.
func (c Cost) KnownFee() (decimal.Decimal, bool) {
	if c.FeeAmount == nil {
		return decimal.Zero, false
	}
	return *c.FeeAmount, true
}

// Quote is a priced swap on one venue. AmountIn - Remainder is what was
// actually executed; Remainder is non-zero only when liquidity ran out.
type Quote struct {
	Venue     Venue
	Cost      Cost
	AssetIn   Asset
	AmountIn  decimal.Decimal
	AssetOut  Asset
	AmountOut decimal.Decimal
	Remainder decimal.Decimal
}

// Executed returns the portion of AmountIn that was filled, exchange fee
// included.
func (q Quote) Executed() decimal.Decimal {
	return q.AmountIn.Sub(q.Remainder)
}

// RouteSet groups quotes by the canonical string of the requested input
// amount.
type RouteSet map[string][]Quote

// AmountKey is the RouteSet key for an input amount.
func AmountKey(d decimal.Decimal) string {
	return d.String()
}

// Add files q under its input amount.
func (rs RouteSet) Add(q Quote) {
	k := AmountKey(q.AmountIn)
	rs[k] = append(rs[k], q)
}
