// Package liquidity turns an input amount into an output amount by walking
// order book depth level by level.
package liquidity

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// Direction selects which side of the book is consumed and how a level's
// notional is measured.
type Direction int

const (
	// SellQuote spends the quote asset against asks. A level's notional is
	// price*quantity and the output is base quantity.
	SellQuote Direction = iota
	// SellBase spends the base asset against bids. A level's notional is its
	// quantity and the output is quote proceeds.
	SellBase
)

func (d Direction) String() string {
	if d == SellBase {
		return "sell_base"
	}
	return "sell_quote"
}

// Result is the outcome of a walk. Executed and Remainder are in tradable
// units: Executed+Remainder+Fee always equals the requested input.
type Result struct {
	AmountOut decimal.Decimal
	Executed  decimal.Decimal
	Remainder decimal.Decimal
	Fee       decimal.Decimal
}

// Filled reports whether the whole input was consumed.
func (r Result) Filled() bool {
	return r.Remainder.IsZero()
}

// Walk charges feeRate*amountIn once, then fills the remaining amount
// greedily across levels in the order given. A level that fits is consumed
// whole; the first level that does not fit is filled fractionally and the
// walk stops there. Levels with non-positive price or quantity are skipped.
// Running out of levels leaves the unfilled amount in Remainder.
func Walk(levels []domain.OrderBookLevel, amountIn, feeRate decimal.Decimal, dir Direction) Result {
	if !amountIn.IsPositive() {
		return Result{Remainder: amountIn}
	}
	if feeRate.IsNegative() {
		feeRate = decimal.Zero
	}

	fee := amountIn.Mul(feeRate)
	remaining := amountIn.Sub(fee)
	out := decimal.Zero

	for _, lvl := range levels {
		if !remaining.IsPositive() {
			break
		}
		if !lvl.Price.IsPositive() || !lvl.Quantity.IsPositive() {
			continue
		}

		switch dir {
		case SellQuote:
			notional := lvl.Price.Mul(lvl.Quantity)
			if remaining.GreaterThanOrEqual(notional) {
				remaining = remaining.Sub(notional)
				out = out.Add(lvl.Quantity)
				continue
			}
			out = out.Add(remaining.Div(lvl.Price))
		case SellBase:
			if remaining.GreaterThanOrEqual(lvl.Quantity) {
				remaining = remaining.Sub(lvl.Quantity)
				out = out.Add(lvl.Quantity.Mul(lvl.Price))
				continue
			}
			out = out.Add(remaining.Mul(lvl.Price))
		}
		remaining = decimal.Zero
	}

	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return Result{
		AmountOut: out,
		Executed:  amountIn.Sub(fee).Sub(remaining),
		Remainder: remaining,
		Fee:       fee,
	}
}
