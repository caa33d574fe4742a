package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderBookLevel is a single price+quantity entry in an order book.
type OrderBookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBookSnapshot is a depth snapshot for one symbol. Bids are ordered
// highest price first and asks lowest price first.
type OrderBookSnapshot struct {
	Symbol       string
	LastUpdateID int64
	Bids         []OrderBookLevel
	Asks         []OrderBookLevel
	ReceivedAt   time.Time
}

// BestBid returns the top bid price, or false for an empty side.
func (s OrderBookSnapshot) BestBid() (decimal.Decimal, bool) {
	if len(s.Bids) == 0 {
		return decimal.Zero, false
	}
	return s.Bids[0].Price, true
}

// BestAsk returns the top ask price, or false for an empty side.
func (s OrderBookSnapshot) BestAsk() (decimal.Decimal, bool) {
	if len(s.Asks) == 0 {
		return decimal.Zero, false
	}
	return s.Asks[0].Price, true
}

// Age is how long ago the snapshot was received.
func (s OrderBookSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.ReceivedAt)
}
