package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Asset is a token as it exists on one venue. Identity is the address within
// the venue's network; Name is only a display label.
type Asset struct {
	Name     string
	Address  string
	Decimals uint8
}

// ToBaseUnits converts a human amount into the integer base units used on the
// wire, truncating anything finer than the asset's precision.
func (a Asset) ToBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(int32(a.Decimals)).Truncate(0).BigInt()
}

// FromBaseUnits converts integer base units into a human amount.
func (a Asset) FromBaseUnits(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(a.Decimals))
}

// VenueKind distinguishes on-chain aggregator networks from centralized
// order books.
type VenueKind int

const (
	OnChainNetwork VenueKind = iota
	CentralizedExchange
)

func (k VenueKind) String() string {
	switch k {
	case OnChainNetwork:
		return "onchain"
	case CentralizedExchange:
		return "cex"
	default:
		return "unknown"
	}
}

// Venue is a place a swap can be priced. ID is the network id used in
// aggregator URLs ("1", "137", ...) or a synthetic id for exchanges.
type Venue struct {
	ID   string
	Name string
	Kind VenueKind
}

// Listing is the pair's two assets as they exist on a single venue.
type Listing struct {
	Venue   Venue
	Base    Asset
	Counter Asset
}

// Pair is a base asset (the one profit is measured in) and a counter asset,
// together with the venues both are listed on and the swap amounts.
type Pair struct {
	Base      string
	Counter   string
	Listings  map[string]Listing // keyed by venue id
	Amounts   []decimal.Decimal
	MinProfit decimal.Decimal
}

// Name returns the display name "BASE/COUNTER".
func (p Pair) Name() string {
	return p.Base + "/" + p.Counter
}
