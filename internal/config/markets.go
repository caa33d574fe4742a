package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// DefaultNetworks maps venue names used in the markets file to venue ids.
var DefaultNetworks = map[string]string{
	"Ethereum":   "1",
	"Binance":    "56",
	"BinanceCEX": "0000",
	"Polygon":    "137",
	"Optimism":   "10",
	"Arbitrum":   "42161",
	"Avalanche":  "43114",
	"Fantom":     "250",
	"Gnosis":     "100",
}

// DefaultBaseToken is the asset profit is measured in when the markets file
// does not name one.
const DefaultBaseToken = "USDC"

// cexDecimals is used for exchange listings that omit decimals.
const cexDecimals = 8

// Markets is the decoded markets file.
type Markets struct {
	BaseToken  string                   `json:"base_token"`
	Networks   map[string]string        `json:"networks"`
	BaseTokens map[string]TokenEntry    `json:"base_tokens"`
	ArbTokens  map[string]ArbTokenEntry `json:"arb_tokens"`
}

// TokenEntry lists where a token lives, keyed by venue name.
type TokenEntry struct {
	Networks map[string]NetworkEntry `json:"networks"`
}

// ArbTokenEntry is a counter asset with its swap amounts and alert threshold.
type ArbTokenEntry struct {
	Networks   map[string]NetworkEntry `json:"networks"`
	SwapAmount AmountSpec              `json:"swap_amount"`
	MinArb     decimal.Decimal         `json:"min_arb"`
}

// NetworkEntry is a token's address and precision on one venue. For an
// exchange the address is the ticker and may be omitted.
type NetworkEntry struct {
	Address  string `json:"address"`
	Decimals *int   `json:"decimals"`
}

// AmountSpec is the list of input amounts to quote. It decodes from a single
// number, a list of numbers, or {"start", "stop", "step"} with stop included.
type AmountSpec []decimal.Decimal

// UnmarshalJSON implements json.Unmarshaler.
func (a *AmountSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = nil
		return nil
	}

	switch data[0] {
	case '[':
		var list []decimal.Decimal
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("swap_amount list: %w", err)
		}
		*a = list
	case '{':
		var r struct {
			Start decimal.Decimal `json:"start"`
			Stop  decimal.Decimal `json:"stop"`
			Step  decimal.Decimal `json:"step"`
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("swap_amount range: %w", err)
		}
		if !r.Step.IsPositive() {
			return fmt.Errorf("swap_amount range: step must be > 0")
		}
		if r.Stop.LessThan(r.Start) {
			return fmt.Errorf("swap_amount range: stop must be >= start")
		}
		var list []decimal.Decimal
		for v := r.Start; v.LessThanOrEqual(r.Stop); v = v.Add(r.Step) {
			list = append(list, v)
			if len(list) > 10_000 {
				return fmt.Errorf("swap_amount range: too many amounts")
			}
		}
		*a = list
	default:
		var one decimal.Decimal
		if err := json.Unmarshal(data, &one); err != nil {
			return fmt.Errorf("swap_amount: %w", err)
		}
		*a = AmountSpec{one}
	}
	return nil
}

// MarketOptions tells BuildPairs which venue is the order book exchange.
type MarketOptions struct {
	ExchangeEnabled bool
	ExchangeID      string
	ExchangeName    string
}

// LoadMarkets reads and decodes the markets file at path.
func LoadMarkets(path string) (*Markets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read markets %s: %w", path, err)
	}
	return ParseMarkets(raw)
}

// ParseMarkets decodes a markets document and fills defaults.
func ParseMarkets(raw []byte) (*Markets, error) {
	var m Markets
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("config: decode markets: %w", err)
	}
	if m.BaseToken == "" {
		m.BaseToken = DefaultBaseToken
	}
	if len(m.Networks) == 0 {
		m.Networks = make(map[string]string, len(DefaultNetworks))
		for k, v := range DefaultNetworks {
			m.Networks[k] = v
		}
	}
	return &m, nil
}

// BuildPairs turns the markets document into one Pair per arb token, each
// listed on the venues it shares with the base token. Pairs are returned in
// counter-name order.
func (m *Markets) BuildPairs(opts MarketOptions) ([]domain.Pair, error) {
	base, ok := m.BaseTokens[m.BaseToken]
	if !ok {
		return nil, fmt.Errorf("config: %w: base token %q not in base_tokens", domain.ErrConfiguration, m.BaseToken)
	}

	names := make([]string, 0, len(m.ArbTokens))
	for name := range m.ArbTokens {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []string
	pairs := make([]domain.Pair, 0, len(names))
	for _, name := range names {
		entry := m.ArbTokens[name]
		if len(entry.SwapAmount) == 0 {
			errs = append(errs, fmt.Sprintf("%s: swap_amount must not be empty", name))
			continue
		}
		for _, amt := range entry.SwapAmount {
			if !amt.IsPositive() {
				errs = append(errs, fmt.Sprintf("%s: swap_amount %s must be > 0", name, amt))
			}
		}

		pair := domain.Pair{
			Base:      m.BaseToken,
			Counter:   name,
			Listings:  make(map[string]domain.Listing),
			Amounts:   []decimal.Decimal(entry.SwapAmount),
			MinProfit: entry.MinArb,
		}

		for netName, counterNet := range entry.Networks {
			baseNet, shared := base.Networks[netName]
			if !shared {
				continue
			}
			venue, err := m.venue(netName, opts)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", name, err))
				continue
			}
			if venue.Kind == domain.CentralizedExchange && !opts.ExchangeEnabled {
				continue
			}
			baseAsset, err := asset(m.BaseToken, baseNet, venue)
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			counterAsset, err := asset(name, counterNet, venue)
			if err != nil {
				errs = append(errs, err.Error())
				continue
			}
			pair.Listings[venue.ID] = domain.Listing{Venue: venue, Base: baseAsset, Counter: counterAsset}
		}
		pairs = append(pairs, pair)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %w: markets:\n  - %s", domain.ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return pairs, nil
}

func (m *Markets) venue(name string, opts MarketOptions) (domain.Venue, error) {
	id, ok := m.Networks[name]
	if !ok {
		return domain.Venue{}, fmt.Errorf("unknown network %q", name)
	}
	kind := domain.OnChainNetwork
	if name == opts.ExchangeName || id == opts.ExchangeID {
		kind = domain.CentralizedExchange
	}
	return domain.Venue{ID: id, Name: name, Kind: kind}, nil
}

func asset(token string, n NetworkEntry, v domain.Venue) (domain.Asset, error) {
	a := domain.Asset{Name: token, Address: n.Address}
	if v.Kind == domain.CentralizedExchange {
		if a.Address == "" {
			a.Address = strings.ToUpper(token)
		}
		a.Decimals = cexDecimals
		if n.Decimals != nil {
			a.Decimals = uint8(*n.Decimals)
		}
		return a, nil
	}

	if !common.IsHexAddress(n.Address) {
		return a, fmt.Errorf("%s on %s: invalid address %q", token, v.Name, n.Address)
	}
	if n.Decimals == nil || *n.Decimals < 0 || *n.Decimals > 36 {
		return a, fmt.Errorf("%s on %s: decimals must be set and within 0-36", token, v.Name)
	}
	a.Decimals = uint8(*n.Decimals)
	return a, nil
}

// SharedNetworks lists, per counter asset, the venue names it shares with the
// base token. Used for the startup summary.
func (m *Markets) SharedNetworks() map[string][]string {
	base := m.BaseTokens[m.BaseToken]
	out := make(map[string][]string, len(m.ArbTokens))
	for name, entry := range m.ArbTokens {
		var nets []string
		for net := range entry.Networks {
			if _, ok := base.Networks[net]; ok {
				nets = append(nets, net)
			}
		}
		sort.Strings(nets)
		out[name] = nets
	}
	return out
}

// ExchangeSymbols returns the exchange tickers implied by the pairs, using
// quote assets to orient each symbol the way the exchange lists it.
func ExchangeSymbols(pairs []domain.Pair, quoteAssets []string) []string {
	quotes := make(map[string]bool, len(quoteAssets))
	for _, q := range quoteAssets {
		quotes[strings.ToUpper(q)] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, p := range pairs {
		for _, l := range p.Listings {
			if l.Venue.Kind != domain.CentralizedExchange {
				continue
			}
			b, c := strings.ToUpper(l.Base.Address), strings.ToUpper(l.Counter.Address)
			var sym string
			switch {
			case quotes[b]:
				sym = c + b
			case quotes[c]:
				sym = b + c
			default:
				continue
			}
			if !seen[sym] {
				seen[sym] = true
				out = append(out, sym)
			}
		}
	}
	sort.Strings(out)
	return out
}
