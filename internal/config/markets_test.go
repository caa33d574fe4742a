package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

const marketsDoc = `{
  "base_tokens": {
    "USDC": {
      "networks": {
        "Ethereum":   {"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "decimals": 6},
        "Polygon":    {"address": "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174", "decimals": 6},
        "BinanceCEX": {}
      }
    }
  },
  "arb_tokens": {
    "LINK": {
      "networks": {
        "Ethereum":   {"address": "0x514910771AF9Ca656af840dff83E8264EcF986CA", "decimals": 18},
        "Polygon":    {"address": "0x53E0bca35eC356BD5ddDFebbD1Fc0fD03FaBad39", "decimals": 18},
        "Fantom":     {"address": "0xb3654dc3D10Ea7645f8319668E8F54d2574FBdC8", "decimals": 18},
        "BinanceCEX": {}
      },
      "swap_amount": [1000, "2500.5"],
      "min_arb": 5
    },
    "AAVE": {
      "networks": {
        "Ethereum": {"address": "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9", "decimals": 18}
      },
      "swap_amount": {"start": 1000, "stop": 3000, "step": 1000},
      "min_arb": 10
    }
  }
}`

func exchangeOpts() MarketOptions {
	return MarketOptions{ExchangeEnabled: true, ExchangeID: "0000", ExchangeName: "BinanceCEX"}
}

func TestBuildPairs(t *testing.T) {
	m, err := ParseMarkets([]byte(marketsDoc))
	require.NoError(t, err)
	assert.Equal(t, "USDC", m.BaseToken)

	pairs, err := m.BuildPairs(exchangeOpts())
	require.NoError(t, err)
	require.Len(t, pairs, 2)

	aave, link := pairs[0], pairs[1]
	assert.Equal(t, "USDC/AAVE", aave.Name())
	assert.Equal(t, []string{"1000", "2000", "3000"}, amountStrings(aave.Amounts))
	assert.Len(t, aave.Listings, 1)

	assert.Equal(t, []string{"1000", "2500.5"}, amountStrings(link.Amounts))
	assert.True(t, link.MinProfit.Equal(decimal.NewFromInt(5)))
	// Fantom is not shared with the base token.
	assert.Len(t, link.Listings, 3)
	assert.NotContains(t, link.Listings, "250")

	eth := link.Listings["1"]
	assert.Equal(t, domain.OnChainNetwork, eth.Venue.Kind)
	assert.EqualValues(t, 6, eth.Base.Decimals)
	assert.EqualValues(t, 18, eth.Counter.Decimals)

	cex := link.Listings["0000"]
	assert.Equal(t, domain.CentralizedExchange, cex.Venue.Kind)
	assert.Equal(t, "USDC", cex.Base.Address)
	assert.Equal(t, "LINK", cex.Counter.Address)

	assert.Equal(t, []string{"LINKUSDC"}, ExchangeSymbols(pairs, []string{"USDT", "USDC"}))
	assert.Equal(t, []string{"BinanceCEX", "Ethereum", "Polygon"}, m.SharedNetworks()["LINK"])
}

func TestBuildPairs_ExchangeDisabled(t *testing.T) {
	m, err := ParseMarkets([]byte(marketsDoc))
	require.NoError(t, err)

	pairs, err := m.BuildPairs(MarketOptions{ExchangeID: "0000", ExchangeName: "BinanceCEX"})
	require.NoError(t, err)
	assert.NotContains(t, pairs[1].Listings, "0000")
}

func TestBuildPairs_Invalid(t *testing.T) {
	doc := `{
  "base_tokens": {"USDC": {"networks": {"Ethereum": {"address": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "decimals": 6}}}},
  "arb_tokens": {
    "BAD": {"networks": {"Ethereum": {"address": "not-an-address", "decimals": 18}}, "swap_amount": 100, "min_arb": 1},
    "ZERO": {"networks": {}, "swap_amount": [0], "min_arb": 1}
  }
}`
	m, err := ParseMarkets([]byte(doc))
	require.NoError(t, err)

	_, err = m.BuildPairs(exchangeOpts())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Contains(t, err.Error(), `invalid address "not-an-address"`)
	assert.Contains(t, err.Error(), "ZERO: swap_amount 0 must be > 0")
}

func TestBuildPairs_MissingBaseToken(t *testing.T) {
	m, err := ParseMarkets([]byte(`{"base_token": "DAI", "base_tokens": {}, "arb_tokens": {}}`))
	require.NoError(t, err)
	_, err = m.BuildPairs(exchangeOpts())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestAmountSpec(t *testing.T) {
	cases := map[string][]string{
		`250`:                                  {"250"},
		`"0.5"`:                                {"0.5"},
		`[1, 2]`:                               {"1", "2"},
		`{"start": 1, "stop": 2, "step": 0.5}`: {"1", "1.5", "2"},
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			var a AmountSpec
			require.NoError(t, a.UnmarshalJSON([]byte(in)))
			assert.Equal(t, want, amountStrings(a))
		})
	}

	var a AmountSpec
	assert.Error(t, a.UnmarshalJSON([]byte(`{"start": 1, "stop": 2, "step": 0}`)))
	assert.Error(t, a.UnmarshalJSON([]byte(`{"start": 3, "stop": 2, "step": 1}`)))
}

func TestLoadMarkets_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.json")
	require.NoError(t, os.WriteFile(path, []byte(marketsDoc), 0o600))

	m, err := LoadMarkets(path)
	require.NoError(t, err)
	assert.Equal(t, "0000", m.Networks["BinanceCEX"])

	_, err = LoadMarkets(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func amountStrings(ds []decimal.Decimal) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
