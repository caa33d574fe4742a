package venue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/cache/memory"
	"github.com/alanyoungcy/swapwatch/internal/domain"
	"github.com/alanyoungcy/swapwatch/internal/platform/oneinch"
)

var (
	discard  = slog.New(slog.NewTextHandler(io.Discard, nil))
	ethereum = domain.Venue{ID: "1", Name: "Ethereum", Kind: domain.OnChainNetwork}
	polygon  = domain.Venue{ID: "137", Name: "Polygon", Kind: domain.OnChainNetwork}
	cex      = domain.Venue{ID: "0000", Name: "BinanceCEX", Kind: domain.CentralizedExchange}

	usdcPoly = domain.Asset{Name: "USDC", Address: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174", Decimals: 6}
	wethPoly = domain.Asset{Name: "WETH", Address: "0x7ceb23fd6bc0add59e62ac25578270cff1b9f619", Decimals: 18}

	usdtCEX = domain.Asset{Name: "USDT", Address: "USDT", Decimals: 8}
	ethCEX  = domain.Asset{Name: "ETH", Address: "ETH", Decimals: 8}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixedFees struct{ fee decimal.Decimal }

func (f fixedFees) Estimate(_ context.Context, gas uint64) domain.Cost {
	fee := f.fee
	return domain.Cost{GasUnits: &gas, GasPriceWei: big.NewInt(1), FeeAmount: &fee}
}

func TestAggregatorAdapter_ConvertsUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/137/quote", r.URL.Path)
		assert.Equal(t, "1500000000", r.URL.Query().Get("amount"))
		_, _ = w.Write([]byte(`{"toTokenAmount":"987000000000000000","estimatedGas":150000}`))
	}))
	defer srv.Close()

	a := NewAggregatorAdapter(polygon, oneinch.NewClient(srv.URL, "", time.Second), nil, nil, discard)
	q, err := a.Quote(context.Background(), Request{AssetIn: usdcPoly, AssetOut: wethPoly, AmountIn: dec("1500")})
	require.NoError(t, err)

	assert.Equal(t, "0.987", q.AmountOut.String())
	assert.Equal(t, "137", q.Venue.ID)
	require.NotNil(t, q.Cost.GasUnits)
	assert.EqualValues(t, 150000, *q.Cost.GasUnits)
	assert.Nil(t, q.Cost.FeeAmount)
	assert.True(t, q.Remainder.IsZero())
}

func TestAggregatorAdapter_HighFeeNetworkAttachesCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"toTokenAmount":"1000000","estimatedGas":200000}`))
	}))
	defer srv.Close()

	a := NewAggregatorAdapter(ethereum, oneinch.NewClient(srv.URL, "", time.Second), nil, fixedFees{fee: dec("12.5")}, discard)
	q, err := a.Quote(context.Background(), Request{AssetIn: wethPoly, AssetOut: usdcPoly, AmountIn: dec("0.001")})
	require.NoError(t, err)

	fee, ok := q.Cost.KnownFee()
	require.True(t, ok)
	assert.Equal(t, "12.5", fee.String())
	assert.Equal(t, "1", q.AmountOut.String())
}

func TestAggregatorAdapter_ErrorKinds(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		kind    error
	}{
		{"response", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }, domain.ErrResponse},
		{"decode", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) }, domain.ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			a := NewAggregatorAdapter(polygon, oneinch.NewClient(srv.URL, "", time.Second), nil, nil, discard)
			_, err := a.Quote(context.Background(), Request{AssetIn: usdcPoly, AssetOut: wethPoly, AmountIn: dec("1")})

			var qe *domain.QuoteError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, "137", qe.Venue)
			assert.ErrorIs(t, err, tc.kind)
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	a := NewAggregatorAdapter(polygon, oneinch.NewClient(url, "", time.Second), nil, nil, discard)
	_, err := a.Quote(context.Background(), Request{AssetIn: usdcPoly, AssetOut: wethPoly, AmountIn: dec("1")})
	assert.ErrorIs(t, err, domain.ErrConnectivity)
}

type cannedQuotes struct{ resp oneinch.QuoteResponse }

func (c cannedQuotes) Quote(context.Context, string, string, string, *big.Int) (oneinch.QuoteResponse, error) {
	return c.resp, nil
}

func TestAggregatorAdapter_BadAmountIsDecodeError(t *testing.T) {
	for _, amt := range []string{"not-a-number", "-5", ""} {
		t.Run(amt, func(t *testing.T) {
			a := NewAggregatorAdapter(polygon, cannedQuotes{resp: oneinch.QuoteResponse{ToTokenAmount: amt, EstimatedGas: 1}}, nil, nil, discard)

			var q domain.Quote
			var err error
			require.NotPanics(t, func() {
				q, err = a.Quote(context.Background(), Request{AssetIn: usdcPoly, AssetOut: wethPoly, AmountIn: dec("1")})
			})

			var qe *domain.QuoteError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, "137", qe.Venue)
			assert.ErrorIs(t, err, domain.ErrDecode)
			assert.True(t, q.AmountOut.IsZero())
		})
	}
}

func TestAggregatorAdapter_RejectsDustAmount(t *testing.T) {
	a := NewAggregatorAdapter(polygon, oneinch.NewClient("http://unused", "", time.Second), nil, nil, discard)
	_, err := a.Quote(context.Background(), Request{AssetIn: usdcPoly, AssetOut: wethPoly, AmountIn: dec("0.0000001")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

type countingDepth struct {
	calls atomic.Int32
	snap  domain.OrderBookSnapshot
	delay time.Duration
}

func (c *countingDepth) Depth(ctx context.Context, symbol string, limit int) (domain.OrderBookSnapshot, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	s := c.snap
	s.Symbol = symbol
	return s, nil
}

func book() domain.OrderBookSnapshot {
	return domain.OrderBookSnapshot{
		Symbol:       "ETHUSDT",
		LastUpdateID: 5,
		Asks: []domain.OrderBookLevel{
			{Price: dec("1500"), Quantity: dec("1")},
			{Price: dec("1550"), Quantity: dec("2")},
		},
		Bids: []domain.OrderBookLevel{
			{Price: dec("1499"), Quantity: dec("1")},
			{Price: dec("1490"), Quantity: dec("2")},
		},
		ReceivedAt: time.Now(),
	}
}

func obConfig() OrderBookConfig {
	return OrderBookConfig{QuoteAssets: []string{"USDT", "BUSD"}, TakerFee: dec("0.001"), BookLimit: 100}
}

func TestOrderBookAdapter_WalksStoredBook(t *testing.T) {
	store := memory.NewBookStore()
	require.NoError(t, store.Put(context.Background(), book()))

	a := NewOrderBookAdapter(cex, store, nil, obConfig(), discard)

	q, err := a.Quote(context.Background(), Request{AssetIn: usdtCEX, AssetOut: ethCEX, AmountIn: dec("2000")})
	require.NoError(t, err)
	assert.Equal(t, "1.3213", q.AmountOut.Round(4).String())
	require.NotNil(t, q.Cost.ExchangeFee)
	assert.Equal(t, "2", q.Cost.ExchangeFee.String())

	q, err = a.Quote(context.Background(), Request{AssetIn: ethCEX, AssetOut: usdtCEX, AmountIn: dec("1")})
	require.NoError(t, err)
	// 0.999 ETH at 1499
	assert.Equal(t, "1497.501", q.AmountOut.String())
}

func TestOrderBookAdapter_QuoteAmountsShareSnapshot(t *testing.T) {
	src := &countingDepth{snap: book()}
	a := NewOrderBookAdapter(cex, nil, src, obConfig(), discard)

	quotes, err := a.QuoteAmounts(context.Background(), usdtCEX, ethCEX, []decimal.Decimal{dec("100"), dec("1000"), dec("10000")})
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	assert.EqualValues(t, 1, src.calls.Load())
	assert.False(t, quotes[2].Remainder.IsZero(), "10000 USDT exceeds the book")
	assert.True(t, quotes[2].Executed().Add(quotes[2].Remainder).Equal(dec("10000")))
}

func TestOrderBookAdapter_StaleStoreFallsBackOnce(t *testing.T) {
	store := memory.NewBookStore()
	old := book()
	old.ReceivedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Put(context.Background(), old))

	fresh := book()
	fresh.LastUpdateID = 6
	src := &countingDepth{snap: fresh, delay: 50 * time.Millisecond}

	cfg := obConfig()
	cfg.MaxBookAge = time.Minute
	a := NewOrderBookAdapter(cex, store, src, cfg, discard)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Quote(context.Background(), Request{AssetIn: usdtCEX, AssetOut: ethCEX, AmountIn: dec("100")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	got, err := store.Get(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.EqualValues(t, 6, got.LastUpdateID)
}

func TestOrderBookAdapter_Supports(t *testing.T) {
	a := NewOrderBookAdapter(cex, memory.NewBookStore(), nil, obConfig(), discard)

	assert.True(t, a.Supports(usdtCEX, ethCEX))
	assert.True(t, a.Supports(ethCEX, usdtCEX))
	assert.False(t, a.Supports(ethCEX, ethCEX))
	assert.False(t, a.Supports(usdtCEX, domain.Asset{Address: "BUSD"}))

	_, err := a.Quote(context.Background(), Request{AssetIn: ethCEX, AssetOut: ethCEX, AmountIn: dec("1")})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestOrderBookAdapter_MissingBook(t *testing.T) {
	a := NewOrderBookAdapter(cex, memory.NewBookStore(), nil, obConfig(), discard)

	_, err := a.Quote(context.Background(), Request{AssetIn: usdtCEX, AssetOut: ethCEX, AmountIn: dec("1")})
	var qe *domain.QuoteError
	require.True(t, errors.As(err, &qe))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
