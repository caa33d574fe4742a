package arbitrage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

type fakeNotifier struct {
	mu       sync.Mutex
	events   []string
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.messages = append(n.messages, message)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type fakeRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *fakeRecorder) Record(_ context.Context, res domain.ArbitrageResult) error {
	r.mu.Lock()
	r.ids = append(r.ids, res.ID)
	r.mu.Unlock()
	return nil
}

func sampleResult() domain.ArbitrageResult {
	ethUSDC := domain.Asset{Name: "USDC", Decimals: 6}
	polyLINK := domain.Asset{Name: "LINK", Decimals: 18}
	fee := d("31.02")
	return domain.ArbitrageResult{
		ID:      "arb-1",
		Base:    "USDC",
		Counter: "LINK",
		LegOut: domain.Quote{
			Venue:     domain.Venue{ID: "1", Name: "Ethereum"},
			Cost:      domain.Cost{FeeAmount: &fee},
			AssetIn:   ethUSDC,
			AmountIn:  d("10000"),
			AssetOut:  polyLINK,
			AmountOut: d("1234.56789"),
		},
		LegBack: domain.Quote{
			Venue:     domain.Venue{ID: "137", Name: "Polygon"},
			AssetIn:   polyLINK,
			AmountIn:  d("1234.56789"),
			AssetOut:  ethUSDC,
			AmountOut: d("10050.27"),
		},
		Profit:     d("50.3"),
		DetectedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestFormatMessage_HighFeeLegWithKnownFee(t *testing.T) {
	got := FormatMessage(sampleResult(), "https://app.1inch.io", "1")

	want := "24/01/02 03:04:05, UTC\n" +
		"1) <a href='https://app.1inch.io/#/1/swap/USDC/LINK'>Sell 10,000 USDC for 1,234.5679 LINK on Ethereum</a>\n" +
		"2) <a href='https://app.1inch.io/#/137/swap/LINK/USDC'>Sell 1,234.5679 LINK for 10,050.3 USDC on Polygon</a>\n" +
		"-->Arbitrage: 50.3 USDC, swap+bridge fees ~$31"
	assert.Equal(t, want, got)
}

func TestFormatMessage_FeeFallsBackToReturnLeg(t *testing.T) {
	res := sampleResult()
	fee := d("1234.5")
	res.LegOut.Cost = domain.Cost{}
	res.LegBack.Cost = domain.Cost{FeeAmount: &fee}

	assert.Contains(t, FormatMessage(res, "https://app.1inch.io", "1"), ", swap+bridge fees ~$1,235")
}

func TestFormatMessage_UnknownFee(t *testing.T) {
	res := sampleResult()
	res.LegOut.Cost = domain.Cost{}

	assert.Contains(t, FormatMessage(res, "https://app.1inch.io", "1"), ", swap+bridge fees n/a")
}

func TestFormatMessage_NoFeeSuffixOffHighFeeVenue(t *testing.T) {
	res := sampleResult()
	res.LegOut.Venue = domain.Venue{ID: "10", Name: "Optimism"}

	assert.NotContains(t, FormatMessage(res, "https://app.1inch.io", "1"), "fees")
}

func TestFormatMessage_ExchangeLegIsPlainText(t *testing.T) {
	res := sampleResult()
	res.LegBack.Venue = domain.Venue{ID: "0000", Name: "BinanceCEX", Kind: domain.CentralizedExchange}

	got := FormatMessage(res, "https://app.1inch.io", "1")
	assert.Contains(t, got, "\n2) Sell 1,234.5679 LINK for 10,050.3 USDC on BinanceCEX\n")
}

func TestGroup(t *testing.T) {
	cases := map[string]string{
		"0":            "0",
		"999":          "999",
		"1000":         "1,000",
		"-1000":        "-1,000",
		"1234567.891":  "1,234,567.891",
		"-12345.6":     "-12,345.6",
		"100000000.01": "100,000,000.01",
	}
	for in, want := range cases {
		assert.Equal(t, want, Group(decimal.RequireFromString(in)), in)
	}
}

func TestAlerter_DeliversAndRecords(t *testing.T) {
	n := &fakeNotifier{}
	r := &fakeRecorder{}
	a, err := NewAlerter(AlerterConfig{UIBaseURL: "https://app.1inch.io", HighFeeVenue: "1"}, n, r, nil, discard)
	require.NoError(t, err)

	a.Alert(context.Background(), sampleResult())
	a.Wait()

	require.Equal(t, 1, n.count())
	assert.Equal(t, "arbitrage", n.events[0])
	assert.Contains(t, n.messages[0], "-->Arbitrage: 50.3 USDC")
	assert.Equal(t, []string{"arb-1"}, r.ids)
}

func TestAlerter_CooldownSuppressesRepeats(t *testing.T) {
	c := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return c
	}
	n := &fakeNotifier{}
	a, err := NewAlerter(AlerterConfig{Cooldown: 10 * time.Minute}, n, nil, now, discard)
	require.NoError(t, err)

	a.Alert(context.Background(), sampleResult())
	a.Alert(context.Background(), sampleResult())
	a.Wait()
	assert.Equal(t, 1, n.count())

	other := sampleResult()
	other.LegOut.AmountIn = d("20000")
	a.Alert(context.Background(), other)
	a.Wait()
	assert.Equal(t, 2, n.count(), "different amount is a different opportunity")

	mu.Lock()
	c = c.Add(11 * time.Minute)
	mu.Unlock()
	a.Alert(context.Background(), sampleResult())
	a.Wait()
	assert.Equal(t, 3, n.count())
}

func TestAlerter_DeliveryFailureIsOnlyLogged(t *testing.T) {
	n := &fakeNotifier{err: errors.New("telegram down")}
	r := &fakeRecorder{}
	a, err := NewAlerter(AlerterConfig{}, n, r, nil, discard)
	require.NoError(t, err)

	a.Alert(context.Background(), sampleResult())
	a.Wait()
	assert.Equal(t, []string{"arb-1"}, r.ids)
}

func TestAlerter_SurvivesCancelledCaller(t *testing.T) {
	n := &fakeNotifier{}
	a, err := NewAlerter(AlerterConfig{}, n, nil, nil, discard)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Alert(ctx, sampleResult())
	a.Wait()
	assert.Equal(t, 1, n.count())
}
