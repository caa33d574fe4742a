package oneinch

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

func TestClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/137/quote", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "0xfrom", q.Get("fromTokenAddress"))
		assert.Equal(t, "0xto", q.Get("toTokenAddress"))
		assert.Equal(t, "1000000000", q.Get("amount"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"toTokenAmount":"512345678901234567","estimatedGas":181000}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	resp, err := c.Quote(context.Background(), "137", "0xfrom", "0xto", big.NewInt(1_000_000_000))
	require.NoError(t, err)

	amt, ok := resp.ToAmount()
	require.True(t, ok)
	assert.Equal(t, "512345678901234567", amt.String())
	assert.EqualValues(t, 181000, resp.EstimatedGas)
}

func TestClient_QuoteErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"api error", http.StatusBadRequest, `{"statusCode":400,"error":"Bad Request","description":"insufficient liquidity"}`, domain.ErrResponse},
		{"gateway", http.StatusBadGateway, `<html>`, domain.ErrResponse},
		{"malformed", http.StatusOK, `{"toTokenAmount":`, domain.ErrDecode},
		{"non integer", http.StatusOK, `{"toTokenAmount":"1.5","estimatedGas":1}`, domain.ErrDecode},
		{"negative", http.StatusOK, `{"toTokenAmount":"-5","estimatedGas":1}`, domain.ErrDecode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).Quote(context.Background(), "1", "a", "b", big.NewInt(1))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestClient_QuoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", 50*time.Millisecond).Quote(context.Background(), "1", "a", "b", big.NewInt(1))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConnectivity)
	assert.True(t, IsTimeout(err))
}
