package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanBus struct {
	ch      chan []byte
	err     error
	channel string
}

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	b.channel = channel
	return b.ch, b.err
}

func TestTailSignals_WritesOneLinePerPayload(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 2)}
	bus.ch <- []byte(`{"pair":"USDC/LINK"}`)
	bus.ch <- []byte(`{"pair":"USDT/ETH"}`)
	close(bus.ch)

	var out bytes.Buffer
	require.NoError(t, tailSignals(context.Background(), bus, "arb", &out))

	assert.Equal(t, "arb", bus.channel)
	assert.Equal(t, "{\"pair\":\"USDC/LINK\"}\n{\"pair\":\"USDT/ETH\"}\n", out.String())
}

func TestTailSignals_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := tailSignals(ctx, &chanBus{ch: make(chan []byte)}, "arb", &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTailSignals_SubscribeError(t *testing.T) {
	err := tailSignals(context.Background(), &chanBus{err: errors.New("refused")}, "arb", &bytes.Buffer{})
	assert.ErrorContains(t, err, "tail: refused")
}
