package binance

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// DepthMessage is the depth payload shared by the REST snapshot endpoint and
// the partial book depth stream. Levels are [price, quantity] string pairs.
type DepthMessage struct {
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         [][2]string `json:"bids"`
	Asks         [][2]string `json:"asks"`
}

// StreamEnvelope wraps every message on a combined stream connection.
type StreamEnvelope struct {
	Stream string       `json:"stream"`
	Data   DepthMessage `json:"data"`
}

// SymbolFromStream extracts "ETHUSDT" from "ethusdt@depth20@100ms".
func SymbolFromStream(stream string) string {
	name, _, _ := strings.Cut(stream, "@")
	return strings.ToUpper(name)
}

// ToSnapshot converts a depth message into a domain snapshot.
func (m DepthMessage) ToSnapshot(symbol string, receivedAt time.Time) (domain.OrderBookSnapshot, error) {
	bids, err := parseLevels(m.Bids)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(m.Asks)
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("asks: %w", err)
	}
	return domain.OrderBookSnapshot{
		Symbol:       strings.ToUpper(symbol),
		LastUpdateID: m.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
		ReceivedAt:   receivedAt,
	}, nil
}

func parseLevels(raw [][2]string) ([]domain.OrderBookLevel, error) {
	out := make([]domain.OrderBookLevel, 0, len(raw))
	for i, lvl := range raw {
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price %q: %w", i, lvl[0], err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("level %d quantity %q: %w", i, lvl[1], err)
		}
		out = append(out, domain.OrderBookLevel{Price: price, Quantity: qty})
	}
	return out, nil
}
