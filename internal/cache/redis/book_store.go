package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

//go:embed scripts/book_put.lua
var bookPutLua string

// BookStore implements domain.BookStore with one hash per symbol so a feed
// process and any number of evaluators share the same depth.
//
// Key schema:
//
//	book:{SYMBOL}  - hash with "id" (last update id) and "data" (JSON snapshot)
//
// Writes go through a Lua compare-and-set on "id", so an older snapshot can
// never overwrite a newer one regardless of which writer gets there first.
type BookStore struct {
	rdb     *redis.Client
	bookPut *redis.Script
	ttl     time.Duration
}

// NewBookStore creates a BookStore. Entries expire after ttl of silence; zero
// keeps them until overwritten.
func NewBookStore(c *Client, ttl time.Duration) *BookStore {
	return &BookStore{
		rdb:     c.Underlying(),
		bookPut: redis.NewScript(bookPutLua),
		ttl:     ttl,
	}
}

func bookKey(symbol string) string { return "book:" + strings.ToUpper(symbol) }

type bookLevel struct {
	Price    decimal.Decimal `json:"p"`
	Quantity decimal.Decimal `json:"q"`
}

type bookPayload struct {
	Symbol       string      `json:"symbol"`
	LastUpdateID int64       `json:"last_update_id"`
	Bids         []bookLevel `json:"bids"`
	Asks         []bookLevel `json:"asks"`
	ReceivedAt   int64       `json:"received_at"`
}

func encodeLevels(in []domain.OrderBookLevel) []bookLevel {
	out := make([]bookLevel, len(in))
	for i, l := range in {
		out[i] = bookLevel{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

func decodeLevels(in []bookLevel) []domain.OrderBookLevel {
	out := make([]domain.OrderBookLevel, len(in))
	for i, l := range in {
		out[i] = domain.OrderBookLevel{Price: l.Price, Quantity: l.Quantity}
	}
	return out
}

// Put stores snap unless the stored snapshot has the same or a newer
// LastUpdateID, in which case it returns domain.ErrStaleUpdate.
func (bs *BookStore) Put(ctx context.Context, snap domain.OrderBookSnapshot) error {
	payload, err := json.Marshal(bookPayload{
		Symbol:       strings.ToUpper(snap.Symbol),
		LastUpdateID: snap.LastUpdateID,
		Bids:         encodeLevels(snap.Bids),
		Asks:         encodeLevels(snap.Asks),
		ReceivedAt:   snap.ReceivedAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("redis: encode book %s: %w", snap.Symbol, err)
	}

	applied, err := bs.bookPut.Run(ctx, bs.rdb,
		[]string{bookKey(snap.Symbol)},
		snap.LastUpdateID, string(payload), bs.ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return fmt.Errorf("redis: put book %s: %w", snap.Symbol, err)
	}
	if applied == 0 {
		return domain.ErrStaleUpdate
	}
	return nil
}

// Get returns the stored snapshot or domain.ErrNotFound.
func (bs *BookStore) Get(ctx context.Context, symbol string) (domain.OrderBookSnapshot, error) {
	raw, err := bs.rdb.HGet(ctx, bookKey(symbol), "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.OrderBookSnapshot{}, domain.ErrNotFound
		}
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book %s: %w", symbol, err)
	}

	var p bookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: decode book %s: %w: %w", symbol, domain.ErrDecode, err)
	}
	return domain.OrderBookSnapshot{
		Symbol:       p.Symbol,
		LastUpdateID: p.LastUpdateID,
		Bids:         decodeLevels(p.Bids),
		Asks:         decodeLevels(p.Asks),
		ReceivedAt:   time.Unix(0, p.ReceivedAt),
	}, nil
}

// Compile-time interface check.
var _ domain.BookStore = (*BookStore)(nil)
