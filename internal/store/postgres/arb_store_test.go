package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case **string:
			if r.vals[i] == nil {
				*p = nil
			} else {
				s := r.vals[i].(string)
				*p = &s
			}
		case *time.Time:
			*p = r.vals[i].(time.Time)
		}
	}
	return nil
}

func TestScanArbRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	row := fakeRow{vals: []any{
		"id-1", "USDC", "LINK",
		"1000", "71.2345", "1012.5", "12.5",
		"137", "0000", "31.02", at,
	}}

	rec, err := scanArbRecord(row)
	require.NoError(t, err)
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "71.2345", rec.CounterAmount.String())
	assert.Equal(t, "12.5", rec.Profit.String())
	require.NotNil(t, rec.FeeEstimate)
	assert.Equal(t, "31.02", rec.FeeEstimate.String())
	assert.True(t, rec.DetectedAt.Equal(at))
}

func TestScanArbRecord_NullFee(t *testing.T) {
	row := fakeRow{vals: []any{
		"id-2", "USDC", "LINK",
		"1", "2", "3", "4",
		"1", "56", nil, time.Now(),
	}}
	rec, err := scanArbRecord(row)
	require.NoError(t, err)
	assert.Nil(t, rec.FeeEstimate)
}

func TestScanArbRecord_Errors(t *testing.T) {
	_, err := scanArbRecord(fakeRow{err: errors.New("conn reset")})
	assert.ErrorContains(t, err, "conn reset")

	row := fakeRow{vals: []any{
		"id-3", "USDC", "LINK",
		"NaN?", "2", "3", "4",
		"1", "56", nil, time.Now(),
	}}
	_, err = scanArbRecord(row)
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/arbs?sslmode=disable",
		DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "arbs"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}
