package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeArchiver struct {
	calls  []time.Time
	result int64
	err    error
}

func (f *fakeArchiver) ArchiveArbHistory(_ context.Context, before time.Time) (int64, error) {
	f.calls = append(f.calls, before)
	return f.result, f.err
}

type fakeLocks struct {
	held     bool
	err      error
	keys     []string
	released int
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	if f.held {
		return nil, domain.ErrLockHeld
	}
	return func() { f.released++ }, nil
}

func TestArchiverRun_Cutoff(t *testing.T) {
	arch := &fakeArchiver{result: 12}
	locks := &fakeLocks{}
	a := NewArchiver(arch, locks, 30, discard)
	a.now = func() time.Time { return time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC) }

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, arch.calls, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), arch.calls[0])
	assert.Equal(t, []string{"archive:arb_history"}, locks.keys)
	assert.Equal(t, 1, locks.released)
}

func TestArchiverRun_LockHeldSkips(t *testing.T) {
	arch := &fakeArchiver{}
	a := NewArchiver(arch, &fakeLocks{held: true}, 30, discard)

	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, arch.calls)
}

func TestArchiverRun_Errors(t *testing.T) {
	lockErr := errors.New("redis down")
	a := NewArchiver(&fakeArchiver{}, &fakeLocks{err: lockErr}, 30, discard)
	assert.ErrorIs(t, a.Run(context.Background()), lockErr)

	archErr := errors.New("s3 unavailable")
	locks := &fakeLocks{}
	a = NewArchiver(&fakeArchiver{err: archErr}, locks, 30, discard)
	err := a.Run(context.Background())
	assert.ErrorIs(t, err, archErr)
	assert.Equal(t, 1, locks.released)
}

func TestArchiverRun_NoLocks(t *testing.T) {
	arch := &fakeArchiver{}
	a := NewArchiver(arch, nil, 7, discard)
	require.NoError(t, a.Run(context.Background()))
	assert.Len(t, arch.calls, 1)
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2024, 1, 15, 2, 59, 30, 0, time.UTC)

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)},
		{"0 3 1 * *", time.Date(2024, 2, 1, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)},
		{"10-20/5 4 * * *", time.Date(2024, 1, 15, 4, 10, 0, 0, time.UTC)},
		{"0 0 * * 0", time.Date(2024, 1, 21, 0, 0, 0, 0, time.UTC)},
		{"30 2,14 * * *", time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := nextCronTime(tt.expr, after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateCron(t *testing.T) {
	assert.NoError(t, ValidateCron("0 3 1 * *"))
	assert.NoError(t, ValidateCron("*/5 0-6 * 1,7 1-5"))

	for _, bad := range []string{"", "0 3 1 *", "60 * * * *", "* 24 * * *", "*/0 * * * *", "5-1 * * * *", "a * * * *"} {
		assert.Error(t, ValidateCron(bad), bad)
	}
}

func TestRunLoop_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewArchiver(&fakeArchiver{}, nil, 30, discard)
	assert.ErrorIs(t, a.RunLoop(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, a.RunCron(ctx, "0 3 * * *"), context.Canceled)
}
