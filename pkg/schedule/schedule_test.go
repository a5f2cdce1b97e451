package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"00:00", 0, 0, false},
		{"23:59", 23, 59, false},
		{" 3:05 ", 3, 5, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"noon", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
		})
	}
}

func TestDailyAtNextRun(t *testing.T) {
	next := dailyAt(0, 0)

	evening := time.Date(2026, 3, 14, 21, 30, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local), next(evening))

	midnight := time.Date(2026, 3, 15, 0, 0, 0, 0, time.Local)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, time.Local), next(midnight))

	early := dailyAt(3, 15)(time.Date(2026, 3, 15, 1, 0, 0, 0, time.Local))
	assert.Equal(t, time.Date(2026, 3, 15, 3, 15, 0, 0, time.Local), early)
}

func TestCronNext(t *testing.T) {
	spec, err := parseCron("*/15 9-17 * * 1-5")
	require.NoError(t, err)

	// Saturday evening rolls to Monday 09:00.
	sat := time.Date(2026, 10, 17, 18, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), spec.next(sat))

	mon := time.Date(2026, 10, 19, 9, 7, 30, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 15, 0, 0, time.UTC), spec.next(mon))
}

func TestCronRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"* * * *", "61 * * * *", "*/0 * * * *", "5-1 * * * *", "a * * * *"} {
		_, err := parseCron(expr)
		assert.Error(t, err, expr)
	}
}

func TestTickRunsDueEntriesOnce(t *testing.T) {
	s := New()
	base := time.Date(2026, 1, 1, 23, 59, 0, 0, time.Local)
	s.now = func() time.Time { return base }

	var runs atomic.Int32
	require.NoError(t, s.Daily().At("00:00").Name("reset").Run(func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx := context.Background()
	s.Tick(ctx, base.Add(30*time.Second))
	s.Wait()
	assert.Equal(t, int32(0), runs.Load())

	s.Tick(ctx, base.Add(time.Minute))
	s.Tick(ctx, base.Add(time.Minute+time.Second))
	s.Wait()
	assert.Equal(t, int32(1), runs.Load())

	s.Tick(ctx, base.Add(24*time.Hour+time.Minute))
	s.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestFailingTaskDoesNotStopScheduler(t *testing.T) {
	s := New()
	start := time.Date(2026, 1, 1, 10, 0, 30, 0, time.Local)
	s.now = func() time.Time { return start }

	var runs atomic.Int32
	require.NoError(t, s.Cron("* * * * *").Run(func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	}))
	require.NoError(t, s.Cron("* * * * *").Run(func(context.Context) error {
		panic("worse")
	}))

	s.Tick(context.Background(), start.Add(30*time.Second))
	s.Tick(context.Background(), start.Add(90*time.Second))
	s.Wait()
	assert.Equal(t, int32(2), runs.Load())
}

func TestRunReportsConfigErrors(t *testing.T) {
	s := New()
	assert.Error(t, s.Daily().At("25:00").Run(func(context.Context) error { return nil }))
	assert.Error(t, s.Cron("bogus").Run(func(context.Context) error { return nil }))
	assert.Empty(t, s.List())
}
