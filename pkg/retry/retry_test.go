package retry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	delays []time.Duration
}

func (r *recorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.delays = append(r.delays, d)
	return nil
}

func fixed(attempts int) Config {
	return Config{MaxAttempts: attempts, InitDelay: time.Second, MaxDelay: 30 * time.Second, Strategy: Exponential}
}

func TestDo_FirstTry(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	calls := 0
	err := do(context.Background(), fixed(3), func(context.Context) error {
		calls++
		return nil
	}, r.sleep)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, r.delays)
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	calls := 0
	err := do(context.Background(), fixed(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	}, r.sleep)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, r.delays)
}

func TestDo_ReturnsLastError(t *testing.T) {
	t.Parallel()
	r := &recorder{}
	calls := 0
	err := do(context.Background(), fixed(2), func(context.Context) error {
		calls++
		return errors.New("fail " + string(rune('0'+calls)))
	}, r.sleep)
	require.EqualError(t, err, "fail 2")
	assert.Len(t, r.delays, 1, "no sleep after the final attempt")
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("bad credentials")
	calls := 0
	err := do(context.Background(), fixed(5), func(context.Context) error {
		calls++
		return Permanent(sentinel)
	}, (&recorder{}).sleep)
	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroAttempts(t *testing.T) {
	t.Parallel()
	called := false
	err := do(context.Background(), Config{}, func(context.Context) error {
		called = true
		return errors.New("x")
	}, (&recorder{}).sleep)
	assert.NoError(t, err)
	assert.False(t, called)
}

func TestDo_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := do(ctx, fixed(3), func(context.Context) error {
		called = true
		return nil
	}, (&recorder{}).sleep)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestDo_OnRetry(t *testing.T) {
	t.Parallel()
	cfg := fixed(3)
	var seen []int
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		seen = append(seen, attempt)
		assert.Error(t, err)
		assert.Positive(t, delay)
	}
	_ = do(context.Background(), cfg, func(context.Context) error {
		return errors.New("x")
	}, (&recorder{}).sleep)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_RealSleepHonoursContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	cfg := Config{MaxAttempts: 3, InitDelay: time.Hour, Strategy: Constant}
	start := time.Now()
	err := Do(ctx, cfg, func(context.Context) error { return errors.New("x") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPermanent(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Permanent(nil))
	base := errors.New("x")
	wrapped := Permanent(base)
	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsPermanent(base))
}

func TestDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		cfg     Config
		attempt int
		want    time.Duration
	}{
		{"exponential first", fixed(0), 0, time.Second},
		{"exponential third", fixed(0), 2, 4 * time.Second},
		{"capped", fixed(0), 10, 30 * time.Second},
		{"constant", Config{InitDelay: time.Second, Strategy: Constant}, 7, time.Second},
		{"overflow capped", fixed(0), math.MaxInt32, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Delay(tt.cfg, tt.attempt))
		})
	}
}

func TestDelay_JitterBounds(t *testing.T) {
	t.Parallel()
	cfg := Config{InitDelay: 4 * time.Second, MaxDelay: time.Minute, Strategy: Constant, Jitter: true}
	for range 200 {
		d := Delay(cfg, 0)
		assert.GreaterOrEqual(t, d, 3*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
