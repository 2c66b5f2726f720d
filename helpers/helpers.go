package helpers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// IntToString converts int64 to string.
func IntToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// ToJsonString converts any value to JSON string.
func ToJsonString(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Clock is the time source of the synchronization loops.
type Clock interface {
	Now() time.Time
	// Timer fires once after d; stop releases it early.
	Timer(d time.Duration) (c <-chan time.Time, stop func() bool)
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) Timer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

// Sleep waits for d on clock or returns ctx.Err() as soon as ctx is done.
func Sleep(ctx context.Context, clock Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fired, stop := clock.Timer(d)
	select {
	case <-ctx.Done():
		stop()
		return ctx.Err()
	case <-fired:
		return nil
	}
}

// NextHour returns the next top of the hour in UTC strictly after t.
func NextHour(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour).Add(time.Hour)
}

// UntilNextHour is the delay from now to the next top of the hour.
func UntilNextHour(clock Clock) time.Duration {
	now := clock.Now()
	return NextHour(now).Sub(now)
}

// UnixMilli returns the current time of clock in milliseconds.
func UnixMilli(clock Clock) int64 {
	return clock.Now().UnixMilli()
}
