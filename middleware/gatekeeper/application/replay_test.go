package application

import (
	"math"
	"testing"
	"time"
)

func TestReplayGuard_InclusiveBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := ReplayGuard{Tolerance: 300 * time.Second, Now: func() time.Time { return now }}

	cases := []struct {
		name string
		ts   int64
		want bool
	}{
		{"now", now.Unix(), true},
		{"exactly tolerance in the past", now.Unix() - 300, true},
		{"exactly tolerance in the future", now.Unix() + 300, true},
		{"one second too old", now.Unix() - 301, false},
		{"one second too far ahead", now.Unix() + 301, false},
		{"ten minutes old", now.Add(-10 * time.Minute).Unix(), false},
		{"zero", 0, false},
		{"min int64", math.MinInt64, false},
		{"max int64", math.MaxInt64, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := g.IsFresh(tc.ts); got != tc.want {
				t.Fatalf("IsFresh(%d) = %v, want %v", tc.ts, got, tc.want)
			}
		})
	}
}

func TestReplayGuard_DefaultTolerance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	g := ReplayGuard{Now: func() time.Time { return now }}

	if !g.IsFresh(now.Unix() - int64(DefaultReplayTolerance/time.Second)) {
		t.Fatalf("expected default tolerance of %s to be applied", DefaultReplayTolerance)
	}
	if g.IsFresh(now.Unix() - int64(DefaultReplayTolerance/time.Second) - 1) {
		t.Fatalf("expected timestamp past default tolerance to be stale")
	}
}
