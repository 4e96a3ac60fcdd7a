package reward

import (
	"math"
	"testing"
)

func TestRewardBranches(t *testing.T) {
	cases := []struct {
		name string
		p, v float64
		want float64
	}{
		{"below zone", 50, 30, Overshoot},
		{"below zone stopped", 98.9, 0, Overshoot},
		{"stopped in zone", 100.5, 0.5, Success},
		{"stopped on lower edge", 99, 0, Success},
		{"stopped on upper edge", 101, 0.99, Success},
		{"moving in zone", 100, 1, TooFast},
		{"moving fast in zone", 99.5, 40, TooFast},
		{"past zone", 110, 30, -3},
		{"past zone stopped", 150, 0, 0},
	}
	for _, tc := range cases {
		if got := Reward(tc.p, tc.v, 100); got != tc.want {
			t.Fatalf("%s: expected %f, got %f", tc.name, tc.want, got)
		}
	}
}

func TestRewardFallbackOnlyForNaN(t *testing.T) {
	if got := Reward(math.NaN(), 0, 100); got != Fallback {
		t.Fatalf("expected fallback reward for NaN position, got %f", got)
	}
}

func TestRewardPastZoneIndependentOfDistance(t *testing.T) {
	for _, v := range []float64{0, 5, 40, 80} {
		want := Reward(1.5, v, 0)
		for d := 1.5; d <= 50; d += 0.5 {
			if got := Reward(d, v, 0); got != want {
				t.Fatalf("v=%f d=%f: expected %f, got %f", v, d, want, got)
			}
		}
	}
}

func TestRewardPastZoneStrictlyDecreasingInSpeed(t *testing.T) {
	prev := Reward(20, 0, 0)
	for v := 0.5; v <= 120; v += 0.5 {
		cur := Reward(20, v, 0)
		if cur >= prev {
			t.Fatalf("v=%f: expected reward below %f, got %f", v, prev, cur)
		}
		prev = cur
	}
}

func TestStoppedUsesOpenZone(t *testing.T) {
	if !Stopped(100.2, 0.3, 100) {
		t.Fatal("expected stopped inside zone")
	}
	if Stopped(101, 0, 100) || Stopped(99, 0, 100) {
		t.Fatal("expected zone edges to be excluded")
	}
	if Stopped(100, 1, 100) {
		t.Fatal("expected speed 1 to count as moving")
	}
}
