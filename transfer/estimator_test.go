package transfer

import (
	"testing"
	"time"
)

func TestSpeedIsNeverNegative(t *testing.T) {
	cases := []struct {
		bytes   int64
		elapsed time.Duration
	}{
		{0, 0},
		{0, time.Second},
		{1024, 0},
		{1024, -time.Second},
		{-5, time.Second},
		{1 << 30, time.Minute},
	}

	for _, tc := range cases {
		if got := Speed(tc.bytes, tc.elapsed); got < 0 {
			t.Fatalf("Speed(%d, %v) = %f, negative", tc.bytes, tc.elapsed, got)
		}
	}
}

func TestSpeedComputesAverage(t *testing.T) {
	if got := Speed(2048, 2*time.Second); got != 1024 {
		t.Fatalf("Speed = %f, want 1024", got)
	}
}

func TestEtaSentinelWhenSpeedIsZero(t *testing.T) {
	got := Eta(100, 1000, 0)
	if got != EtaUnknown {
		t.Fatalf("Eta with zero speed = %f, want EtaUnknown", got)
	}
	if got != got-0 { // would only differ for NaN
		t.Fatal("Eta produced NaN")
	}
}

func TestEtaZeroWhenNothingRemains(t *testing.T) {
	if got := Eta(1000, 1000, 0); got != 0 {
		t.Fatalf("Eta at completion = %f, want 0", got)
	}
	if got := Eta(1200, 1000, 50); got != 0 {
		t.Fatalf("Eta past completion = %f, want 0", got)
	}
}

func TestEtaRemainingOverSpeed(t *testing.T) {
	if got := Eta(500, 1500, 100); got != 10 {
		t.Fatalf("Eta = %f, want 10", got)
	}
}
