package services

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// один градус по экватору
	got := HaversineKm(0, 0, 0, 1)
	if math.Abs(got-111.19) > 0.01 {
		t.Errorf("expected ~111.19 km, got %.4f", got)
	}
	if HaversineKm(4.6, -74.08, 4.6, -74.08) != 0 {
		t.Error("distance to the same point must be zero")
	}
}

func TestQuoteFareAndEarning(t *testing.T) {
	if got := quoteFare(3.5, 1.2, 10); got != 15.5 {
		t.Errorf("quoteFare = %v, want 15.5", got)
	}
	if got := quoteFare(3.5, 1.2, 1.005); got != 4.71 {
		t.Errorf("quoteFare must round to cents, got %v", got)
	}
	if got := driverEarning(15.5, 0.2); got != 12.4 {
		t.Errorf("driverEarning = %v, want 12.4", got)
	}
}
