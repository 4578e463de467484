package ratelimit

import "testing"

func TestAllowEnforcesBurst(t *testing.T) {
	limiter := New(1, 3)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("request beyond burst was allowed")
	}
}

func TestAllowIsolatesClients(t *testing.T) {
	limiter := New(1, 1)

	if !limiter.Allow("1.2.3.4") {
		t.Fatal("first client denied its burst")
	}
	if limiter.Allow("1.2.3.4") {
		t.Error("first client exceeded its burst")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Error("second client throttled by the first client's usage")
	}
}

func TestZeroRateDisablesLimiting(t *testing.T) {
	limiter := New(0, 0)

	for i := 0; i < 100; i++ {
		if !limiter.Allow("1.2.3.4") {
			t.Fatalf("request %d denied with limiting disabled", i+1)
		}
	}
}
