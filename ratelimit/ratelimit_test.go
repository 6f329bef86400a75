package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestLimiter(max int, window time.Duration) (*Limiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return New(Config{Max: max, Window: window, MaxIPs: 1000}, clock), clock
}

func TestLimiter_AllowsUpToMax(t *testing.T) {
	rl, clock := newTestLimiter(30, 300*time.Second)

	for i := 0; i < 30; i++ {
		if ok, _ := rl.Admit("test-ip"); !ok {
			t.Fatalf("vote %d should be allowed", i+1)
		}
		clock.Advance(time.Second)
	}
}

func TestLimiter_BlocksAfterMax(t *testing.T) {
	rl, clock := newTestLimiter(30, 300*time.Second)

	for i := 0; i < 30; i++ {
		rl.Admit("test-ip")
		clock.Advance(time.Second)
	}

	ok, retry := rl.Admit("test-ip")
	if ok {
		t.Fatal("31st vote should be blocked")
	}
	// Oldest vote is 30s old, so it expires in 270s
	if retry != 270 {
		t.Errorf("Expected retry_after 270, got %d", retry)
	}
	if retry <= 0 || retry > 300 {
		t.Errorf("retry_after out of range: %d", retry)
	}
}

func TestLimiter_RetryAfterFloor(t *testing.T) {
	rl, clock := newTestLimiter(1, 10*time.Second)

	rl.Admit("ip")
	clock.Advance(10*time.Second - time.Millisecond)

	ok, retry := rl.Admit("ip")
	if ok {
		t.Fatal("Expected block just before the window closes")
	}
	if retry != 1 {
		t.Errorf("Expected retry_after floored at 1, got %d", retry)
	}
}

func TestLimiter_DifferentKeysIndependent(t *testing.T) {
	rl, _ := newTestLimiter(2, time.Minute)

	rl.Admit("ip-a")
	rl.Admit("ip-a")

	// ip-a is exhausted
	if ok, _ := rl.Admit("ip-a"); ok {
		t.Fatal("ip-a should be blocked")
	}

	// ip-b should still be allowed
	if ok, _ := rl.Admit("ip-b"); !ok {
		t.Fatal("ip-b should be allowed (independent key)")
	}
}

func TestLimiter_WindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(2, time.Minute)

	rl.Admit("ip") // t=0
	clock.Advance(30 * time.Second)
	rl.Admit("ip") // t=30

	if ok, _ := rl.Admit("ip"); ok {
		t.Fatal("Should be blocked at t=30")
	}

	// The t=0 vote leaves the window; t=30 still counts
	clock.Advance(31 * time.Second)
	if ok, _ := rl.Admit("ip"); !ok {
		t.Fatal("Should be allowed once the oldest vote expires")
	}
	if ok, _ := rl.Admit("ip"); ok {
		t.Fatal("Window should be full again")
	}
}

func TestLimiter_BlockedAttemptsDoNotCount(t *testing.T) {
	rl, clock := newTestLimiter(1, time.Minute)

	rl.Admit("ip")
	for i := 0; i < 5; i++ {
		clock.Advance(5 * time.Second)
		rl.Admit("ip")
	}

	clock.Advance(31 * time.Second) // 61s after the only recorded vote
	if ok, _ := rl.Admit("ip"); !ok {
		t.Fatal("Rejected attempts should not extend the window")
	}
}

func TestLimiter_EvictsLeastRecentlyActive(t *testing.T) {
	clock := clockwork.NewFakeClock()
	rl := New(Config{Max: 5, Window: time.Hour, MaxIPs: 8}, clock)

	for i := 0; i < 9; i++ {
		rl.Admit(fmt.Sprintf("10.0.0.%d", i))
		clock.Advance(time.Second)
	}
	if rl.Len() != 9 {
		t.Fatalf("Expected 9 tracked IPs, got %d", rl.Len())
	}

	// Over the cap: the next call evicts a quarter (2) oldest first
	rl.Admit("10.0.0.100")
	if rl.Len() != 8 {
		t.Fatalf("Expected 8 tracked IPs after eviction, got %d", rl.Len())
	}

	rl.mu.Lock()
	_, oldest := rl.entries["10.0.0.0"]
	_, second := rl.entries["10.0.0.1"]
	_, newest := rl.entries["10.0.0.8"]
	rl.mu.Unlock()

	if oldest || second {
		t.Error("Least recently active IPs should be evicted first")
	}
	if !newest {
		t.Error("Recently active IP should be kept")
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	rl, _ := newTestLimiter(30, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Admit("same-ip"); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if allowed.Load() != 30 {
		t.Errorf("Expected exactly 30 admitted, got %d", allowed.Load())
	}
}
