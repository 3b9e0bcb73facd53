package game

import (
	"testing"
	"time"
)

func TestManualClockFiresInDeadlineOrder(t *testing.T) {
	clk := NewManualClock(time.UnixMilli(0))

	var fired []string
	clk.AfterFunc(3*time.Second, func() { fired = append(fired, "b") })
	clk.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clk.AfterFunc(10*time.Second, func() { fired = append(fired, "never") })

	clk.Advance(5 * time.Second)

	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired = %v, want [a b]", fired)
	}
	if got := clk.Now(); !got.Equal(time.UnixMilli(5000)) {
		t.Fatalf("now = %v, want 5s", got)
	}
}

func TestManualClockStop(t *testing.T) {
	clk := NewManualClock(time.UnixMilli(0))

	fired := false
	tm := clk.AfterFunc(time.Second, func() { fired = true })
	if !tm.Stop() {
		t.Fatalf("Stop on a pending timer should report true")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should report false")
	}

	clk.Advance(2 * time.Second)
	if fired {
		t.Fatalf("stopped timer must not fire")
	}
}

func TestManualClockChainedTimers(t *testing.T) {
	clk := NewManualClock(time.UnixMilli(0))

	var fired []string
	clk.AfterFunc(1*time.Second, func() {
		fired = append(fired, "first")
		clk.AfterFunc(1*time.Second, func() { fired = append(fired, "second") })
	})

	// A timer armed by a callback within the advanced window fires too.
	clk.Advance(3 * time.Second)
	if len(fired) != 2 || fired[1] != "second" {
		t.Fatalf("fired = %v, want [first second]", fired)
	}
}

func TestManualClockZeroDelayFiresOnNextAdvance(t *testing.T) {
	clk := NewManualClock(time.UnixMilli(0))
	fired := false
	clk.AfterFunc(0, func() { fired = true })
	clk.Advance(0)
	if !fired {
		t.Fatalf("zero-delay timer should fire on Advance(0)")
	}
}
