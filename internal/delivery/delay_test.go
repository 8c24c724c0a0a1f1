package delivery

import (
	"testing"
	"time"
)

func TestForTextClampsToBounds(t *testing.T) {
	d := NewDelayer(DelayConfig{
		PerChar: 30 * time.Millisecond,
		Min:     800 * time.Millisecond,
		Max:     3 * time.Second,
	})

	if got := d.ForText(1); got != 800*time.Millisecond {
		t.Errorf("short chunk delay = %v, want the minimum", got)
	}
	if got := d.ForText(10000); got != 3*time.Second {
		t.Errorf("long chunk delay = %v, want the maximum", got)
	}
	if got := d.ForText(50); got != 1500*time.Millisecond {
		t.Errorf("mid chunk delay = %v, want proportional 1.5s", got)
	}
}

func TestForTextJitterStaysInRange(t *testing.T) {
	d := NewDelayer(DelayConfig{
		PerChar: 10 * time.Millisecond,
		Min:     time.Second,
		Max:     time.Second,
		Jitter:  0.2,
	})

	for i := 0; i < 50; i++ {
		got := d.ForText(100)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jittered delay %v outside plus or minus 20%%", got)
		}
	}
}

func TestSanitizeSwapsInvertedBounds(t *testing.T) {
	d := NewDelayer(DelayConfig{Min: 2 * time.Second, Max: time.Second})
	if got := d.ForText(1); got != 2*time.Second {
		t.Errorf("delay = %v, want min honored when max was below it", got)
	}
}
