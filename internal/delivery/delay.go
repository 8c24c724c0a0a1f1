package delivery

import (
	"math/rand"
	"time"
)

// DelayConfig shapes the synthetic typing delays between sends.
type DelayConfig struct {
	// PerChar is the simulated typing time per character.
	PerChar time.Duration `yaml:"per_char"`

	// Min and Max clamp the length-proportional delay.
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`

	// Jitter is the fraction of random variation applied on top,
	// e.g. 0.2 for plus or minus 20 percent.
	Jitter float64 `yaml:"jitter"`

	// Media is the fixed pause before each media send.
	Media time.Duration `yaml:"media"`
}

// DefaultDelayConfig returns delays calibrated to feel human without
// noticeably slowing the conversation.
func DefaultDelayConfig() DelayConfig {
	return DelayConfig{
		PerChar: 30 * time.Millisecond,
		Min:     800 * time.Millisecond,
		Max:     3 * time.Second,
		Jitter:  0.2,
		Media:   500 * time.Millisecond,
	}
}

func (c *DelayConfig) sanitize() {
	if c.PerChar < 0 {
		c.PerChar = 0
	}
	if c.Min < 0 {
		c.Min = 0
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	if c.Jitter < 0 || c.Jitter > 1 {
		c.Jitter = 0
	}
}

// Delayer computes per-send pauses from chunk length.
type Delayer struct {
	cfg  DelayConfig
	rand func() float64
}

// NewDelayer creates a delayer.
func NewDelayer(cfg DelayConfig) *Delayer {
	cfg.sanitize()
	return &Delayer{cfg: cfg, rand: rand.Float64}
}

// ForText returns the pause to take before sending a chunk of the given
// length: proportional to length, clamped, with jitter.
func (d *Delayer) ForText(length int) time.Duration {
	delay := time.Duration(length) * d.cfg.PerChar
	if delay < d.cfg.Min {
		delay = d.cfg.Min
	}
	if delay > d.cfg.Max {
		delay = d.cfg.Max
	}
	if d.cfg.Jitter > 0 {
		// Scale by a factor in [1-jitter, 1+jitter].
		factor := 1 + d.cfg.Jitter*(2*d.rand()-1)
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

// ForMedia returns the fixed pause before a media send.
func (d *Delayer) ForMedia() time.Duration {
	return d.cfg.Media
}
