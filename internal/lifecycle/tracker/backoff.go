package tracker

import (
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// MaxDelay caps the wait between two status checks.
const MaxDelay = 10 * time.Second

// multipliers scale the chain block time per poll iteration. The last
// entry repeats forever.
var multipliers = []float64{1.2, 1.5, 2.0, 5.0, 10.0}

// Delay returns the wait before poll number iteration (0-based).
func Delay(blockTime time.Duration, iteration int) time.Duration {
	if iteration < 0 {
		iteration = 0
	}
	if iteration >= len(multipliers) {
		iteration = len(multipliers) - 1
	}
	d := time.Duration(float64(blockTime) * multipliers[iteration])
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}

// Timing is the polling cadence of one chain.
type Timing struct {
	BlockTime time.Duration
	Timeout   time.Duration
}

var defaultTiming = Timing{BlockTime: 5 * time.Second, Timeout: 10 * time.Minute}

// Timings overrides per-chain cadence. Chains without an entry use their
// static chain info.
type Timings map[domain.Chain]Timing

// For resolves the cadence for a chain.
func (t Timings) For(c domain.Chain) Timing {
	timing := t[c]
	info, ok := c.Info()
	if timing.BlockTime <= 0 {
		timing.BlockTime = defaultTiming.BlockTime
		if ok {
			timing.BlockTime = info.BlockTime
		}
	}
	if timing.Timeout <= 0 {
		timing.Timeout = defaultTiming.Timeout
		if ok {
			timing.Timeout = info.TransactionTimeout
		}
	}
	return timing
}
