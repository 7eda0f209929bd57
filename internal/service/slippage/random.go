package slippage

import (
	"math/rand/v2"
	"sync"
	"time"

	dsvc "WalletMirror/internal/domain/service"
)

// Uniform draws slippage uniformly from the inclusive [min, max] bps range.
type Uniform struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewUniform seeds from the clock.
func NewUniform() *Uniform {
	return NewSeeded(uint64(time.Now().UnixNano()))
}

// NewSeeded returns a reproducible sampler.
func NewSeeded(seed uint64) *Uniform {
	return &Uniform{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (u *Uniform) SampleBps(min, max int) int {
	if max <= min {
		return min
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	return min + u.rng.IntN(max-min+1)
}

var _ dsvc.SlippageSampler = (*Uniform)(nil)
