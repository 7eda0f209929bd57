package usecase

import (
	"fmt"
	"sync"
	"time"

	"WalletMirror/pkg/logger"
)

type PollMode string

const (
	ModeIdle  PollMode = "idle"
	ModeBurst PollMode = "burst"
)

// PollingScheduler switches between a slow idle cadence and a fast burst
// cadence after activity. Interval is the only place the burst expires.
type PollingScheduler struct {
	idle     time.Duration
	burst    time.Duration
	duration time.Duration
	now      func() time.Time
	logger   *logger.Logger

	mu       sync.Mutex
	mode     PollMode
	deadline time.Time
}

func NewPollingScheduler(idle, burst, burstDuration time.Duration, l *logger.Logger) *PollingScheduler {
	return &PollingScheduler{
		idle:     idle,
		burst:    burst,
		duration: burstDuration,
		now:      time.Now,
		logger:   l,
		mode:     ModeIdle,
	}
}

// OnActivity enters burst mode or slides the burst deadline to now+duration.
func (s *PollingScheduler) OnActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.mode == ModeIdle {
		s.logger.Info("activity detected, switching to burst polling",
			logger.Duration("interval", s.burst),
			logger.Duration("for", s.duration))
	}
	s.mode = ModeBurst
	s.deadline = now.Add(s.duration)
}

// Interval returns the current polling interval.
func (s *PollingScheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeBurst && !s.now().Before(s.deadline) {
		s.mode = ModeIdle
		s.deadline = time.Time{}
		s.logger.Info("burst window elapsed, back to idle polling", logger.Duration("interval", s.idle))
	}
	if s.mode == ModeBurst {
		return s.burst
	}
	return s.idle
}

func (s *PollingScheduler) Mode() PollMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *PollingScheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeBurst {
		remaining := s.deadline.Sub(s.now())
		if remaining < 0 {
			remaining = 0
		}
		return fmt.Sprintf("burst (every %s, %ds remaining)", s.burst, int(remaining.Seconds()))
	}
	return fmt.Sprintf("idle (every %s)", s.idle)
}
