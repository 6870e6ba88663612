package schedule

import (
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

// Scheduler decides whether a pending change warrants a redraw, and whether
// that redraw is partial or full. It carries the panel-wear state: how many
// partial refreshes have run since the last full one, and when the panel
// was last written. Not safe for concurrent use; the engine calls it from
// a single goroutine.
type Scheduler struct {
	logger       *zap.Logger
	partialLimit int
	minInterval  time.Duration

	rendered     bool
	partialCount int
	lastRender   time.Time
	lastHealthy  bool
	wasPlaying   bool
	forceFull    bool
	redraw       bool
}

// NewScheduler creates a scheduler from render configuration
func NewScheduler(logger *zap.Logger, cfg config.RenderConfig) *Scheduler {
	return &Scheduler{
		logger:       logger,
		partialLimit: cfg.PartialLimit,
		minInterval:  time.Duration(cfg.MinIntervalMs) * time.Millisecond,
	}
}

// RequestRedraw asks for a refresh of the current content without a track
// change, e.g. when the offline indicator must appear or disappear
func (s *Scheduler) RequestRedraw() {
	s.redraw = true
}

// Decide returns the action for the given pending change (nil when nothing
// changed) and connection state. Returning ActionSkip inside the spacing
// window does not consume the change; the engine keeps it pending and asks
// again after Delay.
func (s *Scheduler) Decide(change *domain.Track, conn domain.ConnectionState, now time.Time) domain.RenderAction {
	// A recovered connection forces a full refresh to clear any stale
	// offline indicator. Sticky until the refresh actually happens.
	if conn.Healthy() && !s.lastHealthy && s.rendered {
		s.forceFull = true
	}
	s.lastHealthy = conn.Healthy()

	if change == nil && !s.forceFull && !s.redraw {
		return domain.ActionSkip
	}

	// Respect the panel's physical refresh latency. The caller coalesces
	// anything that arrives in the meantime.
	if s.rendered && now.Sub(s.lastRender) < s.minInterval {
		return domain.ActionSkip
	}

	full := false
	switch {
	case !s.rendered:
		full = true
	case s.forceFull:
		full = true
	case change != nil && !change.IsPlaying && s.wasPlaying:
		// Cleared text ghosts badly under partial refresh
		full = true
	case s.partialCount >= s.partialLimit:
		full = true
	}

	s.rendered = true
	s.lastRender = now
	s.redraw = false
	if change != nil {
		s.wasPlaying = change.IsPlaying
	}

	if full {
		s.partialCount = 0
		s.forceFull = false
		s.logger.Debug("Full refresh scheduled")
		return domain.ActionFull
	}

	s.partialCount++
	s.logger.Debug("Partial refresh scheduled", zap.Int("count", s.partialCount))
	return domain.ActionPartial
}

// Delay reports how long the caller must wait before a redraw is allowed.
// Zero means a redraw may run immediately.
func (s *Scheduler) Delay(now time.Time) time.Duration {
	if !s.rendered {
		return 0
	}
	remaining := s.minInterval - now.Sub(s.lastRender)
	if remaining < 0 {
		return 0
	}
	return remaining
}
