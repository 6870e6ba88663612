package schedule

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

func newTestScheduler(limit, intervalMs int) *Scheduler {
	return NewScheduler(zap.NewNop(), config.RenderConfig{
		PartialLimit:  limit,
		MinIntervalMs: intervalMs,
	})
}

func playing(title string) *domain.Track {
	return &domain.Track{Artist: "A", Title: title, IsPlaying: true}
}

func connected() domain.ConnectionState {
	return domain.ConnectionState{Phase: domain.PhaseConnected, Since: time.Now()}
}

func TestDecide_FirstRenderIsFull(t *testing.T) {
	s := newTestScheduler(20, 1000)

	if got := s.Decide(playing("X"), connected(), time.Now()); got != domain.ActionFull {
		t.Errorf("first render: want ActionFull, got %v", got)
	}
}

func TestDecide_NoChangeSkips(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	if got := s.Decide(nil, connected(), now.Add(2*time.Second)); got != domain.ActionSkip {
		t.Errorf("healthy connection, no change: want ActionSkip, got %v", got)
	}
}

func TestDecide_NormalChangeIsPartial(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	if got := s.Decide(playing("Y"), connected(), now.Add(2*time.Second)); got != domain.ActionPartial {
		t.Errorf("track change: want ActionPartial, got %v", got)
	}
}

// After exactly N partials the next refresh is full and the counter resets
func TestDecide_PartialLimitForcesFull(t *testing.T) {
	const limit = 5
	s := newTestScheduler(limit, 1000)
	now := time.Now()

	if got := s.Decide(playing("t0"), connected(), now); got != domain.ActionFull {
		t.Fatalf("render 0: want ActionFull, got %v", got)
	}

	for i := 1; i <= limit; i++ {
		now = now.Add(2 * time.Second)
		if got := s.Decide(playing("t"+string(rune('0'+i))), connected(), now); got != domain.ActionPartial {
			t.Fatalf("render %d: want ActionPartial, got %v", i, got)
		}
	}

	now = now.Add(2 * time.Second)
	if got := s.Decide(playing("overflow"), connected(), now); got != domain.ActionFull {
		t.Errorf("render after %d partials: want ActionFull, got %v", limit, got)
	}

	// Counter must have reset: the next change is partial again
	now = now.Add(2 * time.Second)
	if got := s.Decide(playing("after"), connected(), now); got != domain.ActionPartial {
		t.Errorf("render after reset: want ActionPartial, got %v", got)
	}
}

// No more than one render per minimum interval even under a burst of
// legitimate changes
func TestDecide_MinimumSpacing(t *testing.T) {
	s := newTestScheduler(100, 1000)
	base := time.Now()

	rendered := 0
	for i := 0; i < 100; i++ {
		now := base.Add(time.Duration(i) * 5 * time.Millisecond)
		if s.Decide(playing("burst"), connected(), now) != domain.ActionSkip {
			rendered++
		}
	}
	if rendered != 1 {
		t.Errorf("burst within interval: want exactly 1 render, got %d", rendered)
	}

	// Once the window opens the pending change goes through
	if got := s.Decide(playing("late"), connected(), base.Add(1500*time.Millisecond)); got == domain.ActionSkip {
		t.Error("change after interval must render")
	}
}

func TestDecide_StopAfterPlayingForcesFull(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	stopped := &domain.Track{Artist: "A", Title: "X", IsPlaying: false}
	if got := s.Decide(stopped, connected(), now.Add(2*time.Second)); got != domain.ActionFull {
		t.Errorf("playback stop: want ActionFull, got %v", got)
	}
}

func TestDecide_ReconnectForcesFull(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	// Connection drops; nothing to draw
	down := domain.ConnectionState{Phase: domain.PhaseBackoff, Attempt: 1, Since: now}
	if got := s.Decide(nil, down, now.Add(2*time.Second)); got != domain.ActionSkip {
		t.Fatalf("down, no change: want ActionSkip, got %v", got)
	}

	// Recovery must clear the stale frame with a full refresh even though
	// the track itself did not change
	if got := s.Decide(nil, connected(), now.Add(4*time.Second)); got != domain.ActionFull {
		t.Errorf("reconnect: want ActionFull, got %v", got)
	}
}

// A forced full refresh blocked by the spacing window must not be lost
func TestDecide_ForcedFullSurvivesSkip(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	down := domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: now}
	s.Decide(nil, down, now.Add(100*time.Millisecond))

	// Reconnect inside the spacing window: Skip, but the full stays armed
	if got := s.Decide(nil, connected(), now.Add(200*time.Millisecond)); got != domain.ActionSkip {
		t.Fatalf("inside window: want ActionSkip, got %v", got)
	}
	if got := s.Decide(nil, connected(), now.Add(2*time.Second)); got != domain.ActionFull {
		t.Errorf("after window: want ActionFull, got %v", got)
	}
}

func TestDecide_RequestedRedrawIsPartial(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()
	s.Decide(playing("X"), connected(), now)

	s.RequestRedraw()
	if got := s.Decide(nil, connected(), now.Add(2*time.Second)); got != domain.ActionPartial {
		t.Errorf("requested redraw: want ActionPartial, got %v", got)
	}

	// One-shot: the request is consumed
	if got := s.Decide(nil, connected(), now.Add(4*time.Second)); got != domain.ActionSkip {
		t.Errorf("after redraw: want ActionSkip, got %v", got)
	}
}

func TestDelay(t *testing.T) {
	s := newTestScheduler(20, 1000)
	now := time.Now()

	if d := s.Delay(now); d != 0 {
		t.Errorf("before first render: want 0, got %v", d)
	}

	s.Decide(playing("X"), connected(), now)

	if d := s.Delay(now.Add(300 * time.Millisecond)); d != 700*time.Millisecond {
		t.Errorf("mid-window: want 700ms, got %v", d)
	}
	if d := s.Delay(now.Add(2 * time.Second)); d != 0 {
		t.Errorf("after window: want 0, got %v", d)
	}
}
