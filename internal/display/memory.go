package display

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/domain"
)

// Capture records one write that reached the in-memory display
type Capture struct {
	Frame   domain.DisplayFrame
	Partial bool
}

// Memory is an in-process display double. It records every frame it is
// handed, for tests and for running the daemon on hardware-less machines.
type Memory struct {
	logger *zap.Logger

	mu       sync.Mutex
	inited   bool
	asleep   bool
	captures []Capture
}

// NewMemory creates an in-memory display
func NewMemory(logger *zap.Logger) *Memory {
	return &Memory{logger: logger}
}

// Init marks the display as powered up
func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inited = true
	m.asleep = false
	m.logger.Debug("Memory display initialized")
	return nil
}

// DisplayFull records a full-panel write
func (m *Memory) DisplayFull(frame domain.DisplayFrame) error {
	return m.record(frame, false)
}

// DisplayPartial records a partial write
func (m *Memory) DisplayPartial(frame domain.DisplayFrame) error {
	return m.record(frame, true)
}

// Clear drops nothing but notes the panel went white
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, Capture{})
	return nil
}

// Sleep marks the display as powered down
func (m *Memory) Sleep() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.asleep = true
	return nil
}

// Captures returns a copy of everything written so far
func (m *Memory) Captures() []Capture {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Capture, len(m.captures))
	copy(out, m.captures)
	return out
}

// Asleep reports whether Sleep was the last lifecycle call
func (m *Memory) Asleep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.asleep
}

func (m *Memory) record(frame domain.DisplayFrame, partial bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures = append(m.captures, Capture{Frame: frame, Partial: partial})
	return nil
}
