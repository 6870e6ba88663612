//go:build !linux

package mpris

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/domain"
)

// Source stub for non-Linux platforms, where there is no MPRIS session bus
type Source struct {
	logger *zap.Logger
}

// NewSource creates a stub source that fails on Start
func NewSource(logger *zap.Logger) *Source {
	return &Source{logger: logger}
}

// Start returns an error; MPRIS is only available on Linux
func (s *Source) Start(ctx context.Context) error {
	return fmt.Errorf("the mpris source is only supported on Linux")
}

// Stop is a no-op
func (s *Source) Stop(ctx context.Context) error {
	return nil
}

// Messages returns a closed channel
func (s *Source) Messages() <-chan domain.RawMessage {
	ch := make(chan domain.RawMessage)
	close(ch)
	return ch
}

// State always reports Disconnected
func (s *Source) State() domain.ConnectionState {
	return domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()}
}
