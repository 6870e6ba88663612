package domain

import "context"

// Source delivers raw now-playing messages from somewhere (remote feed,
// local player bus). Implementations own their connection lifecycle and
// reconnection policy.
type Source interface {
	// Start begins delivering messages. It should block until the context is
	// cancelled or a fatal (non-network) error occurs.
	Start(ctx context.Context) error

	// Stop gracefully shuts the source down and closes the message channel
	Stop(ctx context.Context) error

	// Messages returns a read-only channel of raw payloads as they arrive
	Messages() <-chan RawMessage

	// State returns a snapshot of the connection state. Safe to call from
	// any goroutine.
	State() ConnectionState
}

// Driver is the narrow capability surface of the physical display.
// Concrete panels and test doubles are interchangeable behind it.
//
//go:generate mockgen -destination=../display/mocks/driver_mock.go -package=mocks github.com/dickeyy/trackpaper/internal/domain Driver
type Driver interface {
	// Init powers the panel up and loads waveform tables
	Init() error

	// DisplayFull rewrites the whole panel. Slow, clears ghosting.
	DisplayFull(frame DisplayFrame) error

	// DisplayPartial rewrites only the frame's dirty region. Fast, prone to
	// ghosting when overused.
	DisplayPartial(frame DisplayFrame) error

	// Clear blanks the panel to white
	Clear() error

	// Sleep puts the panel into its low-power state
	Sleep() error
}

// Fetcher retrieves cover art bytes from a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
