package domain

import (
	"image"
	"time"
)

// ConnectionPhase describes where the feed connection is in its lifecycle
type ConnectionPhase string

const (
	// PhaseDisconnected means no connection exists and none is being attempted
	PhaseDisconnected ConnectionPhase = "Disconnected"
	// PhaseConnecting means a connection attempt is in flight
	PhaseConnecting ConnectionPhase = "Connecting"
	// PhaseConnected means the feed is live and delivering messages
	PhaseConnected ConnectionPhase = "Connected"
	// PhaseBackoff means the last connection failed and a retry is scheduled
	PhaseBackoff ConnectionPhase = "Backoff"
)

// ConnectionState is a snapshot of the feed connection, owned by the source.
// Since records when the current phase was entered; Attempt and NextRetryAt
// are only meaningful in PhaseBackoff.
type ConnectionState struct {
	Phase       ConnectionPhase
	Attempt     int
	NextRetryAt time.Time
	Since       time.Time
}

// Healthy reports whether the feed is currently delivering messages
func (s ConnectionState) Healthy() bool {
	return s.Phase == PhaseConnected
}

// Track is the canonical "what is playing now" value. It is immutable once
// constructed; a new Track replaces the old one wholesale.
type Track struct {
	// Artist name
	Artist string
	// Title of the track
	Title string
	// Album name, may be empty
	Album string
	// IsPlaying is false when playback is paused or stopped
	IsPlaying bool
	// ProgressMs is the playback position in milliseconds, -1 when unknown
	ProgressMs int
	// DurationMs is the track length in milliseconds, -1 when unknown
	DurationMs int
	// ArtworkURL points at cover art, may be empty
	ArtworkURL string
	// ReceivedAt is the upstream timestamp of the message this Track came from
	ReceivedAt time.Time
}

// SameContent reports whether two Tracks are equal in the fields that matter
// for display purposes. Progress ticks and artwork churn do not count.
func (t Track) SameContent(other Track) bool {
	return t.Artist == other.Artist &&
		t.Title == other.Title &&
		t.IsPlaying == other.IsPlaying
}

// RawMessage is one payload received from the feed, untouched except for the
// local arrival timestamp
type RawMessage struct {
	Payload    []byte
	ReceivedAt time.Time
}

// RenderAction is the scheduler's verdict for a pending change
type RenderAction int

const (
	// ActionSkip means nothing should be drawn right now
	ActionSkip RenderAction = iota
	// ActionPartial means redraw the content region only
	ActionPartial
	// ActionFull means redraw the whole panel, clearing ghosting
	ActionFull
)

func (a RenderAction) String() string {
	switch a {
	case ActionPartial:
		return "partial"
	case ActionFull:
		return "full"
	default:
		return "skip"
	}
}

// Geometry holds the panel dimensions in landscape orientation
type Geometry struct {
	Width  int
	Height int
}

// DisplayFrame is a rendered bitmap plus region metadata. Ephemeral: it is
// produced by the renderer, consumed by the driver, never persisted.
type DisplayFrame struct {
	Image      *image.Gray
	FullRedraw bool
	Dirty      image.Rectangle
}
