package reconcile

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/domain"
)

// wireMessage is the logical feed payload. Unknown fields are ignored;
// artist, title and isPlaying are required. isPlaying is a pointer so a
// missing field can be told apart from an explicit false.
type wireMessage struct {
	Artist     string        `json:"artist"`
	Title      string        `json:"title"`
	Album      string        `json:"album"`
	IsPlaying  *bool         `json:"isPlaying"`
	ProgressMs *int          `json:"progressMs"`
	DurationMs *int          `json:"durationMs"`
	ArtworkURL string        `json:"artworkUrl"`
	Timestamp  wireTimestamp `json:"timestamp"`
}

// wireTimestamp accepts either an RFC3339 string or epoch milliseconds,
// since the upstream feed has shipped both over time
type wireTimestamp struct {
	time.Time
}

func (t *wireTimestamp) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	if s[0] == '"' {
		parsed, err := time.Parse(time.RFC3339, strings.Trim(s, `"`))
		if err != nil {
			return fmt.Errorf("timestamp not RFC3339: %w", err)
		}
		t.Time = parsed
		return nil
	}
	millis, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("timestamp not epoch millis: %w", err)
	}
	t.Time = time.UnixMilli(millis)
	return nil
}

// Reconciler turns raw feed payloads into a minimal stream of confirmed
// track transitions. It filters duplicates, progress-only ticks and
// out-of-order stragglers.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile parses a raw message against the previous Track. It returns the
// Track that should be current after the message and whether that is a real
// transition worth rendering. Invalid payloads return an error and leave the
// previous Track in place; the caller logs and drops them.
func (r *Reconciler) Reconcile(msg domain.RawMessage, prev *domain.Track) (*domain.Track, bool, error) {
	candidate, err := parse(msg)
	if err != nil {
		return prev, false, err
	}

	if prev != nil {
		// A late duplicate carrying an older upstream timestamp never wins,
		// regardless of arrival order.
		if !candidate.ReceivedAt.IsZero() && !prev.ReceivedAt.IsZero() &&
			candidate.ReceivedAt.Before(prev.ReceivedAt) {
			r.logger.Debug("Dropping out-of-order message",
				zap.Time("candidate", candidate.ReceivedAt),
				zap.Time("current", prev.ReceivedAt))
			return prev, false, nil
		}

		if candidate.SameContent(*prev) {
			// Progress ticks and artwork churn are not transitions
			return prev, false, nil
		}
	}

	return candidate, true, nil
}

// parse validates and converts a raw payload into a candidate Track
func parse(msg domain.RawMessage) (*domain.Track, error) {
	var wire wireMessage
	if err := json.Unmarshal(msg.Payload, &wire); err != nil {
		return nil, fmt.Errorf("unparsable payload: %w", err)
	}

	if wire.Artist == "" {
		return nil, fmt.Errorf("missing required field: artist")
	}
	if wire.Title == "" {
		return nil, fmt.Errorf("missing required field: title")
	}
	if wire.IsPlaying == nil {
		return nil, fmt.Errorf("missing required field: isPlaying")
	}

	track := &domain.Track{
		Artist:     wire.Artist,
		Title:      wire.Title,
		Album:      wire.Album,
		IsPlaying:  *wire.IsPlaying,
		ProgressMs: -1,
		DurationMs: -1,
		ArtworkURL: wire.ArtworkURL,
		ReceivedAt: wire.Timestamp.Time,
	}
	if wire.ProgressMs != nil && *wire.ProgressMs >= 0 {
		track.ProgressMs = *wire.ProgressMs
	}
	if wire.DurationMs != nil && *wire.DurationMs >= 0 {
		track.DurationMs = *wire.DurationMs
	}
	if track.ReceivedAt.IsZero() {
		track.ReceivedAt = msg.ReceivedAt
	}

	return track, nil
}
