//go:build linux

package mpris

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/domain"
)

const (
	mprisPrefix   = "org.mpris.MediaPlayer2."
	mprisPath     = "/org/mpris/MediaPlayer2"
	propMetadata  = "org.mpris.MediaPlayer2.Player.Metadata"
	propStatus    = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	propsChanged  = "org.freedesktop.DBus.Properties.PropertiesChanged"
	playerIface   = "org.mpris.MediaPlayer2.Player"
	propsIface    = "org.freedesktop.DBus.Properties"
)

// wirePayload mirrors the remote feed's message shape so the reconciler
// treats local players and the remote feed identically
type wirePayload struct {
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	Album      string `json:"album,omitempty"`
	IsPlaying  bool   `json:"isPlaying"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// Source watches local MPRIS players over the session bus and emits their
// state as feed-shaped raw messages. Used when the daemon mirrors the
// machine it runs on instead of a remote account.
type Source struct {
	logger *zap.Logger

	mu              sync.RWMutex
	state           domain.ConnectionState
	running         bool
	cancel          context.CancelFunc
	conn            DBusClient
	lastDropWarning time.Time

	messages chan domain.RawMessage
	wg       sync.WaitGroup
}

// NewSource creates an MPRIS source
func NewSource(logger *zap.Logger) *Source {
	return &Source{
		logger:   logger,
		state:    domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()},
		messages: make(chan domain.RawMessage, 16),
	}
}

// Start connects to the session bus and blocks delivering player state
// until the context is cancelled
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	sourceCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.setState(domain.ConnectionState{Phase: domain.PhaseConnecting, Since: time.Now()})

	conn, err := newSessionBusClient()
	if err != nil {
		s.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		s.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	s.setState(domain.ConnectionState{Phase: domain.PhaseConnected, Since: time.Now()})
	s.logger.Info("MPRIS source connected to session bus")

	if err := s.emitExistingPlayers(); err != nil {
		s.logger.Warn("Failed to read existing players", zap.Error(err))
	}

	s.wg.Add(1)
	go s.watchSignals(sourceCtx)

	<-sourceCtx.Done()
	return sourceCtx.Err()
}

// Stop tears the source down and closes the message channel
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	close(s.messages)

	s.mu.Lock()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Failed to close session bus", zap.Error(err))
		}
	}
	s.mu.Unlock()

	s.setState(domain.ConnectionState{Phase: domain.PhaseDisconnected, Since: time.Now()})
	s.logger.Info("MPRIS source shutdown complete")
	return nil
}

// Messages returns the raw message channel
func (s *Source) Messages() <-chan domain.RawMessage {
	return s.messages
}

// State returns a snapshot of the bus connection state
func (s *Source) State() domain.ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// emitExistingPlayers emits the state of every MPRIS player already on the
// bus so the display is not blank until the next track change
func (s *Source) emitExistingPlayers() error {
	names, err := s.conn.ListNames()
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	for _, name := range names {
		if !strings.HasPrefix(name, mprisPrefix) {
			continue
		}
		s.logger.Info("Found MPRIS player", zap.String("name", name))
		if err := s.emitPlayerState(name); err != nil {
			s.logger.Warn("Failed to read player state",
				zap.String("player", name), zap.Error(err))
		}
	}
	return nil
}

// emitPlayerState queries one player's properties and emits them
func (s *Source) emitPlayerState(player string) error {
	metaVariant, err := s.conn.GetProperty(player, mprisPath, propMetadata)
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}
	metadata, ok := metaVariant.Value().(map[string]dbus.Variant)
	if !ok {
		// Players with nothing loaded return odd shapes here; not an error
		return nil
	}

	statusVariant, err := s.conn.GetProperty(player, mprisPath, propStatus)
	if err != nil {
		return fmt.Errorf("failed to get playback status: %w", err)
	}
	status, ok := statusVariant.Value().(string)
	if !ok {
		return fmt.Errorf("invalid playback status format")
	}

	s.emit(synthesize(metadata, status))
	return nil
}

// watchSignals turns PropertiesChanged signals into emitted messages
func (s *Source) watchSignals(ctx context.Context) {
	defer s.wg.Done()

	signals := make(chan *dbus.Signal, 16)
	s.conn.Signal(signals)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			s.handleSignal(sig)
		}
	}
}

// handleSignal extracts metadata and status from a PropertiesChanged signal,
// filling in whichever half the signal omitted with a property read
func (s *Source) handleSignal(sig *dbus.Signal) {
	if sig.Name != propsChanged || len(sig.Body) < 2 {
		return
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != playerIface {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	metaVariant, hasMeta := changed["Metadata"]
	statusVariant, hasStatus := changed["PlaybackStatus"]
	if !hasMeta && !hasStatus {
		return
	}

	var metadata map[string]dbus.Variant
	var status string

	if hasMeta {
		if metadata, ok = metaVariant.Value().(map[string]dbus.Variant); !ok {
			s.logger.Warn("Invalid metadata in signal, ignoring")
			return
		}
	} else {
		if v, err := s.conn.GetProperty(sig.Sender, mprisPath, propMetadata); err == nil {
			metadata, _ = v.Value().(map[string]dbus.Variant)
		}
	}

	if hasStatus {
		if status, ok = statusVariant.Value().(string); !ok {
			s.logger.Warn("Invalid playback status in signal, ignoring")
			return
		}
	} else {
		if v, err := s.conn.GetProperty(sig.Sender, mprisPath, propStatus); err == nil {
			status, _ = v.Value().(string)
		}
	}

	s.emit(synthesize(metadata, status))
}

// synthesize converts MPRIS metadata into the feed wire shape
func synthesize(metadata map[string]dbus.Variant, status string) domain.RawMessage {
	now := time.Now()
	payload := wirePayload{
		IsPlaying: status == "Playing",
		Timestamp: now.UnixMilli(),
	}

	if metadata != nil {
		if v, ok := metadata["xesam:title"]; ok {
			payload.Title, _ = v.Value().(string)
		}
		if v, ok := metadata["xesam:artist"]; ok {
			switch artists := v.Value().(type) {
			case []string:
				if len(artists) > 0 {
					payload.Artist = artists[0]
				}
			case string:
				payload.Artist = artists
			}
		}
		if v, ok := metadata["xesam:album"]; ok {
			payload.Album, _ = v.Value().(string)
		}
		if v, ok := metadata["mpris:artUrl"]; ok {
			payload.ArtworkURL, _ = v.Value().(string)
		}
	}

	data, _ := json.Marshal(payload)
	return domain.RawMessage{Payload: data, ReceivedAt: now}
}

func (s *Source) setState(state domain.ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// emit delivers a message without blocking, warning at most once per 5s
// when the consumer falls behind
func (s *Source) emit(msg domain.RawMessage) {
	select {
	case s.messages <- msg:
	default:
		s.mu.Lock()
		defer s.mu.Unlock()
		const warningInterval = 5 * time.Second
		now := time.Now()
		if now.Sub(s.lastDropWarning) >= warningInterval {
			s.logger.Warn("Message channel full, dropping player state")
			s.lastDropWarning = now
		}
	}
}
