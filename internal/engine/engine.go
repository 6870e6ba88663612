package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/artwork"
	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
	"github.com/dickeyy/trackpaper/internal/reconcile"
	"github.com/dickeyy/trackpaper/internal/render"
	"github.com/dickeyy/trackpaper/internal/schedule"
)

const artThumbSize = 64

// Engine ties the pipeline together: raw messages from the source are
// reconciled into confirmed track changes, which flow through a single-slot
// handoff to the render loop. Reception never waits for the panel and the
// panel never waits for the network; a slow redraw simply coalesces
// everything that arrived in the meantime into the latest state.
type Engine struct {
	logger     *zap.Logger
	cfg        *config.Config
	source     domain.Source
	reconciler *reconcile.Reconciler
	scheduler  *schedule.Scheduler
	renderer   *render.Renderer
	fetcher    domain.Fetcher
	driver     domain.Driver

	mu           sync.Mutex
	current      *domain.Track
	pending      bool
	shownOffline bool
	running      bool
	cancel       context.CancelFunc

	notify chan struct{}
	wg     sync.WaitGroup

	artURL string
	artImg image.Image
}

// NewEngine creates the orchestration engine
func NewEngine(
	logger *zap.Logger,
	cfg *config.Config,
	source domain.Source,
	reconciler *reconcile.Reconciler,
	scheduler *schedule.Scheduler,
	renderer *render.Renderer,
	fetcher domain.Fetcher,
	driver domain.Driver,
) *Engine {
	return &Engine{
		logger:     logger,
		cfg:        cfg,
		source:     source,
		reconciler: reconciler,
		scheduler:  scheduler,
		renderer:   renderer,
		fetcher:    fetcher,
		driver:     driver,
		notify:     make(chan struct{}, 1),
	}
}

// Start initializes the panel and launches the intake and render loops.
// It returns immediately; a display that fails to initialize is fatal.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	engineCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	if err := e.driver.Init(); err != nil {
		return err
	}

	e.logger.Info("Engine started")

	e.wg.Add(2)
	go e.intakeLoop(engineCtx)
	go e.renderLoop(engineCtx)
	return nil
}

// Stop lets any in-flight render finish, then clears the panel and puts it
// to sleep so it is not left holding a stale frame unpowered
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	if e.cancel != nil {
		e.cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()

	if err := e.driver.Clear(); err != nil {
		e.logger.Error("Failed to clear panel on shutdown", zap.Error(err))
	}
	if err := e.driver.Sleep(); err != nil {
		e.logger.Error("Failed to sleep panel on shutdown", zap.Error(err))
	}

	e.logger.Info("Engine stopped")
	return nil
}

// intakeLoop consumes raw messages and reconciles them into the handoff
// slot. Malformed payloads are dropped here, logged, and never reach the
// render side.
func (e *Engine) intakeLoop(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-e.source.Messages():
			if !ok {
				e.logger.Info("Source message channel closed")
				return
			}

			e.mu.Lock()
			prev := e.current
			e.mu.Unlock()

			track, changed, err := e.reconciler.Reconcile(msg, prev)
			if err != nil {
				e.logger.Warn("Dropping malformed feed message", zap.Error(err))
				continue
			}
			if !changed {
				continue
			}

			e.logger.Info("Track changed",
				zap.String("artist", track.Artist),
				zap.String("title", track.Title),
				zap.Bool("playing", track.IsPlaying))

			e.mu.Lock()
			e.current = track
			e.pending = true
			e.mu.Unlock()
			e.signal()
		}
	}
}

// renderLoop reacts to confirmed changes and connection transitions.
// Exactly one render runs at a time; the pending flag coalesces anything
// newer that arrives while the panel is busy.
func (e *Engine) renderLoop(ctx context.Context) {
	defer e.wg.Done()

	// Connection watch: the feed does not announce staleness, so poll its
	// state to notice when the offline indicator must appear or clear.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.notify:
		case <-ticker.C:
			e.watchConnection()
		}
		e.tryRender(ctx)
	}
}

// watchConnection flips the offline indicator when the grace period runs
// out, and requests a redraw on any visibility change
func (e *Engine) watchConnection() {
	conn := e.source.State()
	grace := time.Duration(e.cfg.Render.OfflineGraceMs) * time.Millisecond
	offline := !conn.Healthy() && !conn.Since.IsZero() && time.Since(conn.Since) > grace

	e.mu.Lock()
	changed := offline != e.shownOffline
	e.shownOffline = offline
	e.mu.Unlock()

	if changed {
		e.scheduler.RequestRedraw()
		e.signal()
	}
}

// tryRender asks the scheduler for a verdict and drives the panel. A Skip
// inside the spacing window keeps the change pending and retries once the
// window opens.
func (e *Engine) tryRender(ctx context.Context) {
	now := time.Now()
	conn := e.source.State()

	e.mu.Lock()
	var change *domain.Track
	if e.pending {
		change = e.current
	}
	e.mu.Unlock()

	action := e.scheduler.Decide(change, conn, now)
	if action == domain.ActionSkip {
		if change != nil {
			if delay := e.scheduler.Delay(now); delay > 0 {
				time.AfterFunc(delay, e.signal)
			}
		}
		return
	}

	e.mu.Lock()
	e.pending = false
	track := e.current
	e.mu.Unlock()

	var art image.Image
	if track != nil && track.IsPlaying {
		art = e.artworkFor(ctx, track.ArtworkURL)
	}

	frame := e.renderer.Render(track, conn, art, now)
	frame.FullRedraw = action == domain.ActionFull

	var err error
	if frame.FullRedraw {
		err = e.driver.DisplayFull(frame)
	} else {
		err = e.driver.DisplayPartial(frame)
	}
	if err != nil {
		// Degraded but alive: reception continues even when the panel is
		// misbehaving, and the next change gets another shot.
		e.logger.Error("Display write failed", zap.String("action", action.String()), zap.Error(err))
		return
	}

	e.logger.Debug("Frame displayed", zap.String("action", action.String()))
}

// artworkFor fetches and prepares cover art, cached by URL. Any failure
// degrades to a text-only frame.
func (e *Engine) artworkFor(ctx context.Context, url string) image.Image {
	if !e.cfg.Artwork.Enabled || url == "" {
		return nil
	}
	if url == e.artURL {
		return e.artImg
	}

	data, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		e.logger.Warn("Artwork fetch failed", zap.String("url", url), zap.Error(err))
		return nil
	}
	img, err := artwork.Prepare(data, artThumbSize)
	if err != nil {
		e.logger.Warn("Artwork unusable", zap.String("url", url), zap.Error(err))
		return nil
	}

	e.artURL = url
	e.artImg = img
	return img
}

// signal wakes the render loop without ever blocking the caller
func (e *Engine) signal() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}
