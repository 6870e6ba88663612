package render

import (
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

const (
	marginX      = 4
	headerBase   = 14
	titleBase    = 38
	artistBase   = 60
	albumBase    = 76
	statusBase   = 96
	progressTop  = 104
	progressH    = 4
	artSize      = 64
	contentTop   = 20
	overlayLabel = " OFFLINE "
)

// Renderer lays a Track out as a 1-bit-friendly grayscale frame for the
// panel. Render is a pure function of its arguments: the same inputs always
// produce a byte-identical frame.
type Renderer struct {
	geometry domain.Geometry
	grace    time.Duration

	headerFace font.Face
	titleFace  font.Face
	artistFace font.Face
	smallFace  font.Face
}

// NewRenderer creates a renderer for the given panel geometry
func NewRenderer(geo domain.Geometry, cfg config.RenderConfig) *Renderer {
	return &Renderer{
		geometry:   geo,
		grace:      time.Duration(cfg.OfflineGraceMs) * time.Millisecond,
		headerFace: basicfont.Face7x13,
		titleFace:  inconsolata.Bold8x16,
		artistFace: inconsolata.Regular8x16,
		smallFace:  basicfont.Face7x13,
	}
}

// Render produces the frame for the given state. track may be nil (nothing
// known yet), art may be nil (no cover available). The dirty region covers
// everything below the static header, so a partial refresh leaves the
// header untouched.
func (r *Renderer) Render(track *domain.Track, conn domain.ConnectionState, art image.Image, now time.Time) domain.DisplayFrame {
	w, h := r.geometry.Width, r.geometry.Height
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	r.drawString(img, r.headerFace, "Now Playing:", marginX, headerBase, image.Black)

	if track == nil || !track.IsPlaying {
		r.drawIdle(img, track)
	} else {
		r.drawTrack(img, track, art)
	}

	if !conn.Healthy() && !conn.Since.IsZero() && now.Sub(conn.Since) > r.grace {
		r.drawOfflineBadge(img)
	}

	return domain.DisplayFrame{
		Image: img,
		Dirty: image.Rect(0, contentTop, w, h),
	}
}

// drawIdle renders the placeholder frame shown when nothing is playing
func (r *Renderer) drawIdle(img *image.Gray, track *domain.Track) {
	r.drawString(img, r.titleFace, "Nothing playing", marginX, titleBase, image.Black)
	if track != nil {
		// Paused rather than unknown: keep a hint of what was on
		text := r.truncate(r.smallFace, track.Artist+" - "+track.Title, r.geometry.Width-2*marginX)
		r.drawString(img, r.smallFace, text, marginX, artistBase, image.Black)
		r.drawString(img, r.smallFace, "|| Paused", marginX, statusBase, image.Black)
	}
}

// drawTrack renders the playing layout: title, artist, album, status,
// progress bar, and the cover thumbnail when available
func (r *Renderer) drawTrack(img *image.Gray, track *domain.Track, art image.Image) {
	textWidth := r.geometry.Width - 2*marginX
	if art != nil {
		textWidth -= artSize + marginX
	}

	// Artist is the field the user scans for first, so title and album give
	// up space before it does.
	r.drawString(img, r.titleFace, r.truncate(r.titleFace, track.Title, textWidth), marginX, titleBase, image.Black)
	r.drawString(img, r.artistFace, r.truncate(r.artistFace, track.Artist, textWidth), marginX, artistBase, image.Black)
	if track.Album != "" {
		r.drawString(img, r.smallFace, r.truncate(r.smallFace, track.Album, textWidth), marginX, albumBase, image.Black)
	}
	r.drawString(img, r.smallFace, "> Playing", marginX, statusBase, image.Black)

	if track.DurationMs > 0 && track.ProgressMs >= 0 {
		r.drawProgress(img, track.ProgressMs, track.DurationMs, textWidth)
	}

	if art != nil {
		target := image.Rect(r.geometry.Width-artSize-marginX, contentTop+4,
			r.geometry.Width-marginX, contentTop+4+artSize)
		draw.Draw(img, target, art, art.Bounds().Min, draw.Src)
	}
}

// drawProgress draws a thin outlined bar filled proportionally to playback
// position
func (r *Renderer) drawProgress(img *image.Gray, progressMs, durationMs, width int) {
	if progressMs > durationMs {
		progressMs = durationMs
	}
	outer := image.Rect(marginX, progressTop, marginX+width, progressTop+progressH)
	r.drawRectOutline(img, outer)

	fill := (width - 2) * progressMs / durationMs
	if fill > 0 {
		inner := image.Rect(outer.Min.X+1, outer.Min.Y+1, outer.Min.X+1+fill, outer.Max.Y-1)
		draw.Draw(img, inner, image.Black, image.Point{}, draw.Src)
	}
}

// drawOfflineBadge draws an inverted connectivity indicator in the bottom
// right corner, over whatever content is there
func (r *Renderer) drawOfflineBadge(img *image.Gray) {
	labelW := font.MeasureString(r.smallFace, overlayLabel).Ceil()
	badge := image.Rect(r.geometry.Width-labelW-2, r.geometry.Height-16, r.geometry.Width, r.geometry.Height)
	draw.Draw(img, badge, image.Black, image.Point{}, draw.Src)
	r.drawString(img, r.smallFace, overlayLabel, badge.Min.X+1, r.geometry.Height-5, image.White)
}

// drawRectOutline traces the one-pixel border of rect
func (r *Renderer) drawRectOutline(img *image.Gray, rect image.Rectangle) {
	black := color.Gray{Y: 0x00}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		img.SetGray(x, rect.Min.Y, black)
		img.SetGray(x, rect.Max.Y-1, black)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		img.SetGray(rect.Min.X, y, black)
		img.SetGray(rect.Max.X-1, y, black)
	}
}

func (r *Renderer) drawString(img *image.Gray, face font.Face, s string, x, baseline int, src image.Image) {
	d := font.Drawer{
		Dst:  img,
		Src:  src,
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

// truncate shortens s to fit maxWidth in the given face, appending "..."
func (r *Renderer) truncate(face font.Face, s string, maxWidth int) string {
	if font.MeasureString(face, s).Ceil() <= maxWidth {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if font.MeasureString(face, candidate).Ceil() <= maxWidth {
			return candidate
		}
	}
	return "..."
}
