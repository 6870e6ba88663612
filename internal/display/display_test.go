package display

import (
	"image"
	"image/color"
	"testing"

	"go.uber.org/zap"

	"github.com/dickeyy/trackpaper/internal/domain"
)

func frame(full bool) domain.DisplayFrame {
	img := image.NewGray(image.Rect(0, 0, 250, 122))
	return domain.DisplayFrame{Image: img, FullRedraw: full}
}

func TestMemoryRecordsWrites(t *testing.T) {
	mem := NewMemory(zap.NewNop())
	if err := mem.Init(); err != nil {
		t.Fatal(err)
	}

	if err := mem.DisplayFull(frame(true)); err != nil {
		t.Fatal(err)
	}
	if err := mem.DisplayPartial(frame(false)); err != nil {
		t.Fatal(err)
	}

	caps := mem.Captures()
	if len(caps) != 2 {
		t.Fatalf("got %d captures, want 2", len(caps))
	}
	if caps[0].Partial {
		t.Error("first capture should record a full write")
	}
	if !caps[1].Partial {
		t.Error("second capture should record a partial write")
	}
}

func TestMemoryLifecycle(t *testing.T) {
	mem := NewMemory(zap.NewNop())
	if err := mem.Init(); err != nil {
		t.Fatal(err)
	}
	if mem.Asleep() {
		t.Error("fresh display reports asleep")
	}
	if err := mem.Clear(); err != nil {
		t.Fatal(err)
	}
	if err := mem.Sleep(); err != nil {
		t.Fatal(err)
	}
	if !mem.Asleep() {
		t.Error("Sleep did not stick")
	}
}

func TestToBufferAllWhite(t *testing.T) {
	buf := toBuffer(nil)
	if len(buf) != bytesPerRow*panelHeight {
		t.Fatalf("buffer length %d, want %d", len(buf), bytesPerRow*panelHeight)
	}
	for i, b := range buf {
		if b != 0xFF {
			t.Fatalf("byte %d = 0x%02X, nil image must pack all white", i, b)
		}
	}
}

func TestToBufferRotation(t *testing.T) {
	// a single black pixel at landscape origin must land in portrait RAM
	img := image.NewGray(image.Rect(0, 0, 250, 122))
	for y := 0; y < 122; y++ {
		for x := 0; x < 250; x++ {
			img.SetGray(x, y, color.Gray{Y: 0xFF})
		}
	}
	img.SetGray(0, 0, color.Gray{Y: 0x00})

	buf := toBuffer(img)

	// landscape (0,0) maps to portrait x=panelWidth-1, y=0
	wantIdx := (panelWidth - 1) / 8
	wantMask := byte(0x80 >> uint((panelWidth-1)%8))
	if buf[wantIdx]&wantMask != 0 {
		t.Errorf("pixel bit not cleared at byte %d mask 0x%02X", wantIdx, wantMask)
	}

	// exactly one bit cleared in the whole buffer
	cleared := 0
	for _, b := range buf {
		for m := byte(0x80); m != 0; m >>= 1 {
			if b&m == 0 {
				cleared++
			}
		}
	}
	if cleared != 1 {
		t.Errorf("%d bits cleared, want exactly 1", cleared)
	}
}

func TestToBufferThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 250, 122))
	for y := 0; y < 122; y++ {
		for x := 0; x < 250; x++ {
			img.SetGray(x, y, color.Gray{Y: 0xFF})
		}
	}
	img.SetGray(10, 10, color.Gray{Y: 0x7F}) // dark side of the cut
	img.SetGray(11, 10, color.Gray{Y: 0x80}) // light side

	buf := toBuffer(img)
	cleared := 0
	for _, b := range buf {
		for m := byte(0x80); m != 0; m >>= 1 {
			if b&m == 0 {
				cleared++
			}
		}
	}
	if cleared != 1 {
		t.Errorf("%d bits cleared, want 1: 0x7F is black, 0x80 is white", cleared)
	}
}
