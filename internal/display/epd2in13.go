package display

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/dickeyy/trackpaper/internal/config"
	"github.com/dickeyy/trackpaper/internal/domain"
)

// Panel geometry of the Waveshare 2.13" V2 in native portrait orientation
const (
	panelWidth  = 122
	panelHeight = 250
	// RAM rows are byte aligned, so 122 pixels occupy 16 bytes
	bytesPerRow = 16
)

// Controller command set (SSD1675 family)
const (
	cmdDriverOutput    = 0x01
	cmdGateVoltage     = 0x03
	cmdSourceVoltage   = 0x04
	cmdDeepSleep       = 0x10
	cmdDataEntry       = 0x11
	cmdSWReset         = 0x12
	cmdMasterActivate  = 0x20
	cmdUpdateControl2  = 0x22
	cmdWriteRAM        = 0x24
	cmdWriteVCOM       = 0x2C
	cmdWriteLUT        = 0x32
	cmdDummyLine       = 0x3A
	cmdGateLineWidth   = 0x3B
	cmdBorderWaveform  = 0x3C
	cmdSetRAMXRange    = 0x44
	cmdSetRAMYRange    = 0x45
	cmdSetRAMXCounter  = 0x4E
	cmdSetRAMYCounter  = 0x4F
	cmdAnalogBlock     = 0x74
	cmdDigitalBlock    = 0x7E
)

// Waveform lookup tables from the vendor reference driver. The full table
// drives the flashy ghost-clearing refresh, the partial table the fast
// low-power one.
var lutFull = []byte{
	0x80, 0x60, 0x40, 0x00, 0x00, 0x00, 0x00,
	0x10, 0x60, 0x20, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x60, 0x40, 0x00, 0x00, 0x00, 0x00,
	0x10, 0x60, 0x20, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x03, 0x03, 0x00, 0x00, 0x02,
	0x09, 0x09, 0x00, 0x00, 0x02,
	0x03, 0x03, 0x00, 0x00, 0x02,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
}

var lutPartial = []byte{
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x40, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x0A, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00,
}

type lutMode int

const (
	lutNone lutMode = iota
	lutModeFull
	lutModePartial
)

// Panel drives a Waveshare 2.13" V2 e-paper HAT over SPI and three GPIO
// lines (data/command select, reset, busy). All operations are synchronous;
// the busy pin gates every refresh.
type Panel struct {
	logger *zap.Logger

	port spi.PortCloser
	conn spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	busy gpio.PinIn

	mode lutMode
}

// NewPanel opens the SPI port and GPIO pins named in the configuration.
// Pin or bus failures here are hardware faults and fatal.
func NewPanel(logger *zap.Logger, cfg config.DisplayConfig) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	port, err := spireg.Open(cfg.SPIPort)
	if err != nil {
		return nil, fmt.Errorf("open SPI port %q: %w", cfg.SPIPort, err)
	}

	conn, err := port.Connect(4*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("connect SPI: %w", err)
	}

	dc := gpioreg.ByName(cfg.DCPin)
	if dc == nil {
		_ = port.Close()
		return nil, fmt.Errorf("unknown DC pin %q", cfg.DCPin)
	}
	rst := gpioreg.ByName(cfg.RSTPin)
	if rst == nil {
		_ = port.Close()
		return nil, fmt.Errorf("unknown RST pin %q", cfg.RSTPin)
	}
	busy := gpioreg.ByName(cfg.BusyPin)
	if busy == nil {
		_ = port.Close()
		return nil, fmt.Errorf("unknown BUSY pin %q", cfg.BusyPin)
	}

	logger.Info("Panel wired",
		zap.String("spi", cfg.SPIPort),
		zap.String("dc", dc.Name()),
		zap.String("rst", rst.Name()),
		zap.String("busy", busy.Name()))

	return &Panel{
		logger: logger,
		port:   port,
		conn:   conn,
		dc:     dc,
		rst:    rst,
		busy:   busy,
	}, nil
}

// Init powers the panel up with the full-refresh waveform loaded
func (p *Panel) Init() error {
	return p.initMode(lutModeFull)
}

// DisplayFull rewrites the entire panel with the ghost-clearing waveform
func (p *Panel) DisplayFull(frame domain.DisplayFrame) error {
	if p.mode != lutModeFull {
		if err := p.initMode(lutModeFull); err != nil {
			return err
		}
	}
	return p.flush(frame.Image, 0xC7)
}

// DisplayPartial rewrites the panel with the fast waveform. The controller
// always takes a full frame buffer; the dirty region only matters to the
// waveform, which leaves unchanged pixels alone.
func (p *Panel) DisplayPartial(frame domain.DisplayFrame) error {
	if p.mode != lutModePartial {
		if err := p.initMode(lutModePartial); err != nil {
			return err
		}
	}
	return p.flush(frame.Image, 0x0C)
}

// Clear blanks the panel to white with a full refresh
func (p *Panel) Clear() error {
	if p.mode != lutModeFull {
		if err := p.initMode(lutModeFull); err != nil {
			return err
		}
	}
	return p.flush(nil, 0xC7)
}

// Sleep puts the controller into deep sleep. Init is required to wake it.
func (p *Panel) Sleep() error {
	if err := p.command(cmdDeepSleep, 0x01); err != nil {
		return err
	}
	p.mode = lutNone
	p.logger.Info("Panel asleep")
	return nil
}

// Close releases the SPI port
func (p *Panel) Close() error {
	return p.port.Close()
}

// initMode runs the vendor power-on sequence and loads the waveform table
// for the requested refresh mode
func (p *Panel) initMode(mode lutMode) error {
	if err := p.reset(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := p.waitIdle(); err != nil {
		return err
	}
	if err := p.command(cmdSWReset); err != nil {
		return err
	}
	if err := p.waitIdle(); err != nil {
		return err
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{cmdAnalogBlock, []byte{0x54}},
		{cmdDigitalBlock, []byte{0x3B}},
		{cmdDriverOutput, []byte{panelHeight - 1, 0x00, 0x00}},
		{cmdDataEntry, []byte{0x03}},
		{cmdSetRAMXRange, []byte{0x00, bytesPerRow - 1}},
		{cmdSetRAMYRange, []byte{0x00, 0x00, panelHeight - 1, 0x00}},
		{cmdBorderWaveform, []byte{0x03}},
		{cmdWriteVCOM, []byte{0x55}},
		{cmdGateVoltage, []byte{0x15}},
		{cmdSourceVoltage, []byte{0x41, 0xA8, 0x32}},
		{cmdDummyLine, []byte{0x30}},
		{cmdGateLineWidth, []byte{0x0A}},
	}
	for _, s := range steps {
		if err := p.command(s.cmd, s.data...); err != nil {
			return err
		}
	}

	lut := lutFull
	if mode == lutModePartial {
		lut = lutPartial
	}
	if err := p.command(cmdWriteLUT, lut...); err != nil {
		return err
	}

	if err := p.command(cmdSetRAMXCounter, 0x00); err != nil {
		return err
	}
	if err := p.command(cmdSetRAMYCounter, 0x00, 0x00); err != nil {
		return err
	}
	if err := p.waitIdle(); err != nil {
		return err
	}

	p.mode = mode
	return nil
}

// flush writes the frame buffer to RAM and triggers a refresh.
// A nil image writes solid white.
func (p *Panel) flush(img *image.Gray, updateMode byte) error {
	if err := p.command(cmdWriteRAM, toBuffer(img)...); err != nil {
		return err
	}
	if err := p.command(cmdUpdateControl2, updateMode); err != nil {
		return err
	}
	if err := p.command(cmdMasterActivate); err != nil {
		return err
	}
	return p.waitIdle()
}

// reset pulses the hardware reset line
func (p *Panel) reset() error {
	for _, level := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := p.rst.Out(level); err != nil {
			return err
		}
		time.Sleep(20 * time.Millisecond)
	}
	return nil
}

// waitIdle polls the busy line until the controller is ready
func (p *Panel) waitIdle() error {
	deadline := time.Now().Add(10 * time.Second)
	for p.busy.Read() == gpio.High {
		if time.Now().After(deadline) {
			return fmt.Errorf("panel busy timeout")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

// command sends one command byte followed by its data bytes
func (p *Panel) command(cmd byte, data ...byte) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := p.conn.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	// SPI drivers commonly cap a single transfer, so chunk large payloads
	const chunk = 2048
	for len(data) > 0 {
		n := len(data)
		if n > chunk {
			n = chunk
		}
		if err := p.conn.Tx(data[:n], nil); err != nil {
			return fmt.Errorf("data for 0x%02X: %w", cmd, err)
		}
		data = data[n:]
	}
	return nil
}

// toBuffer packs a landscape frame into the panel's portrait RAM layout,
// one bit per pixel, 1 = white. A nil image yields an all-white buffer.
func toBuffer(img *image.Gray) []byte {
	buf := make([]byte, bytesPerRow*panelHeight)
	for i := range buf {
		buf[i] = 0xFF
	}
	if img == nil {
		return buf
	}
	bounds := img.Bounds()
	for y := 0; y < panelHeight; y++ {
		for x := 0; x < panelWidth; x++ {
			// Rotate: landscape (y, panelWidth-1-x) lands at portrait (x, y)
			lx, ly := y, panelWidth-1-x
			if lx >= bounds.Dx() || ly >= bounds.Dy() {
				continue
			}
			if img.GrayAt(bounds.Min.X+lx, bounds.Min.Y+ly).Y < 0x80 {
				buf[y*bytesPerRow+x/8] &^= 0x80 >> uint(x%8)
			}
		}
	}
	return buf
}
