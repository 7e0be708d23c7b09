// Package gt911 implements a driver for the Goodix GT911 capacitive
// multi-touch controller.
//
// Datasheet: https://www.goodix.com/en/product/touch/touch_screen/gt911
package gt911

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Bus is the I²C transaction interface required by the driver. It is
// satisfied by periph.io/x/conn/v3/i2c.Bus and by Simulator.
type Bus interface {
	Tx(addr uint16, w, r []byte) error
}

// I²C addresses, selected by the INT line level while reset is released.
const (
	DefaultAddr   = 0x5d
	SecondaryAddr = 0x14
)

// Register map. Addresses are 16 bits, transmitted big-endian; all
// multi-byte register values are little-endian.
const (
	regCommand      = 0x8040
	regConfigStart  = 0x8047
	regXOutputMax   = 0x8048
	regYOutputMax   = 0x804a
	regConfigChksum = 0x80ff
	regConfigFresh  = 0x8100
	regProductID    = 0x8140
	regPointStatus  = 0x814e
	regPointStart   = 0x814f

	// The configuration block spans regConfigStart up to and including
	// the trailing checksum byte.
	configSize = regConfigFresh - regConfigStart

	pointSize = 8
)

// MaxPoints is the number of simultaneous touches the controller
// reports.
const MaxPoints = 5

// configReloadDelay is the settle time after telling the controller to
// reapply its configuration. The datasheet requires at least 10ms.
const configReloadDelay = 100 * time.Millisecond

// ErrConfigMismatch is reported when the controller does not accept the
// requested resolution.
var ErrConfigMismatch = errors.New("gt911: configuration mismatch")

// TouchPoint is one active contact of a touch frame.
type TouchPoint struct {
	Pos image.Point
	// Size is the contact area reported by the controller.
	Size int
}

// ProductID is the identity block of the controller.
type ProductID struct {
	Product  string
	Firmware uint16
	// Resolution is the panel resolution reported by the identity
	// block, which may lag behind a configuration update.
	Resolution image.Point
	Vendor     byte
}

type Config struct {
	// Addr overrides the I²C address. Zero selects the address implied
	// by the reset wiring.
	Addr uint16
	// Width and Height are the panel resolution the controller is
	// configured to report coordinates in.
	Width, Height int
	// Reset and Int are the RESET and INT control lines. Either may be
	// nil when not wired.
	Reset, Int gpio.PinIO
	// SecondaryAddr selects SecondaryAddr during reset. It is only
	// effective with both control lines wired.
	SecondaryAddr bool
}

type Device struct {
	bus       Bus
	addr      uint16
	width     int
	height    int
	reset     gpio.PinIO
	intr      gpio.PinIO
	secondary bool

	points  [MaxPoints]TouchPoint
	scratch [2 + configSize]byte
}

// New validates cfg and returns a device handle. The controller is not
// touched until Configure is called.
func New(bus Bus, cfg Config) (*Device, error) {
	if cfg.Width <= 0 || cfg.Width >= 1<<12 || cfg.Height <= 0 || cfg.Height >= 1<<12 {
		return nil, fmt.Errorf("gt911: invalid resolution %dx%d", cfg.Width, cfg.Height)
	}
	addr := cfg.Addr
	switch addr {
	case 0:
		if cfg.Reset != nil && cfg.Int != nil && cfg.SecondaryAddr {
			addr = SecondaryAddr
		} else {
			addr = DefaultAddr
		}
	case DefaultAddr, SecondaryAddr:
	default:
		return nil, fmt.Errorf("gt911: invalid address %#x", addr)
	}
	return &Device{
		bus:       bus,
		addr:      addr,
		width:     cfg.Width,
		height:    cfg.Height,
		reset:     cfg.Reset,
		intr:      cfg.Int,
		secondary: cfg.SecondaryAddr,
	}, nil
}

// Configure resets the controller, verifies its configuration and
// switches it to coordinate reporting mode. Transaction failures abort
// the sequence; there are no retries.
func (d *Device) Configure() error {
	if err := d.hardwareReset(); err != nil {
		return fmt.Errorf("gt911: reset: %w", err)
	}
	if err := d.checkConfig(); err != nil {
		return err
	}
	// Coordinate reporting mode.
	if err := d.writeReg(regCommand, 0x00); err != nil {
		return fmt.Errorf("gt911: command: %w", err)
	}
	return nil
}

// hardwareReset pulses the RESET line and drives the INT line to the
// address-select level during reset release. Without a RESET line the
// INT line, if wired, is switched to input; without either the
// controller is left as the bootloader configured it.
func (d *Device) hardwareReset() error {
	if d.reset == nil {
		if d.intr != nil {
			return d.intr.In(gpio.Float, gpio.NoEdge)
		}
		return nil
	}
	if err := d.reset.Out(gpio.High); err != nil {
		return err
	}
	if d.intr != nil {
		// Brief pulse so the controller samples the INT level from a
		// known state.
		if err := d.reset.Out(gpio.Low); err != nil {
			return err
		}
		time.Sleep(5 * time.Millisecond)
		if err := d.reset.Out(gpio.High); err != nil {
			return err
		}
	}
	if err := d.reset.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if d.intr != nil {
		// The INT level while reset is released selects the I²C
		// address: high for SecondaryAddr, low for DefaultAddr. The
		// datasheet asks for a 10µs settle.
		if err := d.intr.Out(gpio.Level(d.secondary)); err != nil {
			return err
		}
		time.Sleep(100 * time.Microsecond)
	}
	if err := d.reset.Out(gpio.High); err != nil {
		return err
	}
	if d.intr != nil {
		time.Sleep(5 * time.Millisecond)
		if err := d.intr.In(gpio.Float, gpio.NoEdge); err != nil {
			return err
		}
	}
	return nil
}

// checkConfig patches the configured resolution if it differs from the
// requested one and tells the controller to reload its settings.
func (d *Device) checkConfig() error {
	const (
		xOff = regXOutputMax - regConfigStart
		yOff = regYOutputMax - regConfigStart
	)
	cfg := d.scratch[2 : 2+configSize]
	if err := d.read(regConfigStart, cfg); err != nil {
		return fmt.Errorf("gt911: read config: %w", err)
	}
	bo := binary.LittleEndian
	if int(bo.Uint16(cfg[xOff:])) == d.width && int(bo.Uint16(cfg[yOff:])) == d.height {
		return nil
	}
	bo.PutUint16(cfg[xOff:], uint16(d.width))
	bo.PutUint16(cfg[yOff:], uint16(d.height))
	cfg[configSize-1] = checksum(cfg[:configSize-1])
	// cfg sits right after the two address bytes in scratch, so the
	// write needs only the address filled in.
	w := d.scratch[:2+configSize]
	binary.BigEndian.PutUint16(w, regConfigStart)
	if err := d.bus.Tx(d.addr, w, nil); err != nil {
		return fmt.Errorf("gt911: write config: %w", err)
	}
	// Read back to make sure the controller accepted the patch.
	res := d.scratch[2:6]
	if err := d.read(regXOutputMax, res); err != nil {
		return fmt.Errorf("gt911: config readback: %w", err)
	}
	if gw, gh := int(bo.Uint16(res)), int(bo.Uint16(res[2:])); gw != d.width || gh != d.height {
		return fmt.Errorf("%w: readback %dx%d, want %dx%d", ErrConfigMismatch, gw, gh, d.width, d.height)
	}
	time.Sleep(10 * time.Millisecond)
	if err := d.writeReg(regConfigFresh, 0x01); err != nil {
		return fmt.Errorf("gt911: config reload: %w", err)
	}
	// Give the controller time to reapply its settings.
	time.Sleep(configReloadDelay)
	return nil
}

// ProductID reads the identity block. It is a pure read with no side
// effects on the controller.
func (d *Device) ProductID() (ProductID, error) {
	buf := d.scratch[2:13]
	if err := d.read(regProductID, buf); err != nil {
		return ProductID{}, fmt.Errorf("gt911: product id: %w", err)
	}
	bo := binary.LittleEndian
	return ProductID{
		Product:    strings.TrimRight(string(buf[:4]), "\x00"),
		Firmware:   bo.Uint16(buf[4:]),
		Resolution: image.Pt(int(bo.Uint16(buf[6:])), int(bo.Uint16(buf[8:]))),
		Vendor:     buf[10],
	}, nil
}

// Resolution reads the resolution the controller reports coordinates
// in. It is read from the device on every call; callers use it after
// Configure to assert the controller accepted the requested resolution.
func (d *Device) Resolution() (image.Point, error) {
	buf := d.scratch[2:6]
	if err := d.read(regXOutputMax, buf); err != nil {
		return image.Point{}, fmt.Errorf("gt911: resolution: %w", err)
	}
	bo := binary.LittleEndian
	return image.Pt(int(bo.Uint16(buf)), int(bo.Uint16(buf[2:]))), nil
}

// ReadTouches reads the touch points of the current frame, up to
// MaxPoints. An empty slice means no new frame was ready. The status
// register is acknowledged exactly once per call, whether or not a
// frame was ready; a frame posted by the controller between the status
// read and the acknowledge is lost, as in the reference sequence.
//
// The returned slice is valid until the next call.
func (d *Device) ReadTouches() ([]TouchPoint, error) {
	status := d.scratch[2:3]
	if err := d.read(regPointStatus, status); err != nil {
		return nil, fmt.Errorf("gt911: status: %w", err)
	}
	n := 0
	if status[0]&0x80 != 0 {
		n = int(status[0] & 0x0f)
		if n > MaxPoints {
			n = MaxPoints
		}
	}
	bo := binary.LittleEndian
	for i := 0; i < n; i++ {
		buf := d.scratch[2 : 2+pointSize]
		if err := d.read(regPointStart+uint16(i)*pointSize, buf); err != nil {
			return nil, fmt.Errorf("gt911: point %d: %w", i, err)
		}
		// Byte 0 is the track id, byte 7 is reserved.
		d.points[i] = TouchPoint{
			Pos:  image.Pt(int(bo.Uint16(buf[1:])), int(bo.Uint16(buf[3:]))),
			Size: int(bo.Uint16(buf[5:])),
		}
	}
	if err := d.writeReg(regPointStatus, 0x00); err != nil {
		return nil, fmt.Errorf("gt911: ack: %w", err)
	}
	return d.points[:n], nil
}

// checksum computes the two's-complement checksum of the configuration
// block, excluding the checksum byte itself. The sum of the block
// including the checksum is zero mod 256.
func checksum(cfg []byte) byte {
	var sum byte
	for _, b := range cfg {
		sum += b
	}
	return ^sum + 1
}

func (d *Device) read(reg uint16, dst []byte) error {
	w := d.scratch[:2]
	binary.BigEndian.PutUint16(w, reg)
	return d.bus.Tx(d.addr, w, dst)
}

func (d *Device) writeReg(reg uint16, val byte) error {
	w := d.scratch[:3]
	binary.BigEndian.PutUint16(w, reg)
	w[2] = val
	return d.bus.Tx(d.addr, w, nil)
}
