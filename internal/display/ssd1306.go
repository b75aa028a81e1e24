package display

import (
	"fmt"
	"image"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

const ssd1306LineHeight = 13 // basicfont.Face7x13 advance

// SSD1306Display drives a 128x64 I2C OLED panel showing the four canonical
// aquarium readings.
type SSD1306Display struct {
	dev  *ssd1306.Dev
	bus  closer
	gate refreshGate
	now  nowFunc
}

type closer interface {
	Close() error
}

// newSSD1306 opens the configured I2C bus ("" selects the first available)
// and initializes the panel.
func newSSD1306(cfg map[string]any) (*SSD1306Display, error) {
	errFactory := errors.New()

	if err := initDisplayHost(); err != nil {
		return nil, err
	}

	busName, _ := cfg["bus"].(string)
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errFactory.Wrap(ErrInit, err).
			WithMessage(fmt.Sprintf("opening i2c bus %q", busName))
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, errFactory.Wrap(ErrInit, err).WithMessage("initializing ssd1306")
	}

	return &SSD1306Display{
		dev:  dev,
		bus:  bus,
		gate: refreshGate{period: refreshPeriodFrom(cfg)},
		now:  defaultNow,
	}, nil
}

func (d *SSD1306Display) Render(snapshot Snapshot) error {
	if !d.gate.shouldRender(d.now()) {
		return nil
	}

	status := StatusFromSnapshot(snapshot)
	lines := []string{
		status.DeviceName,
		formatReading("Water", status.WaterTemperature, "C"),
		formatReading("Air", status.AirTemperature, "C"),
		formatReading("Hum", status.AirHumidity, "%"),
		formatReading("Flow", status.WaterFlow, "l/m"),
	}

	return d.drawLines(lines)
}

func (d *SSD1306Display) RenderStartup(message string) error {
	return d.drawLines([]string{message})
}

func (d *SSD1306Display) Close() error {
	errFactory := errors.New()

	if err := d.dev.Halt(); err != nil {
		d.bus.Close()
		return errFactory.Wrap(ErrClose, err)
	}
	if err := d.bus.Close(); err != nil {
		return errFactory.Wrap(ErrClose, err)
	}

	return nil
}

func (d *SSD1306Display) drawLines(lines []string) error {
	img := image1bit.NewVerticalLSB(d.dev.Bounds())
	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{C: image1bit.On},
		Face: basicfont.Face7x13,
	}

	y := ssd1306LineHeight
	for _, line := range lines {
		drawer.Dot = fixed.P(0, y)
		drawer.DrawString(line)
		y += ssd1306LineHeight
	}

	if err := d.dev.Draw(d.dev.Bounds(), img, image.Point{}); err != nil {
		return errors.New().Wrap(ErrRender, err)
	}

	return nil
}

func formatReading(label string, value *float64, unit string) string {
	if value == nil {
		return fmt.Sprintf("%s: --", label)
	}
	return fmt.Sprintf("%s: %.1f%s", label, *value, unit)
}
