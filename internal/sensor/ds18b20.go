package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

const defaultW1BaseDir = "/sys/bus/w1/devices"

// DS18B20 reads a 1-Wire temperature probe through the kernel's w1 sysfs
// interface. Identified either by sensor id (device file constructed under
// the base dir) or by an explicit path, which may point at a w1_slave file
// directly or at an alternative base dir.
type DS18B20 struct {
	id         string
	baseDir    string
	deviceFile string
	kind       string
	units      string
}

func ds18b20Registration() Registration {
	return Registration{
		Descriptor: Descriptor{
			Accepted:      []string{"id", "path"},
			RequiredAnyOf: [][]string{{"id"}, {"path"}},
			Coercers: map[string]Coercer{
				"id":   CoerceString,
				"path": CoerceString,
			},
		},
		Construct: newDS18B20,
	}
}

func newDS18B20(fields map[string]any) (Driver, error) {
	d := &DS18B20{
		baseDir: defaultW1BaseDir,
		kind:    "Temperature",
		units:   "C",
	}

	if id, ok := fields["id"].(string); ok {
		d.id = id
	}

	if path, ok := fields["path"].(string); ok && path != "" {
		norm := strings.TrimRight(path, "/")
		if info, err := os.Stat(norm); err == nil && !info.IsDir() {
			// Full device file given, discovery not needed.
			d.deviceFile = norm
			return d, nil
		}
		d.baseDir = norm
	}

	if d.id != "" {
		d.deviceFile = filepath.Join(d.baseDir, d.id, "w1_slave")
	}

	return d, nil
}

func (d *DS18B20) Name() string  { return "ds18b20" }
func (d *DS18B20) Kind() string  { return d.kind }
func (d *DS18B20) Units() string { return d.units }

func (d *DS18B20) Identity() string {
	if d.deviceFile != "" {
		return d.deviceFile
	}
	return d.id
}

// Read returns the current temperature as {"temperature": <celsius>}.
func (d *DS18B20) Read() (map[string]any, error) {
	file, err := d.resolveDeviceFile()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrSensorRead, err).
			WithMessage(fmt.Sprintf("reading %s", file))
	}

	temp, err := parseW1Slave(string(data))
	if err != nil {
		return nil, err
	}

	return map[string]any{"temperature": temp}, nil
}

// resolveDeviceFile returns the configured device file or discovers the
// first DS18B20 under the base dir.
func (d *DS18B20) resolveDeviceFile() (string, error) {
	if d.deviceFile != "" {
		return d.deviceFile, nil
	}

	candidates, err := filepath.Glob(filepath.Join(d.baseDir, "28-*", "w1_slave"))
	if err != nil || len(candidates) == 0 {
		return "", errors.New().WithMessage(errors.ErrSensorRead,
			fmt.Sprintf("no DS18B20 sensor found under %s", d.baseDir))
	}

	d.deviceFile = candidates[0]

	return d.deviceFile, nil
}

// parseW1Slave extracts the temperature in Celsius from a w1_slave payload:
//
//	4b 46 7f ff 0c 10 1c : crc=1c YES
//	4b 46 7f ff 0c 10 1c t=21062
func parseW1Slave(contents string) (float64, error) {
	errFactory := errors.New()

	lines := strings.Split(strings.TrimRight(contents, "\n"), "\n")
	if len(lines) < 2 || !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, errFactory.WithMessage(errors.ErrSensorRead, "sensor CRC check failed")
	}

	pos := strings.Index(lines[1], "t=")
	if pos == -1 {
		return 0, errFactory.WithMessage(errors.ErrSensorRead, "temperature reading not found")
	}

	milli, err := strconv.ParseFloat(strings.TrimSpace(lines[1][pos+2:]), 64)
	if err != nil {
		return 0, errFactory.WithMessage(errors.ErrSensorRead, "malformed temperature value")
	}

	return milli / 1000.0, nil
}
