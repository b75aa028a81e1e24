package sensor

import (
	"fmt"

	dht "github.com/d2r2/go-dht"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

const dht22ReadRetries = 3

// DHT22 reads a combined temperature/humidity probe on a GPIO pin.
type DHT22 struct {
	id    string
	pin   int
	kind  string
	units string
}

func dht22Registration() Registration {
	return Registration{
		Descriptor: Descriptor{
			Accepted: []string{"id", "pin"},
			Required: []string{"id", "pin"},
			Coercers: map[string]Coercer{
				"id":  CoerceString,
				"pin": CoerceInt,
			},
		},
		Construct: newDHT22,
	}
}

func newDHT22(fields map[string]any) (Driver, error) {
	pin, _ := fields["pin"].(int)
	if err := checkPin(pin); err != nil {
		return nil, err
	}

	id, _ := fields["id"].(string)

	return &DHT22{
		id:    id,
		pin:   pin,
		kind:  "Temperature",
		units: "C",
	}, nil
}

func (d *DHT22) Name() string     { return "dht22" }
func (d *DHT22) Kind() string     { return d.kind }
func (d *DHT22) Units() string    { return d.units }
func (d *DHT22) Identity() string { return d.id }

// Read returns {"temperature": <celsius>, "humidity": <percent>}. The DHT22
// protocol is timing sensitive and transient failures are normal; a few
// retries happen inside the library before the read counts as failed.
func (d *DHT22) Read() (map[string]any, error) {
	temperature, humidity, _, err := dht.ReadDHTxxWithRetry(dht.DHT22, d.pin, false, dht22ReadRetries)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrSensorRead, err).
			WithMessage(fmt.Sprintf("reading DHT22 on pin %d", d.pin))
	}

	return map[string]any{
		"temperature": float64(temperature),
		"humidity":    float64(humidity),
	}, nil
}
