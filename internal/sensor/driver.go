// Package sensor provides the sensor driver contract, the declarative
// construction factory and the concrete hardware drivers.
package sensor

// Driver is the capability set every sensor driver implements. Read returns
// the raw key/value mapping in the driver's own namespace; the telemetry
// collector remaps it into canonical keys.
type Driver interface {
	// Name is the human-readable sensor model identifier, e.g. "ds18b20".
	Name() string

	// Kind is the sensor category, e.g. "Temperature" or "Flow".
	Kind() string

	// Units is the unit string for the primary reading, e.g. "C" or "l/min".
	Units() string

	// Identity returns the identifying attribute of this instance (id, device
	// path or pin). May be empty; the factory then assigns a synthetic one.
	Identity() string

	// Read returns the current raw readings.
	Read() (map[string]any, error)
}

// Stopper is implemented by drivers that own background resources (pulse
// callbacks, bus handles). Stop must be idempotent: shutdown paths may call
// it more than once.
type Stopper interface {
	Stop() error
}

// StopDriver releases a driver's resources if it has any to release.
func StopDriver(d Driver) error {
	if s, ok := d.(Stopper); ok {
		return s.Stop()
	}
	return nil
}
