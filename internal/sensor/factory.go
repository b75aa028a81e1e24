package sensor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

// Calibration is a linear correction applied to one canonical key.
type Calibration struct {
	Slope  float64
	Offset float64
}

// Range is an inclusive validity window for one canonical key.
type Range struct {
	Min float64
	Max float64
}

// Bundle combines a constructed driver with the metadata the telemetry
// collector applies each cycle. All metadata maps are keyed by canonical
// telemetry key; Keys maps the driver's raw namespace into it.
type Bundle struct {
	Driver Driver

	// ID is the stable identity used for last-read and smoothing state.
	// Assigned once at construction, never derived again.
	ID string

	Keys        map[string]string
	Calibration map[string]Calibration
	Ranges      map[string]Range
	Smoothing   map[string]int

	// Interval is the minimum seconds between reads; 0 means always due.
	Interval int
}

// Factory constructs sensor bundles from declarative configuration. It owns
// the registry mapping type tags to driver registrations.
type Factory struct {
	registry map[string]Registration
	seq      int
}

// NewFactory returns a factory pre-populated with the built-in drivers.
func NewFactory() *Factory {
	return &Factory{
		registry: map[string]Registration{
			"ds18b20":    ds18b20Registration(),
			"dht22":      dht22Registration(),
			"water_flow": waterFlowRegistration(),
			"fake":       fakeRegistration(),
		},
	}
}

// Register adds or overrides the driver registration for a type tag.
// Overriding is allowed but logged, since it is rarely intentional.
func (f *Factory) Register(sensorType string, reg Registration) error {
	errFactory := errors.New()

	sensorType = strings.ToLower(strings.TrimSpace(sensorType))
	if sensorType == "" {
		return errFactory.WithMessage(errors.ErrInvalidSensorConfig, "sensor type cannot be empty")
	}
	if reg.Construct == nil {
		return errFactory.WithMessage(errors.ErrInvalidSensorConfig, "registration has no constructor")
	}

	if _, exists := f.registry[sensorType]; exists {
		logger.Warn().
			Str("sensor_type", sensorType).
			Msg("Overriding registered sensor driver")
	}

	f.registry[sensorType] = reg

	return nil
}

// KnownTypes returns the sorted list of registered type tags.
func (f *Factory) KnownTypes() []string {
	types := make([]string, 0, len(f.registry))
	for t := range f.registry {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}

// Build turns one configuration record into a validated Bundle or fails with
// a structured error carrying the sensor type/id context.
func (f *Factory) Build(cfg map[string]any) (*Bundle, error) {
	errFactory := errors.New()

	sensorType, _ := cfg["type"].(string)
	sensorType = strings.ToLower(strings.TrimSpace(sensorType))
	ctx := errors.SensorContext{Type: sensorType, ID: configID(cfg)}

	if sensorType == "" {
		return nil, errFactory.
			WithMessage(errors.ErrInvalidSensorConfig, "missing or invalid 'type' in sensor configuration").
			WithData(ctx)
	}

	keys, err := parseKeys(cfg["keys"])
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	canonical := make(map[string]struct{}, len(keys))
	for _, c := range keys {
		canonical[c] = struct{}{}
	}

	calibration, err := parseCalibration(cfg["calibration"], canonical)
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	ranges, err := parseRanges(cfg["ranges"], canonical)
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	smoothing, err := parseSmoothing(cfg["smoothing"], canonical)
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	interval, err := parseInterval(cfg["interval"])
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	reg, ok := f.registry[sensorType]
	if !ok {
		return nil, errFactory.
			WithMessage(errors.ErrUnknownSensorType,
				fmt.Sprintf("unknown sensor type %q; known types: %s",
					sensorType, strings.Join(f.KnownTypes(), ", "))).
			WithData(ctx)
	}

	fields, err := f.prepareFields(sensorType, reg.Descriptor, cfg)
	if err != nil {
		return nil, wrapConfigErr(err, ctx)
	}

	driver, err := reg.Construct(fields)
	if err != nil {
		return nil, errFactory.
			Wrap(errors.ErrInvalidSensorConfig, err).
			WithMessage(fmt.Sprintf("failed to construct %q driver", sensorType)).
			WithData(ctx)
	}

	f.seq++
	id := driver.Name() + ":" + driver.Identity()
	if driver.Identity() == "" {
		id = fmt.Sprintf("%s#%d", sensorType, f.seq)
	}

	return &Bundle{
		Driver:      driver,
		ID:          id,
		Keys:        keys,
		Calibration: calibration,
		Ranges:      ranges,
		Smoothing:   smoothing,
		Interval:    interval,
	}, nil
}

// BuildAll builds bundles from a list of sensor configurations or from a
// container exposing a "sensors" list. Elements are built independently;
// failures are logged with their index and skipped. Only a structurally
// wrong top-level shape fails the whole call.
func (f *Factory) BuildAll(cfg any) ([]*Bundle, error) {
	errFactory := errors.New()

	var items []any
	switch v := cfg.(type) {
	case []any:
		items = v
	case []map[string]any:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	case map[string]any:
		raw, ok := v["sensors"]
		if !ok {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				"BuildAll expects a list of sensor configs or a container with a 'sensors' list")
		}
		var err error
		if items, err = asList(raw); err != nil {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig, "'sensors' must be a list")
		}
	default:
		return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
			"BuildAll expects a list of sensor configs or a container with a 'sensors' list")
	}

	bundles := make([]*Bundle, 0, len(items))
	for idx, item := range items {
		sensorCfg, ok := item.(map[string]any)
		if !ok {
			logger.Warn().
				Int("index", idx).
				Msg("Skipping sensor: configuration entry is not a mapping")
			continue
		}

		bundle, err := f.Build(sensorCfg)
		if err != nil {
			sensorType, _ := sensorCfg["type"].(string)
			logger.Warn().
				Int("index", idx).
				Str("sensor_type", sensorType).
				Str("sensor_id", configID(sensorCfg)).
				Err(err).
				Msg("Skipping sensor")
			continue
		}

		bundles = append(bundles, bundle)
	}

	return bundles, nil
}

// prepareFields filters the configuration down to the descriptor's accepted
// fields, applies coercions and verifies required fields are present and
// non-empty afterwards.
func (f *Factory) prepareFields(sensorType string, desc Descriptor, cfg map[string]any) (map[string]any, error) {
	errFactory := errors.New()

	fields := make(map[string]any)
	for key, value := range cfg {
		if desc.accepts(key) {
			fields[key] = value
		}
	}

	for name, coerce := range desc.Coercers {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		coerced, err := coerce(raw)
		if err != nil {
			return nil, errFactory.
				Wrap(errors.ErrInvalidSensorConfig, err).
				WithMessage(fmt.Sprintf("invalid type for field %q of %q", name, sensorType))
		}
		fields[name] = coerced
	}

	if len(desc.Required) > 0 {
		// An internally inconsistent descriptor is a driver bug, not user
		// error, but it still surfaces as a configuration-time failure.
		var notAccepted []string
		for _, req := range desc.Required {
			if !desc.accepts(req) {
				notAccepted = append(notAccepted, req)
			}
		}
		if len(notAccepted) > 0 {
			sort.Strings(notAccepted)
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("driver %q misconfigured: required fields %v are not accepted fields",
					sensorType, notAccepted))
		}

		var missing []string
		for _, req := range desc.Required {
			if v, ok := fields[req]; !ok || isEmptyValue(v) {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("%q requires fields %v; missing %v", sensorType, desc.Required, missing))
		}
	} else if len(desc.RequiredAnyOf) > 0 {
		satisfied := false
		for _, group := range desc.RequiredAnyOf {
			all := true
			for _, req := range group {
				if v, ok := fields[req]; !ok || isEmptyValue(v) {
					all = false
					break
				}
			}
			if all {
				satisfied = true
				break
			}
		}
		if !satisfied {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("%q requires at least one of the field sets %v", sensorType, desc.RequiredAnyOf))
		}
	}

	return fields, nil
}

// --- metadata validation --------------------------------------------------

func parseKeys(raw any) (map[string]string, error) {
	errFactory := errors.New()

	m, ok := raw.(map[string]any)
	if !ok {
		if typed, isTyped := raw.(map[string]string); isTyped && len(typed) > 0 {
			return typed, nil
		}
		return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
			"missing or invalid 'keys' in sensor configuration")
	}
	if len(m) == 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
			"missing or invalid 'keys' in sensor configuration")
	}

	keys := make(map[string]string, len(m))
	for rawKey, v := range m {
		canonical, isString := v.(string)
		if !isString || strings.TrimSpace(canonical) == "" {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("canonical key for %q must be a non-empty string", rawKey))
		}
		keys[rawKey] = canonical
	}

	return keys, nil
}

func parseCalibration(raw any, canonical map[string]struct{}) (map[string]Calibration, error) {
	errFactory := errors.New()

	entries, err := metadataEntries(raw, "calibration")
	if err != nil {
		return nil, err
	}

	out := make(map[string]Calibration, len(entries))
	for key, v := range entries {
		if err := checkCanonicalRef(key, canonical, "calibration"); err != nil {
			return nil, err
		}
		fieldsMap, ok := v.(map[string]any)
		if !ok {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("calibration for %q must be a mapping with 'offset' and 'slope'", key))
		}
		slope, slopeOK := numericField(fieldsMap, "slope")
		offset, offsetOK := numericField(fieldsMap, "offset")
		if _, has := fieldsMap["slope"]; !has {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("calibration for %q must include 'offset' and 'slope'", key))
		}
		if _, has := fieldsMap["offset"]; !has {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("calibration for %q must include 'offset' and 'slope'", key))
		}
		if !slopeOK || !offsetOK {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("calibration values for %q must be numeric", key))
		}
		out[key] = Calibration{Slope: slope, Offset: offset}
	}

	return out, nil
}

func parseRanges(raw any, canonical map[string]struct{}) (map[string]Range, error) {
	errFactory := errors.New()

	entries, err := metadataEntries(raw, "ranges")
	if err != nil {
		return nil, err
	}

	out := make(map[string]Range, len(entries))
	for key, v := range entries {
		if err := checkCanonicalRef(key, canonical, "ranges"); err != nil {
			return nil, err
		}
		fieldsMap, ok := v.(map[string]any)
		if !ok {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("range for %q must be a mapping with 'min' and 'max'", key))
		}
		if _, has := fieldsMap["min"]; !has {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("range for %q must include 'min' and 'max'", key))
		}
		if _, has := fieldsMap["max"]; !has {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("range for %q must include 'min' and 'max'", key))
		}
		low, lowOK := numericField(fieldsMap, "min")
		high, highOK := numericField(fieldsMap, "max")
		if !lowOK || !highOK {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("range values for %q must be numeric", key))
		}
		if low >= high {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("invalid range for %q: min (%v) must be less than max (%v)", key, low, high))
		}
		out[key] = Range{Min: low, Max: high}
	}

	return out, nil
}

func parseSmoothing(raw any, canonical map[string]struct{}) (map[string]int, error) {
	errFactory := errors.New()

	entries, err := metadataEntries(raw, "smoothing")
	if err != nil {
		return nil, err
	}

	out := make(map[string]int, len(entries))
	for key, v := range entries {
		if err := checkCanonicalRef(key, canonical, "smoothing"); err != nil {
			return nil, err
		}
		// Window 1 is accepted here even though the collector only smooths
		// at window >= 2; it behaves as "no smoothing" at read time.
		window, ok := intValue(v)
		if !ok || window < 1 {
			return nil, errFactory.WithMessage(errors.ErrInvalidSensorConfig,
				fmt.Sprintf("smoothing for %q must be an integer >= 1: %v", key, v))
		}
		out[key] = window
	}

	return out, nil
}

func parseInterval(raw any) (int, error) {
	if raw == nil {
		return 0, nil
	}
	interval, ok := intValue(raw)
	if !ok || interval < 1 {
		return 0, errors.New().WithMessage(errors.ErrInvalidSensorConfig,
			"'interval' must be an integer >= 1 if provided")
	}

	return interval, nil
}

func metadataEntries(raw any, section string) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, errors.New().WithMessage(errors.ErrInvalidSensorConfig,
			fmt.Sprintf("'%s' must be a mapping keyed by canonical key", section))
	}

	return m, nil
}

func checkCanonicalRef(key string, canonical map[string]struct{}, section string) error {
	errFactory := errors.New()

	if strings.TrimSpace(key) == "" {
		return errFactory.WithMessage(errors.ErrInvalidSensorConfig,
			fmt.Sprintf("keys in '%s' must be non-empty strings", section))
	}
	if _, ok := canonical[key]; !ok {
		return errFactory.WithMessage(errors.ErrInvalidSensorConfig,
			fmt.Sprintf("metadata references unknown canonical key %q in '%s'", key, section))
	}

	return nil
}

func numericField(m map[string]any, field string) (float64, bool) {
	v, ok := m[field]
	if !ok {
		return 0, false
	}
	return floatValue(v)
}

// floatValue accepts any Go numeric kind that untyped config decoding can
// produce.
func floatValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

// intValue accepts integer kinds plus floats with no fractional part, since
// JSON decoding turns every number into float64.
func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
		return 0, false
	case float32:
		f := float64(t)
		if f == math.Trunc(f) {
			return int(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []map[string]any:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return items, nil
	default:
		return nil, errors.New().New(errors.ErrInvalidArgument)
	}
}

func configID(cfg map[string]any) string {
	if id, ok := cfg["id"].(string); ok {
		return id
	}
	return ""
}

func wrapConfigErr(err error, ctx errors.SensorContext) error {
	var domainErr errors.Error
	if errors.As(err, &domainErr) {
		return domainErr.WithData(ctx)
	}
	return errors.New().Wrap(errors.ErrInvalidSensorConfig, err).WithData(ctx)
}
