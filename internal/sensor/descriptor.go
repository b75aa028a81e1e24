package sensor

import (
	"github.com/spf13/cast"
)

// Coercer converts a raw configuration value into the type a driver expects,
// e.g. the string "17" into the int 17 for a pin number.
type Coercer func(value any) (any, error)

// Descriptor declares which configuration fields a driver accepts, which are
// strictly required (Required, an "all of these" set) or alternatively
// required (RequiredAnyOf, "at least one of these sets"), and which need
// coercion. The factory consults this table instead of reflecting on driver
// types.
//
// Required and RequiredAnyOf are mutually exclusive; Required wins when both
// are set, matching how drivers declare exactly one of them.
type Descriptor struct {
	Accepted      []string
	Required      []string
	RequiredAnyOf [][]string
	Coercers      map[string]Coercer
}

func (d Descriptor) accepts(field string) bool {
	for _, a := range d.Accepted {
		if a == field {
			return true
		}
	}
	return false
}

// Constructor builds a driver from its filtered, coerced configuration
// fields.
type Constructor func(fields map[string]any) (Driver, error)

// Registration pairs a driver constructor with its descriptor.
type Registration struct {
	Descriptor Descriptor
	Construct  Constructor
}

// Coercers shared by the built-in drivers.

func CoerceInt(v any) (any, error) {
	return cast.ToIntE(v)
}

func CoerceFloat(v any) (any, error) {
	return cast.ToFloat64E(v)
}

func CoerceString(v any) (any, error) {
	return cast.ToStringE(v)
}

// isEmptyValue reports whether a required field should count as missing.
func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
