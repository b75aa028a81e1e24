package errors

// ErrorCode is a stable identifier for an error category. Packages declare
// their own codes alongside the shared ones in codes.go.
type ErrorCode string

// Error is a domain error carrying a code, an optional wrapped cause and
// optional structured context data.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates domain errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}

// SensorContext identifies the sensor a factory or driver error belongs to.
// Attached via WithData so callers can log type/id without string parsing.
type SensorContext struct {
	Type string
	ID   string
}

func (c SensorContext) String() string {
	switch {
	case c.Type != "" && c.ID != "":
		return "sensor_type=" + c.Type + ", sensor_id=" + c.ID
	case c.Type != "":
		return "sensor_type=" + c.Type
	case c.ID != "":
		return "sensor_id=" + c.ID
	default:
		return ""
	}
}
