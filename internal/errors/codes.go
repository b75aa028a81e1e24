package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Factory errors
	ErrUnknownSensorType   ErrorCode = "factory_unknown_sensor_type"
	ErrInvalidSensorConfig ErrorCode = "factory_invalid_sensor_config"

	// Sensor errors. One code per failure kind so callers can match the
	// whole category or a single kind.
	ErrSensorInit       ErrorCode = "sensor_init_failed"
	ErrSensorRead       ErrorCode = "sensor_read_failed"
	ErrSensorValue      ErrorCode = "sensor_invalid_value"
	ErrSensorStop       ErrorCode = "sensor_stop_failed"
	ErrSensorOutOfRange ErrorCode = "sensor_value_out_of_range"

	// Application errors
	ErrInitApp        ErrorCode = "init_app_failed"
	ErrMainLoop       ErrorCode = "main_loop_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:            "Internal error occurred",
	ErrInvalidArgument:     "Invalid argument provided",
	ErrAlreadyRunning:      "Another instance is already running",
	ErrInvalidConfig:       "Invalid configuration",
	ErrMissingConfig:       "Missing configuration",
	ErrBindFlags:           "Failed to bind flags",
	ErrReadConfig:          "Failed to read configuration",
	ErrInvalidInterval:     "Invalid interval value",
	ErrInvalidLogLevel:     "Invalid log level",
	ErrUnknownSensorType:   "Unknown sensor type",
	ErrInvalidSensorConfig: "Invalid sensor configuration",
	ErrSensorInit:          "Sensor initialization failed",
	ErrSensorRead:          "Sensor read failed",
	ErrSensorValue:         "Sensor produced or received an invalid value",
	ErrSensorStop:          "Sensor could not be stopped cleanly",
	ErrSensorOutOfRange:    "Sensor value out of configured range",
	ErrInitApp:             "Failed to initialize application",
	ErrMainLoop:            "Error in main loop",
	ErrShutdownFailed:      "Shutdown failed",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
