// Package config loads the service configuration from a JSON config file,
// environment variables and command line flags. Flags win over environment,
// environment wins over file.
package config

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
)

const (
	DefaultPollPeriod = 60
	DefaultLogLevel   = "info"
	DefaultDeviceName = "aquasense"

	// EnvConfigPath points at an explicit config file, mainly for tests and
	// ad hoc runs.
	EnvConfigPath = "AQUASENSE_CONFIG"

	configName = "config"
	configType = "json"
	configDir  = "/etc/trive_aquasense"
)

var validLogLevels = map[string]struct{}{
	"trace": {}, "debug": {}, "info": {}, "warn": {}, "error": {},
}

type Config struct {
	// Server is the ThingsBoard host, from THINGSBOARD_SERVER or the file.
	Server string `mapstructure:"server"`
	// Token is the device access token, from ACCESS_TOKEN or the file.
	Token string `mapstructure:"token"`

	DeviceName string `mapstructure:"device_name"`
	PollPeriod int    `mapstructure:"poll_period"`
	LogLevel   string `mapstructure:"log_level"`
	Debug      bool   `mapstructure:"debug"`
	Verbose    bool   `mapstructure:"verbose"`

	// Sensors and Displays stay untyped here; the sensor factory and the
	// display factory own their validation.
	Sensors  []map[string]any `mapstructure:"sensors"`
	Displays []map[string]any `mapstructure:"displays"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("aquasense", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFlag := fs.String("config", "", "Path to config file")
	logLevelFlag := fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	debugFlag := fs.Bool("debug", false, "Enable debug logging")
	verboseFlag := fs.Bool("verbose", false, "Enable verbose logging")
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("poll_period", DefaultPollPeriod)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("device_name", DefaultDeviceName)

	if err := v.BindEnv("token", "ACCESS_TOKEN"); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	if err := v.BindEnv("server", "THINGSBOARD_SERVER"); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	explicit := *configFlag
	if explicit == "" {
		explicit = os.Getenv(EnvConfigPath)
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// A missing file is fine: sensors can come entirely from a
			// later Register call in bench setups. Anything else is not.
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	if fs.Changed("log-level") {
		v.Set("log_level", *logLevelFlag)
	}
	if fs.Changed("debug") {
		v.Set("debug", *debugFlag)
	}
	if fs.Changed("verbose") {
		v.Set("verbose", *verboseFlag)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded core fields. Sensor and display entries are
// deliberately not checked here.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.PollPeriod < 1 {
		return errFactory.WithMessage(errors.ErrInvalidInterval, "poll_period must be >= 1 second")
	}

	if _, ok := validLogLevels[strings.ToLower(c.LogLevel)]; !ok {
		return errFactory.WithMessage(errors.ErrInvalidLogLevel,
			"log_level must be one of trace, debug, info, warn, error")
	}

	if c.Server == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig,
			"server is required (THINGSBOARD_SERVER or 'server' in config file)")
	}
	if c.Token == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig,
			"token is required (ACCESS_TOKEN or 'token' in config file)")
	}

	return nil
}
