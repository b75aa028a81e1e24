package display

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/host/v3"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

type nowFunc func() time.Time

func defaultNow() time.Time { return time.Now() }

var displayHostOnce sync.Once
var displayHostErr error

func initDisplayHost() error {
	displayHostOnce.Do(func() {
		_, displayHostErr = host.Init()
	})
	if displayHostErr != nil {
		return errors.New().Wrap(ErrInit, displayHostErr)
	}
	return nil
}

// BuildDisplays constructs displays from configuration. Entries that fail
// are logged and skipped; a bad panel never prevents startup.
func BuildDisplays(configs []map[string]any) []Display {
	displays := make([]Display, 0, len(configs))

	for idx, cfg := range configs {
		d, err := build(cfg)
		if err != nil {
			displayType, _ := cfg["type"].(string)
			logger.Warn().
				Int("index", idx).
				Str("display_type", displayType).
				Err(err).
				Msg("Skipping display")
			continue
		}
		displays = append(displays, d)
	}

	return displays
}

func build(cfg map[string]any) (Display, error) {
	displayType, _ := cfg["type"].(string)
	displayType = strings.ToLower(strings.TrimSpace(displayType))

	switch displayType {
	case "logging":
		return NewLoggingDisplay(cfg), nil
	case "ssd1306":
		return newSSD1306(cfg)
	case "":
		return nil, errors.New().WithMessage(ErrInit, "missing 'type' in display configuration")
	default:
		return nil, errors.New().WithMessage(ErrInit,
			fmt.Sprintf("unknown display type %q; known types: logging, ssd1306", displayType))
	}
}

// refreshPeriodFrom reads an optional refresh_period (seconds) from a
// display configuration.
func refreshPeriodFrom(cfg map[string]any) time.Duration {
	switch v := cfg["refresh_period"].(type) {
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	default:
		return 0
	}
}
