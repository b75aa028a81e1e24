package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/agent"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/attributes"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/config"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/display"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/pid"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/sensor"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/telemetry"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/transport"
)

const version = "1.2.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		if err := logger.SetLogLevelByName(cfg.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info().Str("version", version).Msg("Trive Aquasense starting")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Another instance appears to be running")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	factory := sensor.NewFactory()
	bundles, err := factory.BuildAll(cfg.Sensors)
	if err != nil {
		return err
	}
	if len(bundles) == 0 {
		logger.Warn().Msg("No sensors configured or built; telemetry will be empty")
	}
	defer stopDrivers(bundles)

	collector := telemetry.NewCollector(bundles)

	displays := display.NewManager(display.BuildDisplays(cfg.Displays))
	defer displays.Close()
	displays.RenderStartup(fmt.Sprintf("Aquasense v%s", version))

	attrs := attributes.NewCollector(cfg.DeviceName, version)

	client := transport.NewClient(cfg.Server, cfg.Token, cfg.DeviceName)
	displays.RenderStartup("Connecting...")
	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Disconnect()
	displays.RenderStartup("Connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	monitor := agent.New(collector, attrs, client, displays,
		time.Duration(cfg.PollPeriod)*time.Second)

	return monitor.Run(ctx)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal")
	cancel()
}

func stopDrivers(bundles []*sensor.Bundle) {
	for _, b := range bundles {
		if err := sensor.StopDriver(b.Driver); err != nil {
			logger.Warn().Str("bundle", b.ID).Err(err).Msg("Failed to stop sensor driver")
		}
	}
}
