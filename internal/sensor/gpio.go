package sensor

import (
	"fmt"
	"sync"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"periph.io/x/host/v3"
)

// BCM GPIO numbers usable on the 40-pin Raspberry Pi header.
var validGPIOPins = func() map[int]struct{} {
	pins := make(map[int]struct{})
	for p := 2; p <= 27; p++ {
		pins[p] = struct{}{}
	}
	return pins
}()

// checkPin validates a BCM pin number shared by all GPIO-based drivers.
func checkPin(pin int) error {
	if _, ok := validGPIOPins[pin]; !ok {
		return errors.New().WithMessage(errors.ErrSensorValue,
			fmt.Sprintf("pin %d is not a valid GPIO pin on this device", pin))
	}
	return nil
}

var hostInitOnce sync.Once
var hostInitErr error

// initHost loads the periph.io host drivers once per process.
func initHost() error {
	hostInitOnce.Do(func() {
		_, hostInitErr = host.Init()
	})
	if hostInitErr != nil {
		return errors.New().Wrap(errors.ErrSensorInit, hostInitErr)
	}
	return nil
}
