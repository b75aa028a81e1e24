// Package attributes collects the static and dynamic device attributes sent
// alongside telemetry.
package attributes

import (
	"net"
	"runtime"
	"time"
)

// Collector gathers device attributes. Static values are captured once at
// construction; dynamic ones (uptime, address) are refreshed on every
// Collect.
type Collector struct {
	deviceName string
	version    string
	startedAt  time.Time
}

func NewCollector(deviceName, version string) *Collector {
	return &Collector{
		deviceName: deviceName,
		version:    version,
		startedAt:  time.Now(),
	}
}

// DeviceName returns the configured device name.
func (c *Collector) DeviceName() string {
	return c.deviceName
}

// Collect returns the current attribute mapping.
func (c *Collector) Collect() map[string]any {
	attrs := map[string]any{
		"device_name": c.deviceName,
		"app_version": c.version,
		"os":          runtime.GOOS,
		"arch":        runtime.GOARCH,
		"uptime_s":    int64(time.Since(c.startedAt).Seconds()),
	}

	if ip := localIP(); ip != "" {
		attrs["ip_address"] = ip
	}

	return attrs
}

// localIP returns the primary outbound interface address, or empty when the
// device has no route. Uses a UDP dial that never sends a packet.
func localIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return ""
	}

	return addr.IP.String()
}
