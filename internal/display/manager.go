package display

import (
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

// Manager fans snapshots out to the configured displays and isolates their
// failures. A display that fails a render is disabled rather than retried,
// so a broken panel can never slow down or crash the agent loop.
type Manager struct {
	displays []Display
}

func NewManager(displays []Display) *Manager {
	return &Manager{displays: displays}
}

// Len returns the number of currently active displays.
func (m *Manager) Len() int {
	return len(m.displays)
}

// Render sends the snapshot to every active display, dropping the ones that
// fail.
func (m *Manager) Render(snapshot Snapshot) {
	m.each(func(d Display) error { return d.Render(snapshot) }, "Display render failed, disabling output")
}

// RenderStartup shows a startup/progress message on every active display.
func (m *Manager) RenderStartup(message string) {
	m.each(func(d Display) error { return d.RenderStartup(message) }, "Display startup render failed, disabling output")
}

// Close releases all display hardware. Close failures are logged only.
func (m *Manager) Close() {
	for _, d := range m.displays {
		if err := d.Close(); err != nil {
			logger.Warn().Err(err).Msg("Display close failed")
		}
	}
	m.displays = nil
}

func (m *Manager) each(op func(Display) error, failMsg string) {
	active := m.displays[:0]
	for _, d := range m.displays {
		if err := op(d); err != nil {
			logger.Warn().Err(err).Msg(failMsg)
			continue
		}
		active = append(active, d)
	}
	m.displays = active
}
