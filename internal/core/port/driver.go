package port

import (
	"github.com/greenwire-dev/optibridge/internal/core/domain"
)

// InverterDriver is the sole write path to hardware. Apply translates a
// resolved control mode plus a bounded grid charge power into device
// commands. Errors are *domain.DriverError; the previously commanded state
// is assumed to still hold and the next control cycle retries.
type InverterDriver interface {
	Open() error
	Close() error
	Apply(mode domain.ControlMode, powerW float64) error
	ReadTelemetry() (*domain.InverterTelemetry, error)
}

// TelemetrySink receives fire-and-forget telemetry updates.
type TelemetrySink interface {
	Publish(event any)
}
