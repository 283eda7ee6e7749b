package sim

import (
	"time"

	"github.com/mortu/Controllable-Mobs-API/internal/telemetry"
	"github.com/mortu/Controllable-Mobs-API/logging"
)

// Deps carries shared infrastructure dependencies required by the engine and
// its loop.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   logging.Clock
}

func (d Deps) normalized() Deps {
	if d.Logger == nil {
		d.Logger = telemetry.LoggerFunc(nil)
	}
	if d.Metrics == nil {
		d.Metrics = telemetry.NopMetrics()
	}
	if d.Clock == nil {
		d.Clock = logging.ClockFunc(time.Now)
	}
	return d
}
