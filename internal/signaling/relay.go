package signaling

import (
	"log/slog"

	"github.com/mossy-p/livecast/internal/metrics"
	"github.com/mossy-p/livecast/internal/models"
)

// Relay forwards each signal to every peer except its sender. There is no
// acknowledgement and no retry; a signal sent while nobody else is connected
// is simply lost.
type Relay struct {
	registry *Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewRelay(registry *Registry, m *metrics.Metrics, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		registry: registry,
		metrics:  m,
		log:      log.With("component", "relay"),
	}
}

// Broadcast hands sig to all peers other than from and returns how many
// accepted it.
func (r *Relay) Broadcast(from string, sig models.Signal) int {
	frame, err := models.EncodeSignal(sig)
	if err != nil {
		r.log.Error("Failed to encode signal", "type", sig.Type(), "from", from, "error", err)
		return 0
	}

	r.metrics.Inc(metrics.SignalRelayed)
	delivered := 0
	for _, p := range r.registry.Others(from) {
		if p.Send(frame) {
			delivered++
			continue
		}
		r.metrics.Inc(metrics.SignalDropped)
		r.log.Warn("Dropped signal, peer not accepting", "type", sig.Type(), "from", from, "to", p.ID())
	}
	r.metrics.Add(metrics.SignalDelivered, uint64(delivered))

	if delivered == 0 {
		r.log.Debug("Signal had no recipients", "type", sig.Type(), "from", from)
	}
	return delivered
}
