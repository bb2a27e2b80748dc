package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// Event names.
const (
	SignalRelayed   = "signal_relayed"
	SignalDelivered = "signal_delivered"
	SignalDropped   = "signal_dropped"
	SignalInvalid   = "signal_invalid"
	PeerConnected   = "peer_connected"
	PeerClosed      = "peer_disconnected"

	RecordingUploaded     = "recording_uploaded"
	RecordingUploadFailed = "recording_upload_failed"
	RecordingRejected     = "recording_rejected"
	RecordingServed       = "recording_served"
	RecordingDeleted      = "recording_deleted"
)

// Metrics is a concurrency-safe counter registry. A nil *Metrics discards
// everything.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, n uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += n
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.m {
		out[k] = v
	}
	return out
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// Handler exposes the counters in Prometheus' text exposition format as a
// single metric with an `event` label.
func Handler(m *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintln(w, "# HELP livecast_events_total Internal event counters.")
		_, _ = fmt.Fprintln(w, "# TYPE livecast_events_total counter")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "livecast_events_total{event=\"%s\"} %d\n", labelEscaper.Replace(k), snap[k])
		}
	})
}
