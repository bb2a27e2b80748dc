package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/mossy-p/livecast/internal/metrics"
	"github.com/mossy-p/livecast/internal/models"
)

type fakePeer struct {
	id     string
	refuse bool

	mu     sync.Mutex
	frames [][]byte
}

func (p *fakePeer) ID() string { return p.id }

func (p *fakePeer) Send(frame []byte) bool {
	if p.refuse {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, frame)
	return true
}

func (p *fakePeer) received() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte(nil), p.frames...)
}

func newTestRelay(peers ...Peer) (*Relay, *Registry, *metrics.Metrics) {
	reg := NewRegistry()
	for _, p := range peers {
		reg.Add(p)
	}
	m := metrics.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelay(reg, m, log), reg, m
}

func allSignals() []models.Signal {
	return []models.Signal{
		models.Offer{Data: json.RawMessage(`{"type":"offer","sdp":"v=0"}`)},
		models.Answer{Data: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)},
		models.IceCandidate{Data: json.RawMessage(`{"candidate":"candidate:1 1 UDP 1 10.0.0.1 9 typ host","sdpMid":"0"}`)},
	}
}

func TestRelay_BroadcastExceptSender(t *testing.T) {
	for _, sig := range allSignals() {
		for n := 2; n <= 5; n++ {
			t.Run(fmt.Sprintf("%s/%d_peers", sig.Type(), n), func(t *testing.T) {
				peers := make([]*fakePeer, n)
				asPeers := make([]Peer, n)
				for i := range peers {
					peers[i] = &fakePeer{id: fmt.Sprintf("peer-%d", i)}
					asPeers[i] = peers[i]
				}
				relay, _, m := newTestRelay(asPeers...)

				delivered := relay.Broadcast(peers[0].id, sig)
				if delivered != n-1 {
					t.Fatalf("delivered=%d, want %d", delivered, n-1)
				}

				if got := len(peers[0].received()); got != 0 {
					t.Fatalf("sender received %d frames, want 0", got)
				}
				for _, p := range peers[1:] {
					frames := p.received()
					if len(frames) != 1 {
						t.Fatalf("%s received %d frames, want 1", p.id, len(frames))
					}
					got, err := models.DecodeSignal(frames[0])
					if err != nil {
						t.Fatalf("DecodeSignal: %v", err)
					}
					if got.Type() != sig.Type() || !bytes.Equal(got.Payload(), sig.Payload()) {
						t.Fatalf("%s got %s %s, want %s %s", p.id, got.Type(), got.Payload(), sig.Type(), sig.Payload())
					}
				}

				if got := m.Get(metrics.SignalDelivered); got != uint64(n-1) {
					t.Fatalf("%s=%d, want %d", metrics.SignalDelivered, got, n-1)
				}
			})
		}
	}
}

func TestRelay_BroadcastToEmpty(t *testing.T) {
	sender := &fakePeer{id: "alone"}

	for _, sig := range allSignals() {
		relay, _, m := newTestRelay(sender)
		if got := relay.Broadcast(sender.id, sig); got != 0 {
			t.Fatalf("Broadcast(%s)=%d, want 0", sig.Type(), got)
		}
		if got := m.Get(metrics.SignalDropped); got != 0 {
			t.Fatalf("%s=%d, want 0", metrics.SignalDropped, got)
		}
	}
	if got := len(sender.received()); got != 0 {
		t.Fatalf("sender received %d frames, want 0", got)
	}

	relay, _, _ := newTestRelay()
	if got := relay.Broadcast("nobody", allSignals()[0]); got != 0 {
		t.Fatalf("Broadcast on empty registry=%d, want 0", got)
	}
}

func TestRelay_DropsForRefusingPeer(t *testing.T) {
	sender := &fakePeer{id: "broadcaster"}
	slow := &fakePeer{id: "slow", refuse: true}
	viewer := &fakePeer{id: "viewer"}
	relay, _, m := newTestRelay(sender, slow, viewer)

	if got := relay.Broadcast(sender.id, allSignals()[0]); got != 1 {
		t.Fatalf("delivered=%d, want 1", got)
	}
	if got := len(viewer.received()); got != 1 {
		t.Fatalf("viewer received %d frames, want 1", got)
	}
	if got := m.Get(metrics.SignalDropped); got != 1 {
		t.Fatalf("%s=%d, want 1", metrics.SignalDropped, got)
	}
}

func TestRelay_PerSenderOrder(t *testing.T) {
	sender := &fakePeer{id: "broadcaster"}
	viewer := &fakePeer{id: "viewer"}
	relay, _, _ := newTestRelay(sender, viewer)

	for i := 0; i < 10; i++ {
		relay.Broadcast(sender.id, models.IceCandidate{Data: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))})
	}
	frames := viewer.received()
	if len(frames) != 10 {
		t.Fatalf("received %d frames, want 10", len(frames))
	}
	for i, frame := range frames {
		sig, err := models.DecodeSignal(frame)
		if err != nil {
			t.Fatalf("DecodeSignal: %v", err)
		}
		if want := fmt.Sprintf(`{"n":%d}`, i); string(sig.Payload()) != want {
			t.Fatalf("frame %d payload=%s, want %s", i, sig.Payload(), want)
		}
	}
}

func TestRegistry_AddRemove(t *testing.T) {
	reg := NewRegistry()
	a, b := &fakePeer{id: "a"}, &fakePeer{id: "b"}
	reg.Add(a)
	reg.Add(b)
	reg.Add(a)

	if got := reg.Len(); got != 2 {
		t.Fatalf("Len=%d, want 2", got)
	}
	others := reg.Others("a")
	if len(others) != 1 || others[0].ID() != "b" {
		t.Fatalf("Others(a)=%v, want [b]", others)
	}

	if !reg.Remove("a") {
		t.Fatalf("Remove(a)=false, want true")
	}
	if reg.Remove("a") {
		t.Fatalf("second Remove(a)=true, want false")
	}
	if got := len(reg.Others("b")); got != 0 {
		t.Fatalf("Others(b) len=%d, want 0", got)
	}
}
