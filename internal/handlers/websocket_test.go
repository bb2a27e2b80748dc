package handlers

import (
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mossy-p/livecast/internal/metrics"
)

func dialPeer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	return string(frame)
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	_, frame, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("unexpected frame %s", frame)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func TestSignaling_RelaysToOthersOnly(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)
	carol := dialPeer(t, srv)
	waitFor(t, "three peers", func() bool { return env.registry.Len() == 3 })

	offer := `{"event":"offer","data":{"type":"offer","sdp":"v=0\r\no=- 1 2 IN IP4 127.0.0.1\r\n"}}`
	if err := alice.WriteMessage(websocket.TextMessage, []byte(offer)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	for _, peer := range []*websocket.Conn{bob, carol} {
		if got := readFrame(t, peer); got != offer {
			t.Fatalf("relayed frame=%s, want %s", got, offer)
		}
	}
	expectSilence(t, alice)

	candidate := `{"event":"ice-candidate","data":{"candidate":"candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host","sdpMid":"0","sdpMLineIndex":0}}`
	if err := bob.WriteMessage(websocket.TextMessage, []byte(candidate)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	for _, peer := range []*websocket.Conn{alice, carol} {
		if got := readFrame(t, peer); got != candidate {
			t.Fatalf("relayed frame=%s, want %s", got, candidate)
		}
	}
	expectSilence(t, bob)

	if got := env.metrics.Get(metrics.SignalRelayed); got != 2 {
		t.Fatalf("%s=%d, want 2", metrics.SignalRelayed, got)
	}
}

func TestSignaling_InvalidFramesAreSkipped(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)
	waitFor(t, "two peers", func() bool { return env.registry.Len() == 2 })

	for _, frame := range []string{
		`not json`,
		`{"event":"chat","data":"hi"}`,
		`{"event":"answer"}`,
	} {
		if err := alice.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	answer := `{"event":"answer","data":{"type":"answer","sdp":"v=0\r\n"}}`
	if err := alice.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if got := readFrame(t, bob); got != answer {
		t.Fatalf("relayed frame=%s, want %s", got, answer)
	}
	if got := env.metrics.Get(metrics.SignalInvalid); got != 3 {
		t.Fatalf("%s=%d, want 3", metrics.SignalInvalid, got)
	}
}

func TestSignaling_DisconnectUnregisters(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	alice := dialPeer(t, srv)
	bob := dialPeer(t, srv)
	waitFor(t, "two peers", func() bool { return env.registry.Len() == 2 })

	bob.Close()
	waitFor(t, "bob to leave", func() bool { return env.registry.Len() == 1 })

	offer := `{"event":"offer","data":{"type":"offer","sdp":"v=0\r\n"}}`
	if err := alice.WriteMessage(websocket.TextMessage, []byte(offer)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	waitFor(t, "relay of lone offer", func() bool { return env.metrics.Get(metrics.SignalRelayed) == 1 })
	if got := env.metrics.Get(metrics.SignalDelivered); got != 0 {
		t.Fatalf("%s=%d, want 0", metrics.SignalDelivered, got)
	}
	if got := env.metrics.Get(metrics.PeerClosed); got != 1 {
		t.Fatalf("%s=%d, want 1", metrics.PeerClosed, got)
	}
}
