package signal_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"signalbroker/internal/core/domain"
	"signalbroker/internal/core/services"
	"signalbroker/internal/infrastructure/signal"
)

func newTestServer(t *testing.T, maxSubscribers int) (*httptest.Server, string) {
	t.Helper()
	registry := services.NewRegistry(time.Minute, nil, nil)
	graph := services.NewSubscriptionGraph(maxSubscribers, nil)
	opts := signal.Options{
		MaxFrameSize:      65536,
		PingInterval:      30 * time.Second,
		ConnectionTimeout: time.Minute,
		WriteTimeout:      time.Second,
		EnableSFU:         true,
		PlayerPath:        "/player",
		StreamerPath:      "/streamer",
		SFUPath:           "/sfu",
		UnrealPath:        "/unreal",
	}
	srv := signal.NewServer(registry, graph, opts, nil, nil)
	mux := http.NewServeMux()
	srv.Mux(mux)
	ts := httptest.NewServer(mux)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return ts, wsURL
}

func dial(t *testing.T, wsURL, path string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+path, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f domain.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return f
}

func sendFrame(t *testing.T, conn *websocket.Conn, f domain.Frame) {
	t.Helper()
	if err := conn.WriteJSON(f); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// TestHappyPathAndForwarding covers §8 scenarios 1 and 2: identify,
// config, playerCount, then an offer/answer round trip with the
// player's internal connection ID stamped onto the forwarded offer.
func TestHappyPathAndForwarding(t *testing.T) {
	ts, wsURL := newTestServer(t, 10)
	defer ts.Close()

	streamerConn := dial(t, wsURL, "/streamer")
	defer streamerConn.Close()
	sendFrame(t, streamerConn, domain.Frame{"type": "identify", "streamerId": "S1"})
	if cfg := readFrame(t, streamerConn); cfg.Type() != domain.TypeConfig {
		t.Fatalf("expected config, got %v", cfg)
	}

	playerConn := dial(t, wsURL, "/player")
	defer playerConn.Close()
	sendFrame(t, playerConn, domain.Frame{"type": "identify", "playerId": "P1"})
	if cfg := readFrame(t, playerConn); cfg.Type() != domain.TypeConfig {
		t.Fatalf("expected config, got %v", cfg)
	}

	if count := readFrame(t, streamerConn); count.Type() != domain.TypePlayerCount || int(count["count"].(float64)) != 1 {
		t.Fatalf("expected playerCount=1, got %v", count)
	}

	sendFrame(t, playerConn, domain.Frame{"type": "offer", "sdp": "v=0..."})
	offer := readFrame(t, streamerConn)
	if offer.Type() != domain.TypeOffer || offer.String("sdp") != "v=0..." || offer.String("id") == "" {
		t.Fatalf("expected offer with stamped id, got %v", offer)
	}

	sendFrame(t, streamerConn, domain.Frame{"type": "answer", "sdp": "v=0r...", "id": offer.String("id")})
	answer := readFrame(t, playerConn)
	if answer.Type() != domain.TypeAnswer || answer.String("sdp") != "v=0r..." {
		t.Fatalf("expected answer, got %v", answer)
	}
}

// TestCapacityRejectsBeyondCap covers §8 scenario 3.
func TestCapacityRejectsBeyondCap(t *testing.T) {
	ts, wsURL := newTestServer(t, 2)
	defer ts.Close()

	streamerConn := dial(t, wsURL, "/streamer")
	defer streamerConn.Close()
	sendFrame(t, streamerConn, domain.Frame{"type": "identify", "streamerId": "S1"})
	readFrame(t, streamerConn) // config

	var players []*websocket.Conn
	for i := 0; i < 2; i++ {
		p := dial(t, wsURL, "/player")
		defer p.Close()
		sendFrame(t, p, domain.Frame{"type": "identify"})
		readFrame(t, p)      // config
		readFrame(t, streamerConn) // playerCount
		players = append(players, p)
	}

	third := dial(t, wsURL, "/player")
	defer third.Close()
	sendFrame(t, third, domain.Frame{"type": "identify"})
	readFrame(t, third) // config

	errFrame := readFrame(t, third)
	if errFrame.Type() != domain.TypeError {
		t.Fatalf("expected error frame for over-capacity player, got %v", errFrame)
	}
}

// TestStreamerDisconnectSweep covers §8 scenario 4.
func TestStreamerDisconnectSweep(t *testing.T) {
	ts, wsURL := newTestServer(t, 10)
	defer ts.Close()

	streamerConn := dial(t, wsURL, "/streamer")
	sendFrame(t, streamerConn, domain.Frame{"type": "identify", "streamerId": "S1"})
	readFrame(t, streamerConn) // config

	playerConn := dial(t, wsURL, "/player")
	defer playerConn.Close()
	sendFrame(t, playerConn, domain.Frame{"type": "identify", "playerId": "P1"})
	readFrame(t, playerConn)  // config
	readFrame(t, streamerConn) // playerCount

	streamerConn.Close()
	time.Sleep(100 * time.Millisecond)

	sendFrame(t, playerConn, domain.Frame{"type": "offer", "sdp": "v=0..."})
	errFrame := readFrame(t, playerConn)
	if errFrame.Type() != domain.TypeError {
		t.Fatalf("expected error after streamer disconnect, got %v", errFrame)
	}
}

// TestUnknownPathReturns404 covers §8 scenario 6.
func TestUnknownPathReturns404(t *testing.T) {
	ts, wsURL := newTestServer(t, 10)
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/unknown", nil)
	if err == nil {
		t.Fatal("expected dial to an unregistered path to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected HTTP 404, got %d", status)
	}
}

// TestPlayerOfferWithNoStreamerYieldsError covers the boundary behavior:
// "a player sending offer with no streamer receives exactly one error".
func TestPlayerOfferWithNoStreamerYieldsError(t *testing.T) {
	ts, wsURL := newTestServer(t, 10)
	defer ts.Close()

	playerConn := dial(t, wsURL, "/player")
	defer playerConn.Close()
	sendFrame(t, playerConn, domain.Frame{"type": "identify", "playerId": "P1"})
	readFrame(t, playerConn) // config

	sendFrame(t, playerConn, domain.Frame{"type": "offer", "sdp": "v=0..."})
	errFrame := readFrame(t, playerConn)
	if errFrame.Type() != domain.TypeError {
		t.Fatalf("expected error frame, got %v", errFrame)
	}
}

func TestUnrealPathBindsAsFullPlayer(t *testing.T) {
	ts, wsURL := newTestServer(t, 10)
	defer ts.Close()

	streamerConn := dial(t, wsURL, "/streamer")
	defer streamerConn.Close()
	sendFrame(t, streamerConn, domain.Frame{"type": "identify", "streamerId": "S1"})
	readFrame(t, streamerConn) // config

	unrealConn := dial(t, wsURL, "/unreal")
	defer unrealConn.Close()
	sendFrame(t, unrealConn, domain.Frame{"type": "identify", "playerId": "U1"})
	readFrame(t, unrealConn) // config

	count := readFrame(t, streamerConn)
	if count.Type() != domain.TypePlayerCount || int(count["count"].(float64)) != 1 {
		t.Fatalf("expected /unreal to bind into the subscriber set, got %v", count)
	}
}
