package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStreamSubscribeAndRead(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan string, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var msg map[string]string
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg["symbol"]
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"trade","data":[{"s":"AAPL","p":190.5,"v":3,"t":1709200000123}]}`))
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	s := NewStream(StreamConfig{
		APIKey:       "k",
		WebsocketURL: "ws" + strings.TrimPrefix(srv.URL, "http"),
		Symbols:      []string{"AAPL"},
		PingInterval: time.Hour,
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()
	if !s.IsConnected() {
		t.Fatalf("expected connected")
	}
	if err := s.Subscribe(ctx); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if got := <-subscribed; got != "AAPL" {
		t.Fatalf("subscribed %q", got)
	}

	trades, _ := s.Read(ctx)
	select {
	case tr := <-trades:
		if tr == nil || tr.Symbol != "AAPL" || tr.Price != 190.5 || tr.Timestamp != 1709200000 {
			t.Fatalf("bad trade %+v", tr)
		}
	case <-ctx.Done():
		t.Fatalf("no trade received")
	}
}

func TestStreamReadWithoutConnect(t *testing.T) {
	s := NewStream(StreamConfig{WebsocketURL: "ws://127.0.0.1:1"}, nil)
	trades, errc := s.Read(context.Background())
	if err := <-errc; err == nil {
		t.Fatalf("expected not-connected error")
	}
	if _, ok := <-trades; ok {
		t.Fatalf("trades channel should be closed")
	}
	if err := s.Subscribe(context.Background()); err == nil {
		t.Fatalf("subscribe should fail when disconnected")
	}
}
