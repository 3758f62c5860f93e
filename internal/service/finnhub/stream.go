package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"

	"github.com/gorilla/websocket"
)

var errNotConnected = errors.New("finnhub stream not connected")

// StreamConfig configures the trade stream.
type StreamConfig struct {
	APIKey         string
	WebsocketURL   string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	Buffer         int
}

// Stream implements MarketStream over the Finnhub trade websocket.
type Stream struct {
	cfg    StreamConfig
	logger *applogger.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a trade stream. Nothing is dialed until Connect.
func NewStream(cfg StreamConfig, logger *applogger.Logger) *Stream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1024
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Stream{cfg: cfg, logger: logger, dialer: websocket.DefaultDialer}
}

// Connect dials the websocket.
func (s *Stream) Connect(ctx context.Context) error {
	u, err := url.Parse(s.cfg.WebsocketURL)
	if err != nil {
		return fmt.Errorf("finnhub stream url: %w", err)
	}
	q := u.Query()
	q.Set("token", s.cfg.APIKey)
	u.RawQuery = q.Encode()

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("finnhub stream connected", applogger.Int("symbols", len(s.cfg.Symbols)))
	return nil
}

// Subscribe sends a subscribe frame per configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	conn := s.current()
	if conn == nil {
		return errNotConnected
	}
	for _, sym := range s.cfg.Symbols {
		if err := s.write(conn, map[string]string{"type": "subscribe", "symbol": sym}); err != nil {
			return fmt.Errorf("subscribe %s: %w", sym, err)
		}
		s.logger.Debug("finnhub subscribed", applogger.String("symbol", sym))
	}
	return nil
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Read streams trades until the connection fails or ctx ends. Both channels
// are closed when the read loop exits.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, s.cfg.Buffer)
	errc := make(chan error, 1)

	conn := s.current()
	if conn == nil {
		errc <- errNotConnected
		close(trades)
		close(errc)
		return trades, errc
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				s.writeMu.Lock()
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				s.writeMu.Unlock()
			}
		}
	}()

	go func() {
		defer close(trades)
		defer close(errc)
		defer close(done)
		dropped := 0
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errc <- fmt.Errorf("finnhub read: %w", err)
				}
				if dropped > 0 {
					s.logger.Warn("finnhub dropped trades on backpressure", applogger.Int("count", dropped))
				}
				return
			}
			var m fhMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
				continue
			}
			for _, d := range m.Data {
				t := &models.Trade{Symbol: d.S, Timestamp: d.T / 1000, Price: d.P, Volume: d.V}
				select {
				case trades <- t:
				default:
					dropped++
				}
			}
		}
	}()

	return trades, errc
}

// Reconnect closes the current connection, waits ReconnectDelay, then dials and resubscribes.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.ReconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the websocket.
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.connected = false
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected reports whether a connection is open.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Stream) current() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	return s.conn
}

func (s *Stream) write(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

var _ drepo.MarketStream = (*Stream)(nil)
