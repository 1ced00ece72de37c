package bitso

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSURL is the Bitso public websocket endpoint.
const WSURL = "wss://ws.bitso.com"

const (
	wsReadTimeout    = 60 * time.Second
	wsReconnectDelay = 3 * time.Second
	wsMaxReconnects  = 10
)

// WSTrade is one trade from the public trades channel.
type WSTrade struct {
	Book   string
	TID    int64
	Price  float64
	Amount float64
	TS     int64 // receive time, unix millis
}

// TradesStream subscribes to the public trades channel for a set of books
// and delivers each fill to OnTrade. It reconnects with a fixed delay and
// resubscribes after every reconnect.
type TradesStream struct {
	books  []string
	dialer *websocket.Dialer
	log    *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	// OnTrade is called from the read loop for every trade received.
	OnTrade func(WSTrade)

	// OnReconnect is called before each reconnect attempt.
	OnReconnect func(attempt int)
}

// NewTradesStream creates a stream for the given books.
func NewTradesStream(books []string, log *slog.Logger) *TradesStream {
	if log == nil {
		log = slog.Default()
	}
	return &TradesStream{
		books:  books,
		dialer: websocket.DefaultDialer,
		log:    log,
	}
}

type wsSubscribe struct {
	Action string `json:"action"`
	Book   string `json:"book"`
	Type   string `json:"type"`
}

type wsMessage struct {
	Type    string `json:"type"`
	Book    string `json:"book"`
	Payload []struct {
		TID    int64   `json:"i"`
		Amount float64 `json:"a,string"`
		Price  float64 `json:"r,string"`
	} `json:"payload"`
}

// Run connects and consumes trades until ctx is cancelled or the reconnect
// budget is exhausted.
func (s *TradesStream) Run(ctx context.Context) error {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		attempts++
		if attempts > wsMaxReconnects {
			return err
		}
		if s.OnReconnect != nil {
			s.OnReconnect(attempts)
		}
		s.log.Warn("websocket disconnected, reconnecting",
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wsReconnectDelay):
		}
	}
}

func (s *TradesStream) connectAndRead(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, WSURL, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	for _, book := range s.books {
		if err := conn.WriteJSON(wsSubscribe{Action: "subscribe", Book: book, Type: "trades"}); err != nil {
			return err
		}
	}
	s.log.Info("subscribed to trades", slog.Int("books", len(s.books)))

	// Close the connection when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // keep-alive and ack frames
		}
		if msg.Type != "trades" || s.OnTrade == nil {
			continue
		}
		now := time.Now().UnixMilli()
		for _, p := range msg.Payload {
			s.OnTrade(WSTrade{
				Book:   msg.Book,
				TID:    p.TID,
				Price:  p.Price,
				Amount: p.Amount,
				TS:     now,
			})
		}
	}
}
