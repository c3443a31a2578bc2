package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/models"
	drepo "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/domain/repository"
	"github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/internal/service/ratelimit"
	applogger "github.com/doctroncall/SENTIMENT-BOT-CODE-sub001/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxRedialDelay = 30 * time.Second
	dropLogEvery   = 1000

	// subscribe writes share one token bucket so a long symbol list does
	// not trip provider-side flood protection
	subscribeBurst  = 10
	subscribeRefill = 5
)

var errStreamClosed = errors.New("marketdata: stream closed")

// Client implements a MarketStream over a provider WebSocket feed.
//
// The feed speaks a compact trade envelope:
//
//	{"type":"trade","data":[{"s":"BTCUSDT","p":64210.5,"v":0.02,"t":1717000000123}]}
//
// with millisecond event timestamps. Housekeeping frames carry only a type,
// e.g. {"type":"ping"}, and expect a matching pong.
type Client struct {
	apiKey         string
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	limiter        *ratelimit.Limiter
	log            *applogger.Logger

	mu        sync.Mutex // guards conn, symbols, connected, closed
	wmu       sync.Mutex // serializes data-frame writes
	conn      *websocket.Conn
	symbols   []string
	connected bool
	closed    bool
}

// New creates a WebSocket MarketStream.
func New(apiKey, websocketURL string, reconnectDelay, pingInterval time.Duration, limiter *ratelimit.Limiter, log *applogger.Logger) drepo.MarketStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		limiter:        limiter,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errStreamClosed
	}
	c.mu.Unlock()

	u := c.websocketURL
	if c.apiKey != "" {
		u = fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("marketdata connect: %w", err)
	}

	wait := c.readWait()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	c.mu.Lock()
	old := c.conn
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	c.log.Info("market stream connected", applogger.String("url", c.websocketURL))
	return nil
}

// readWait is how long the connection may stay silent before it is presumed
// dead. Both pongs and data frames reset the clock.
func (c *Client) readWait() time.Duration {
	if c.pingInterval <= 0 {
		return 90 * time.Second
	}
	return 2 * c.pingInterval
}

// Subscribe subscribes to the given symbols and remembers them so redials
// can restore the subscriptions. Passing no symbols re-sends the remembered
// set.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	c.mu.Lock()
	conn, connected := c.conn, c.connected
	if len(symbols) > 0 {
		c.symbols = symbols
	} else {
		symbols = c.symbols
	}
	c.mu.Unlock()

	if conn == nil || !connected {
		return fmt.Errorf("marketdata not connected")
	}
	for _, s := range symbols {
		if err := c.waitForToken(ctx); err != nil {
			return err
		}
		if err := c.send(conn, controlFrame{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("market stream subscribed", applogger.Int("symbols", len(symbols)))
	return nil
}

func (c *Client) waitForToken(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	for !c.limiter.Allow("ws:subscribe", subscribeBurst, subscribeRefill) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// send serializes data-frame writes; the connection allows only one
// concurrent writer.
func (c *Client) send(conn *websocket.Conn, v interface{}) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

type controlFrame struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
}

type feedTrade struct {
	Symbol string  `json:"s"`
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
	TimeMS int64   `json:"t"`
}

type feedFrame struct {
	Type string      `json:"type"`
	Data []feedTrade `json:"data"`
}

// Read streams Trade events until ctx ends. The channels survive connection
// failures: the read loop redials and resubscribes on its own, reporting
// each failure on the error channel as it goes.
func (c *Client) Read(ctx context.Context) (<-chan *models.Trade, <-chan error) {
	trades := make(chan *models.Trade, 1024)
	errs := make(chan error, 8)

	go c.pingLoop(ctx)
	go c.readLoop(ctx, trades, errs)
	return trades, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	interval := c.pingInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				continue
			}
			// WriteControl is safe alongside the data writer.
			_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		}
	}
}

func (c *Client) readLoop(ctx context.Context, trades chan<- *models.Trade, errs chan<- error) {
	defer close(trades)
	defer close(errs)

	var dropped uint64
	wait := c.readWait()
	for ctx.Err() == nil {
		c.mu.Lock()
		conn, closed := c.conn, c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		if conn == nil {
			if !c.redial(ctx, errs) {
				return
			}
			continue
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.report(errs, fmt.Errorf("marketdata read: %w", err))
			if !c.redial(ctx, errs) {
				return
			}
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wait))

		var frame feedFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue // not a frame we understand
		}
		switch frame.Type {
		case "ping":
			_ = c.send(conn, controlFrame{Type: "pong"})
		case "trade":
			for _, d := range frame.Data {
				t := &models.Trade{
					Symbol:    d.Symbol,
					Timestamp: time.UnixMilli(d.TimeMS).UTC(),
					Price:     d.Price,
					Volume:    d.Volume,
				}
				select {
				case trades <- t:
				default:
					if dropped++; dropped%dropLogEvery == 1 {
						c.log.Warn("market stream backpressure, dropping trades",
							applogger.Uint64("dropped_total", dropped))
					}
				}
			}
		}
	}
}

// redial reconnects with capped exponential backoff and restores the
// subscriptions. Returns false once ctx ends or Close was called.
func (c *Client) redial(ctx context.Context, errs chan<- error) bool {
	delay := c.reconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		err := c.dial(ctx)
		if errors.Is(err, errStreamClosed) {
			return false
		}
		if err == nil {
			err = c.Subscribe(ctx, nil)
			if err == nil {
				return true
			}
			err = fmt.Errorf("marketdata resubscribe: %w", err)
		}
		c.report(errs, err)

		if delay < maxRedialDelay {
			delay *= 2
			if delay > maxRedialDelay {
				delay = maxRedialDelay
			}
		}
		c.log.Warn("market stream reconnect failed",
			applogger.Int("attempt", attempt),
			applogger.Duration("retry_in", delay),
			applogger.Error(err))
	}
}

// report is non-blocking; the error channel is advisory.
func (c *Client) report(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// Close tears down the connection for good. A running read loop observes the
// closed flag and exits instead of redialing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
