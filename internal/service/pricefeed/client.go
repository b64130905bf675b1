package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"AgriPulse/internal/domain/models"
	drepo "AgriPulse/internal/domain/repository"
	"AgriPulse/pkg/logger"
	"AgriPulse/pkg/util"
)

const writeWait = 5 * time.Second

// Client implements PriceStream over a mandi price WebSocket feed.
//
// Frames: {"type":"price","data":[{"crop":..,"market":..,"date":..,"price":..}]}.
// Other frame types are ignored.
type Client struct {
	url            string
	markets        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	connSig   chan struct{}
}

func New(url string, markets []string, reconnectDelay, pingInterval time.Duration) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		url:            url,
		markets:        markets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            logger.NewNop(),
		connSig:        make(chan struct{}, 1),
	}
}

func (c *Client) SetLogger(l *logger.Logger) {
	if l != nil {
		c.log = l
	}
}

// Connect dials the feed.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("price feed connect: %w", err)
	}
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	select {
	case c.connSig <- struct{}{}:
	default:
	}
	c.log.Info("price feed connected", logger.String("url", c.url))
	return nil
}

// Subscribe asks for every configured market. An empty list subscribes to all.
func (c *Client) Subscribe(ctx context.Context) error {
	if !c.IsConnected() {
		return fmt.Errorf("price feed not connected")
	}
	markets := c.markets
	if len(markets) == 0 {
		markets = []string{"*"}
	}
	for _, m := range markets {
		if err := c.writeJSON(map[string]string{"type": "subscribe", "market": m}); err != nil {
			return fmt.Errorf("subscribe %s: %w", m, err)
		}
		c.log.Debug("price feed subscribed", logger.String("market", m))
	}
	return nil
}

func (c *Client) writeJSON(v interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("price feed not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) ping() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

type feedPrice struct {
	Crop   string  `json:"crop"`
	Market string  `json:"market"`
	Date   string  `json:"date"`
	Price  float64 `json:"price"`
}

type feedMessage struct {
	Type string      `json:"type"`
	Data []feedPrice `json:"data"`
}

// decodeFrame returns the observations carried by a price frame.
func decodeFrame(b []byte) ([]*models.PriceObservation, error) {
	var m feedMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Type != "price" {
		return nil, nil
	}
	out := make([]*models.PriceObservation, 0, len(m.Data))
	for _, d := range m.Data {
		date, ok := util.ParseDate(d.Date)
		if !ok {
			continue
		}
		out = append(out, &models.PriceObservation{
			Crop:   d.Crop,
			Market: d.Market,
			Date:   date,
			Price:  d.Price,
			Source: "feed",
		})
	}
	return out, nil
}

// Read streams observations until ctx ends. A read error is reported on the
// error channel and the loop waits for Reconnect before reading again.
func (c *Client) Read(ctx context.Context) (<-chan *models.PriceObservation, <-chan error) {
	out := make(chan *models.PriceObservation, 1024)
	errCh := make(chan error, 1)

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ping()
			}
		}
	}()

	go func() {
		defer close(out)
		defer close(errCh)
		for {
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()
			if conn == nil {
				select {
				case <-ctx.Done():
					return
				case <-c.connSig:
				}
				continue
			}

			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil || c.isClosed() {
					return
				}
				c.dropConn(conn)
				select {
				case errCh <- fmt.Errorf("price feed read: %w", err):
				default:
				}
				continue
			}
			obs, err := decodeFrame(b)
			if err != nil {
				c.log.Debug("price feed: undecodable frame", logger.Error(err))
				continue
			}
			for _, o := range obs {
				select {
				case out <- o:
				case <-ctx.Done():
					return
				default:
					c.log.Warn("price feed: consumer slow, dropping observation",
						logger.String("crop", o.Crop), logger.String("market", o.Market))
				}
			}
		}
	}()

	return out, errCh
}

func (c *Client) dropConn(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		_ = conn.Close()
		c.conn = nil
		c.connected = false
	}
}

// Reconnect redials until it succeeds or ctx ends.
func (c *Client) Reconnect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
		err := c.Connect(ctx)
		if err == nil {
			err = c.Subscribe(ctx)
		}
		if err == nil {
			return nil
		}
		c.log.Warn("price feed reconnect attempt failed", logger.Int("attempt", attempt), logger.Error(err))
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close closes the connection and ends Read.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.PriceStream = (*Client)(nil)
