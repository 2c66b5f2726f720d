package ndax

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	frameRequest = 0
	frameReply   = 1
	frameEvent   = 3
	frameError   = 5
)

// Frame is the envelope of every websocket message. The payload travels as a
// JSON document encoded into a string.
type Frame struct {
	MessageType int    `json:"m"`
	Sequence    int64  `json:"i"`
	Endpoint    string `json:"n"`
	Payload     string `json:"o"`
}

// StreamClient owns one websocket connection. Inbound frames are delivered in
// order on Messages until the connection ends.
type StreamClient struct {
	conn    *websocket.Conn
	limiter *RateLimiter

	seq     atomic.Int64
	writeMu sync.Mutex

	messages chan []byte
	done     chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func DialStreamClient(ctx context.Context, endpoint string, limiter *RateLimiter) (*StreamClient, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: PingTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}

	if limiter == nil {
		limiter = NewRateLimiter(RateLimits)
	}

	c := &StreamClient{
		conn:     conn,
		limiter:  limiter,
		messages: make(chan []byte, 256),
		done:     make(chan struct{}),
	}

	go c.read()
	go c.keepAlive()

	return c, nil
}

// SendRequest frames payload for endpoint and writes it. No reply is awaited.
func (c *StreamClient) SendRequest(ctx context.Context, endpoint string, payload any) error {
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", endpoint, err)
	}

	frame := Frame{
		MessageType: frameRequest,
		Sequence:    c.seq.Add(2),
		Endpoint:    endpoint,
		Payload:     string(body),
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to send %s request: %w", endpoint, err)
	}

	return nil
}

// Messages is closed when the connection ends; Err then tells why.
func (c *StreamClient) Messages() <-chan []byte {
	return c.messages
}

func (c *StreamClient) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.err
}

func (c *StreamClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *StreamClient) read() {
	defer close(c.messages)

	readTimeout := MessageTimeout + PingTimeout
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))

		select {
		case c.messages <- msg:
		case <-c.done:
			c.setErr(websocket.ErrCloseSent)
			return
		}
	}
}

func (c *StreamClient) keepAlive() {
	ticker := time.NewTicker(PingTimeout)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.SendRequest(ctx, WsPingRequest, struct{}{}); err != nil {
				logger.Debugf("ping failed: %s", err)
				return
			}
		}
	}
}

func (c *StreamClient) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	if c.err == nil {
		c.err = err
	}
}
