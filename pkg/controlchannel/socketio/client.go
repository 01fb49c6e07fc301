// Package socketio is a minimal Socket.IO v4 client over the WebSocket
// transport; it is enough to receive and emit events on one namespace.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/gorilla/websocket"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/remotemic/pkg/capability"
)

var ErrNotConnected = errors.New("not connected")

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
	writeTimeout        = 10 * time.Second
)

// DefaultBackOff is the reconnection policy of socket.io-client: 1s
// doubling up to 5s, 50% jitter, never giving up.
func DefaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 5 * time.Second
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

type Client struct {
	// Endpoint is the WebSocket URL, see EndpointURL.
	Endpoint   string
	Namespace  string
	Dialer     *websocket.Dialer
	NewBackOff func() backoff.BackOff

	handlersLocker sync.Mutex
	handlers       map[string]capability.MessageHandler

	connLocker sync.Mutex
	conn       *websocket.Conn
	connected  bool

	closeOnce sync.Once
	closed    chan struct{}
}

var _ capability.ControlChannel = (*Client)(nil)

// New returns a client for a server URL like "http://host:3001" or
// "https://host/namespace".
func New(serverURL string) (*Client, error) {
	endpoint, namespace, err := EndpointURL(serverURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		Endpoint:   endpoint,
		Namespace:  namespace,
		Dialer:     websocket.DefaultDialer,
		NewBackOff: DefaultBackOff,
		handlers:   map[string]capability.MessageHandler{},
		closed:     make(chan struct{}),
	}, nil
}

// EndpointURL converts a server URL to the Engine.IO WebSocket endpoint;
// the path of the server URL is the namespace.
func EndpointURL(serverURL string) (string, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", "", fmt.Errorf("unable to parse URL '%s': %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("unsupported URL scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("no host in URL '%s'", serverURL)
	}

	namespace := DefaultNamespace
	if u.Path != "" && u.Path != "/" {
		namespace = u.Path
	}

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	u.Path = "/socket.io/"
	return u.String(), namespace, nil
}

func (c *Client) OnMessage(name string, handler capability.MessageHandler) {
	c.handlersLocker.Lock()
	defer c.handlersLocker.Unlock()
	c.handlers[name] = handler
}

func (c *Client) Off(name string) {
	c.handlersLocker.Lock()
	defer c.handlersLocker.Unlock()
	delete(c.handlers, name)
}

func (c *Client) handler(name string) capability.MessageHandler {
	c.handlersLocker.Lock()
	defer c.handlersLocker.Unlock()
	return c.handlers[name]
}

// IsConnected reports whether the namespace is connected right now.
func (c *Client) IsConnected() bool {
	c.connLocker.Lock()
	defer c.connLocker.Unlock()
	return c.connected
}

func (c *Client) Send(ctx context.Context, name string, payload any) error {
	pkt, err := NewEventPacket(c.Namespace, name, payload)
	if err != nil {
		return err
	}

	c.connLocker.Lock()
	defer c.connLocker.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	return c.writeLocked(ctx, c.conn, EncodeEnginePacket(EnginePacketMessage, pkt.Encode()))
}

func (c *Client) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	c.connLocker.Lock()
	defer c.connLocker.Unlock()
	return c.writeLocked(ctx, conn, msg)
}

func (c *Client) writeLocked(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("unable to set the write deadline: %w", err)
	}
	logger.Tracef(ctx, "sending '%s'", msg)
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("unable to send '%s': %w", msg, err)
	}
	return nil
}

// Run connects and keeps reconnecting until ctx is cancelled or Close is
// called. Event handlers are called from Run, one at a time.
func (c *Client) Run(ctx context.Context) error {
	logger.Debugf(ctx, "Run")
	defer logger.Debugf(ctx, "/Run")

	b := backoff.WithContext(c.NewBackOff(), ctx)
	for {
		wasConnected, err := c.runConnection(ctx)
		select {
		case <-c.closed:
			return nil
		default:
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if wasConnected {
			b.Reset()
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("giving up reconnecting: %w", err)
		}
		logger.Warnf(ctx, "disconnected from %s: %v; reconnecting in %v", c.Endpoint, err, delay)

		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-c.closed:
			t.Stop()
			return nil
		}
	}
}

func (c *Client) runConnection(ctx context.Context) (_wasConnected bool, _err error) {
	logger.Tracef(ctx, "dialing %s", c.Endpoint)
	conn, resp, err := c.Dialer.DialContext(ctx, c.Endpoint, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("unable to connect to %s: %w", c.Endpoint, err)
	}
	defer conn.Close()

	connDone := make(chan struct{})
	defer close(connDone)
	observability.Go(ctx, func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-c.closed:
		case <-connDone:
			return
		}
		conn.Close()
	})

	open, err := c.readOpen(conn)
	if err != nil {
		return false, err
	}
	pingInterval := time.Duration(open.PingInterval) * time.Millisecond
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	pingTimeout := time.Duration(open.PingTimeout) * time.Millisecond
	if pingTimeout <= 0 {
		pingTimeout = defaultPingTimeout
	}
	logger.Debugf(ctx, "Engine.IO session %s, ping interval %v", open.SID, pingInterval)

	connectPkt := Packet{Type: PacketConnect, Namespace: c.Namespace, AckID: NoAckID}
	if err := c.write(ctx, conn, EncodeEnginePacket(EnginePacketMessage, connectPkt.Encode())); err != nil {
		return false, err
	}

	c.connLocker.Lock()
	c.conn = conn
	c.connLocker.Unlock()
	defer func() {
		c.connLocker.Lock()
		c.conn = nil
		c.connected = false
		c.connLocker.Unlock()
	}()

	connected := false
	for {
		if err := conn.SetReadDeadline(time.Now().Add(pingInterval + pingTimeout)); err != nil {
			return connected, fmt.Errorf("unable to set the read deadline: %w", err)
		}
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return connected, fmt.Errorf("unable to read: %w", err)
		}

		t, payload, err := DecodeEnginePacket(msg)
		if err != nil {
			logger.Warnf(ctx, "invalid Engine.IO packet '%s': %v", msg, err)
			continue
		}
		logger.Tracef(ctx, "received %s packet '%s'", t, payload)

		switch t {
		case EnginePacketPing:
			if err := c.write(ctx, conn, EncodeEnginePacket(EnginePacketPong, payload)); err != nil {
				return connected, err
			}
		case EnginePacketClose:
			return connected, fmt.Errorf("the server closed the session")
		case EnginePacketMessage:
			pkt, err := DecodePacket(payload)
			if err != nil {
				logger.Warnf(ctx, "invalid Socket.IO packet '%s': %v", payload, err)
				continue
			}
			if pkt.Namespace != c.Namespace {
				logger.Debugf(ctx, "ignoring a packet for namespace %s", pkt.Namespace)
				continue
			}
			switch pkt.Type {
			case PacketConnect:
				var info struct {
					SID string `json:"sid"`
				}
				if len(pkt.Data) > 0 {
					if err := json.Unmarshal(pkt.Data, &info); err != nil {
						logger.Debugf(ctx, "unable to parse the connect data '%s': %v", pkt.Data, err)
					}
				}
				connected = true
				c.connLocker.Lock()
				c.connected = true
				c.connLocker.Unlock()
				logger.Infof(ctx, "connected to the socket server with id: %s", info.SID)
			case PacketDisconnect:
				return connected, fmt.Errorf("the server disconnected the namespace")
			case PacketConnectError:
				return connected, fmt.Errorf("the server refused the connection: %s", pkt.Data)
			case PacketEvent:
				c.dispatch(ctx, pkt)
			default:
				logger.Debugf(ctx, "ignoring %s packet", pkt.Type)
			}
		default:
			logger.Debugf(ctx, "ignoring %s packet", t)
		}
	}
}

func (c *Client) readOpen(conn *websocket.Conn) (*OpenPayload, error) {
	if err := conn.SetReadDeadline(time.Now().Add(defaultPingInterval + defaultPingTimeout)); err != nil {
		return nil, fmt.Errorf("unable to set the read deadline: %w", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("unable to read the handshake: %w", err)
	}
	t, payload, err := DecodeEnginePacket(msg)
	if err != nil {
		return nil, fmt.Errorf("invalid handshake packet: %w", err)
	}
	if t != EnginePacketOpen {
		return nil, fmt.Errorf("expected an open packet, received %s", t)
	}
	var open OpenPayload
	if err := json.Unmarshal(payload, &open); err != nil {
		return nil, fmt.Errorf("unable to parse the handshake '%s': %w", payload, err)
	}
	return &open, nil
}

func (c *Client) dispatch(ctx context.Context, pkt Packet) {
	name, arg, err := pkt.Event()
	if err != nil {
		logger.Warnf(ctx, "invalid event '%s': %v", pkt.Data, err)
		return
	}
	handler := c.handler(name)
	if handler == nil {
		logger.Debugf(ctx, "no handler for event '%s'", name)
		return
	}
	handler(ctx, name, arg)
}

// Close disconnects and makes Run return.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.connLocker.Lock()
		if c.connected {
			pkt := Packet{Type: PacketDisconnect, Namespace: c.Namespace, AckID: NoAckID}
			_ = c.writeLocked(context.Background(), c.conn, EncodeEnginePacket(EnginePacketMessage, pkt.Encode()))
		}
		c.connLocker.Unlock()
		close(c.closed)
	})
	return nil
}
