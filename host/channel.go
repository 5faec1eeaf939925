package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrChannelClosed is returned by Send after the peer went away.
var ErrChannelClosed = errors.New("host: channel closed")

// Channel is the bidirectional message pipe to the host process. Inbound
// messages are decoded on a reader goroutine and delivered through a
// channel; Send is called from the controller's single goroutine only.
type Channel struct {
	conn    *websocket.Conn
	log     *zap.Logger
	inbound chan any

	closeOnce sync.Once
	closed    chan struct{}
}

func newChannel(conn *websocket.Conn, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Channel{
		conn:    conn,
		log:     log.Named("host"),
		inbound: make(chan any, 64),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Dial connects to a host that listens for the reading surface.
func Dial(ctx context.Context, url string, log *zap.Logger) (*Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to host at %s: %w", url, err)
	}
	return newChannel(conn, log), nil
}

// Listen serves a single websocket endpoint and hands back the channel for
// the first host that connects. The HTTP server keeps running only long
// enough to accept that one connection.
func Listen(ctx context.Context, addr string, log *zap.Logger) (*Channel, error) {
	if log == nil {
		log = zap.NewNop()
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	accepted := make(chan *websocket.Conn, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case accepted <- conn:
		default:
			// already have a host
			_ = conn.Close()
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errs := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case conn := <-accepted:
		log.Info("Host connected", zap.String("remote", conn.RemoteAddr().String()))
		return newChannel(conn, log), nil
	case err := <-errs:
		return nil, fmt.Errorf("unable to listen for host on %s: %w", addr, err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Inbound delivers decoded host messages. The channel is closed when the
// connection goes away.
func (c *Channel) Inbound() <-chan any {
	return c.inbound
}

// Send marshals and writes one message.
func (c *Channel) Send(msg any) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("unable to send message to host: %w", err)
	}
	return nil
}

// Close tears the connection down. Safe to call more than once.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Channel) readLoop() {
	defer close(c.inbound)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.Debug("Host connection closed", zap.Error(err))
			}
			return
		}
		msg, err := Decode(raw)
		if err != nil {
			// bad messages are dropped, never fatal
			c.log.Warn("Ignoring malformed host message", zap.Error(err))
			continue
		}
		select {
		case c.inbound <- msg:
		case <-c.closed:
			return
		}
	}
}
