// Package websocket is the duplex message stream chatprobe uses to talk to
// the backend's JSON-over-WebSocket channel.
//
// A Conn owns one reader goroutine that forwards frames to Receive. Waiting
// with a timer rather than a read deadline keeps the connection usable
// after a receive times out.
package websocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waftester/chatprobe/pkg/defaults"
	"github.com/waftester/chatprobe/pkg/duration"
	"github.com/waftester/chatprobe/pkg/httpclient"
	"github.com/waftester/chatprobe/pkg/iohelper"
	"github.com/waftester/chatprobe/pkg/jsonutil"
)

// frameBuffer bounds frames read ahead of Receive.
const frameBuffer = 16

// Dialer opens connections. The zero value is usable.
type Dialer struct {
	// HandshakeTimeout bounds the upgrade exchange (default: 10s).
	HandshakeTimeout time.Duration

	// InsecureSkipVerify skips certificate checks for wss:// targets.
	InsecureSkipVerify bool

	// Proxy is an HTTP or SOCKS proxy URL, same forms as httpclient.Config.
	Proxy string

	// UserAgent overrides the default chatprobe User-Agent.
	UserAgent string
}

// Dial performs the WebSocket handshake. When the server rejects the
// upgrade the returned error wraps ErrHandshake and the response is
// returned so callers can inspect the status and body.
func (d Dialer) Dial(ctx context.Context, url string, header http.Header) (*Conn, *http.Response, error) {
	gd, err := d.gorilla()
	if err != nil {
		return nil, nil, err
	}

	h := header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if h.Get(defaults.HeaderUserAgent) == "" {
		ua := d.UserAgent
		if ua == "" {
			ua = defaults.UserAgent()
		}
		h.Set(defaults.HeaderUserAgent, ua)
	}

	ws, resp, err := gd.DialContext(ctx, url, h)
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
			return nil, resp, fmt.Errorf("%w: status %d", ErrHandshake, resp.StatusCode)
		}
		return nil, resp, httpclient.Classify(err)
	}
	return newConn(ws), resp, nil
}

func (d Dialer) gorilla() (*websocket.Dialer, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = duration.WSHandshake
	}
	gd := &websocket.Dialer{
		HandshakeTimeout: timeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: d.InsecureSkipVerify},
	}

	pc, err := httpclient.ParseProxyURL(d.Proxy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpclient.ErrProxyConnect, err)
	}
	switch {
	case pc == nil:
		gd.Proxy = http.ProxyFromEnvironment
	case pc.IsSOCKS:
		sd, err := httpclient.CreateSOCKSDialer(pc, timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", httpclient.ErrProxyConnect, err)
		}
		gd.NetDialContext = sd.DialContext
	default:
		gd.Proxy = http.ProxyURL(pc.URL)
	}
	return gd, nil
}

// HandshakeBody reads what the server sent with a rejected upgrade.
func HandshakeBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	body, _ := iohelper.ReadBody(resp.Body, iohelper.SmallMaxBodySize)
	return string(body)
}

type frame struct {
	data []byte
	err  error
}

// Conn is an established connection. Send and Close are safe for
// concurrent use; Receive has one consumer.
type Conn struct {
	ws     *websocket.Conn
	frames chan frame
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:     ws,
		frames: make(chan frame, frameBuffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, data, err := c.ws.ReadMessage()
		select {
		case c.frames <- frame{data: data, err: err}:
		case <-c.done:
			return
		}
		if err != nil {
			return
		}
	}
}

// Send writes v as one JSON text frame.
func (c *Conn) Send(v any) error {
	data, err := jsonutil.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes data as one text frame.
func (c *Conn) SendRaw(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(duration.WSHandshake))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Receive waits for the next frame. It returns ErrTimeout when nothing
// arrives within timeout, and an error wrapping ErrClosed once the peer
// has gone away.
func (c *Conn) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f, ok := <-c.frames:
		if !ok {
			return nil, ErrClosed
		}
		if f.err != nil {
			if websocket.IsCloseError(f.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, fmt.Errorf("%w: %v", ErrClosed, f.err)
			}
			return nil, fmt.Errorf("%w: %w", ErrClosed, f.err)
		}
		return f.data, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Drain discards frames that arrived unasked, such as late replies to an
// earlier message, and returns how many were dropped.
func (c *Conn) Drain() int {
	n := 0
	for {
		select {
		case f, ok := <-c.frames:
			if !ok || f.err != nil {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Close sends a close frame and tears the connection down. It is safe to
// call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(duration.WSCloseWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}
