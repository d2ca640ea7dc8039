package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/rs485gw/internal/logging"
	"github.com/muurk/rs485gw/internal/protocol"
)

const (
	// DefaultPort is the gateway socket port used when an address has none.
	DefaultPort = 3333

	// DefaultTimeout bounds one request/response exchange.
	DefaultTimeout = 5 * time.Second

	// JoinTimeout bounds wifi_connect, which blocks the gateway while it
	// waits for association.
	JoinTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of dial attempts after the first
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the initial delay between dial attempts
	DefaultRetryDelay = 500 * time.Millisecond

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 5 * time.Second

	// messageBuffer is the depth of the reply and event channels.
	messageBuffer = 64

	// maxLineLength bounds one line read from a TCP gateway.
	maxLineLength = 64 * 1024
)

// ErrClosed is returned by requests on a closed client.
var ErrClosed = errors.New("client closed")

// Message is one line received from the gateway. Reply is nil when the line
// is not valid JSON.
type Message struct {
	Raw      string
	Reply    *protocol.Reply
	Received time.Time
}

// Unsolicited reports whether the message is an rx_hex or event line, which
// never answer a request.
func (m Message) Unsolicited() bool {
	return m.Reply != nil && (m.Reply.IsRx() || m.Reply.IsEvent())
}

// lineConn is one control channel connection.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line []byte) error
	Close() error
}

// Options configures Dial.
type Options struct {
	// Timeout bounds ordinary requests (0 = DefaultTimeout).
	Timeout time.Duration
	// MaxRetries is the number of dial attempts after the first.
	MaxRetries int
	// RetryDelay is the initial delay between dial attempts.
	RetryDelay time.Duration
	// MaxRetryDelay caps the exponential backoff.
	MaxRetryDelay time.Duration
}

// DefaultOptions returns the options used by the operator CLI.
func DefaultOptions() Options {
	return Options{
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryDelay:    DefaultRetryDelay,
		MaxRetryDelay: DefaultMaxRetryDelay,
	}
}

// Client talks to a gateway over the socket channel (host:port) or the
// WebSocket pairing channel (ws://host:port/path).
//
// A reader goroutine splits incoming lines: rx_hex and event lines go to
// Events, everything else to Replies. Request waits on Replies, so
// unsolicited traffic interleaved with a response is never mistaken for it.
type Client struct {
	address string
	timeout time.Duration
	conn    lineConn

	reqMu   sync.Mutex
	replies chan Message
	events  chan Message

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Dial connects to address, retrying retryable failures with exponential
// backoff.
func Dial(ctx context.Context, address string, opts Options) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	var lastErr error
	currentDelay := opts.RetryDelay

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewNetworkError("dial cancelled", ctx.Err())
			case <-time.After(currentDelay):
			}
			currentDelay *= 2
			if opts.MaxRetryDelay > 0 && currentDelay > opts.MaxRetryDelay {
				currentDelay = opts.MaxRetryDelay
			}
		}

		conn, err := dial(ctx, address, opts.Timeout)
		if err == nil {
			return newClient(address, conn, opts.Timeout), nil
		}

		lastErr = ClassifyNetworkError(err, address)
		if !IsRetryable(lastErr) {
			return nil, lastErr
		}
		logging.Debug("Dial failed, retrying",
			zap.String("address", address),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, lastErr
}

func dial(ctx context.Context, address string, timeout time.Duration) (lineConn, error) {
	if IsWebSocketURL(address) {
		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		ws, _, err := dialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{ws: ws}, nil
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", NormalizeAddress(address))
	if err != nil {
		return nil, err
	}
	return newTCPConn(conn), nil
}

// newClient starts the reader for conn.
func newClient(address string, conn lineConn, timeout time.Duration) *Client {
	c := &Client{
		address: address,
		timeout: timeout,
		conn:    conn,
		replies: make(chan Message, messageBuffer),
		events:  make(chan Message, messageBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// IsWebSocketURL reports whether address names the WebSocket pairing channel.
func IsWebSocketURL(address string) bool {
	return strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://")
}

// NormalizeAddress appends DefaultPort to a bare host.
func NormalizeAddress(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(strings.Trim(address, "[]"), strconv.Itoa(DefaultPort))
}

// Address returns the address the client dialled.
func (c *Client) Address() string {
	return c.address
}

// Events delivers rx_hex and event lines. Lines are dropped while the
// channel is full.
func (c *Client) Events() <-chan Message {
	return c.events
}

// Replies delivers every line that is not an rx_hex or event line. It is
// meant for callers that use Send instead of Request.
func (c *Client) Replies() <-chan Message {
	return c.replies
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	for {
		line, err := c.conn.ReadLine()
		if err != nil {
			c.finish(err)
			return
		}
		payload, ok := protocol.Payload(line)
		if !ok {
			continue
		}

		msg := Message{Raw: payload, Received: time.Now()}
		if reply, err := protocol.DecodeReply(payload); err == nil {
			msg.Reply = reply
		} else {
			logging.Debug("Undecodable gateway line",
				zap.String("line", payload),
				zap.Error(err),
			)
		}

		if msg.Unsolicited() {
			select {
			case c.events <- msg:
			default:
				logging.Debug("Event dropped, consumer too slow", zap.String("line", payload))
			}
			continue
		}

		select {
		case c.replies <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}

// Send writes one JSON line without waiting for an answer.
func (c *Client) Send(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if err := c.conn.WriteLine([]byte(line + "\n")); err != nil {
		return ClassifyNetworkError(err, c.address)
	}
	return nil
}

// Request sends req and returns the first reply that is not an rx_hex or
// event line. An {"ok":false} reply is returned together with a gateway error.
func (c *Client) Request(ctx context.Context, req any) (*protocol.Reply, error) {
	return c.request(ctx, req, c.timeout)
}

func (c *Client) request(ctx context.Context, req any, timeout time.Duration) (*protocol.Reply, error) {
	line, err := protocol.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	select {
	case <-c.done:
		return nil, c.closedError()
	default:
	}

	// Answers to requests that already timed out are stale.
	for drained := false; !drained; {
		select {
		case <-c.replies:
		default:
			drained = true
		}
	}

	if err := c.conn.WriteLine(line); err != nil {
		return nil, ClassifyNetworkError(err, c.address)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-c.replies:
		if msg.Reply == nil {
			return nil, NewParseError(fmt.Sprintf("invalid reply %q", msg.Raw), nil)
		}
		if msg.Reply.Failed() {
			return msg.Reply, NewGatewayError(msg.Reply.Err)
		}
		return msg.Reply, nil
	case <-timer.C:
		return nil, NewTimeoutError(fmt.Sprintf("no reply from %s within %s", c.address, timeout))
	case <-ctx.Done():
		return nil, NewNetworkError("request cancelled", ctx.Err())
	case <-c.done:
		return nil, c.closedError()
	}
}

func (c *Client) closedError() error {
	err := c.Err()
	if err == nil {
		err = ErrClosed
	}
	return ClassifyNetworkError(err, c.address)
}

// Transmit sends data on a bus. txHex is passed through as typed.
func (c *Client) Transmit(ctx context.Context, bus int, txHex string) (*protocol.Reply, error) {
	return c.Request(ctx, protocol.TxRequest{Bus: bus, TxHex: txHex})
}

// SetBaud changes the bit rate of a bus.
func (c *Client) SetBaud(ctx context.Context, bus int, baud uint32) (*protocol.Reply, error) {
	return c.Request(ctx, protocol.BaudRequest{Bus: bus, Baud: baud})
}

// Join asks the gateway to join a network and listen on port (0 keeps the
// gateway's current port).
func (c *Client) Join(ctx context.Context, ssid, pwd string, port int) (*protocol.Reply, error) {
	timeout := JoinTimeout
	if c.timeout > timeout {
		timeout = c.timeout
	}
	return c.request(ctx, protocol.JoinRequest{
		Cmd:  protocol.CmdWifiConnect,
		SSID: ssid,
		Pwd:  pwd,
		Port: port,
	}, timeout)
}

// Status queries network and socket state.
func (c *Client) Status(ctx context.Context) (*protocol.Reply, error) {
	return c.Request(ctx, protocol.CmdRequest{Cmd: protocol.CmdWifiStatus})
}

// Disconnect tears down the socket channel and leaves the network.
func (c *Client) Disconnect(ctx context.Context) (*protocol.Reply, error) {
	return c.Request(ctx, protocol.CmdRequest{Cmd: protocol.CmdWifiDisconnect})
}

// StopSocket tears down only the socket channel.
func (c *Client) StopSocket(ctx context.Context) (*protocol.Reply, error) {
	return c.Request(ctx, protocol.CmdRequest{Cmd: protocol.CmdTCPStop})
}

// Close ends the connection and stops the reader.
func (c *Client) Close() error {
	c.finish(ErrClosed)
	return c.conn.Close()
}

// tcpConn reads newline-terminated lines from the socket channel.
type tcpConn struct {
	conn    net.Conn
	scanner *bufio.Scanner
	writeMu sync.Mutex
}

func newTCPConn(conn net.Conn) *tcpConn {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)
	return &tcpConn{conn: conn, scanner: scanner}
}

func (t *tcpConn) ReadLine() (string, error) {
	if t.scanner.Scan() {
		return t.scanner.Text(), nil
	}
	if err := t.scanner.Err(); err != nil {
		return "", err
	}
	return "", net.ErrClosed
}

func (t *tcpConn) WriteLine(line []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_, err := t.conn.Write(line)
	return err
}

func (t *tcpConn) Close() error {
	return t.conn.Close()
}

// wsConn carries one line per WebSocket text frame.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (w *wsConn) ReadLine() (string, error) {
	_, data, err := w.ws.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (w *wsConn) WriteLine(line []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.ws.WriteMessage(websocket.TextMessage, line)
}

func (w *wsConn) Close() error {
	w.writeMu.Lock()
	_ = w.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.writeMu.Unlock()
	return w.ws.Close()
}
