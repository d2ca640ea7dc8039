package network

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

const (
	// pollWait is how long a poll may wait on the socket. A deadline
	// already in the past would fail before checking for data.
	pollWait = time.Millisecond

	// writeWait bounds one write to the socket client.
	writeWait = 2 * time.Second
)

// Client is the connected socket peer.
type Client interface {
	// ReadAvailable reads whatever is pending without waiting. It returns
	// io.EOF once the peer has gone away.
	ReadAvailable(buf []byte) (int, error)
	// Write sends all of p.
	Write(p []byte) error
	Close() error
	RemoteAddr() string
}

// Listener accepts socket clients on one TCP port.
type Listener interface {
	// Accept returns a pending client, or ok=false when none is waiting.
	Accept() (client Client, ok bool, err error)
	// Port returns the bound port.
	Port() int
	Close() error
}

// ListenFunc opens a Listener on port.
type ListenFunc func(port int) (Listener, error)

// TCPListener is a Listener on all interfaces.
type TCPListener struct {
	ln   *net.TCPListener
	port int
}

// ListenTCP binds port on all interfaces. Port 0 picks a free port.
func ListenTCP(port int) (Listener, error) {
	addr := &net.TCPAddr{Port: port}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", port, err)
	}
	return &TCPListener{
		ln:   ln,
		port: ln.Addr().(*net.TCPAddr).Port,
	}, nil
}

func (l *TCPListener) Accept() (Client, bool, error) {
	if err := l.ln.SetDeadline(time.Now().Add(pollWait)); err != nil {
		return nil, false, err
	}
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		if isTimeout(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = conn.SetNoDelay(true)
	return &TCPClient{conn: conn}, true, nil
}

func (l *TCPListener) Port() int {
	return l.port
}

func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// TCPClient is a Client over a TCP connection.
type TCPClient struct {
	conn *net.TCPConn
}

func (c *TCPClient) ReadAvailable(buf []byte) (int, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(pollWait)); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(buf)
	if err != nil && isTimeout(err) {
		return n, nil
	}
	return n, err
}

func (c *TCPClient) Write(p []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := c.conn.Write(p)
	return err
}

func (c *TCPClient) Close() error {
	return c.conn.Close()
}

func (c *TCPClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsClosed reports whether err means the peer or the socket is gone.
func IsClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
