package session

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

// ReadResult classifies the outcome of a line read. Malformed content
// is not a transport concern; it surfaces later, at parse time.
type ReadResult int

const (
	ReadOK ReadResult = iota
	ReadClosed
	ReadTimedOut
)

// Conn wraps a player socket with newline-delimited UTF-8 framing.
// Writes are serialized so a broadcast goroutine and the owning
// session never interleave partial lines.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader

	wmu sync.Mutex
}

// NewConn wraps an accepted socket.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		conn: conn,
		r:    bufio.NewReader(conn),
	}
}

// WriteLine sends one protocol record, appending the newline.
func (c *Conn) WriteLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write([]byte(strings.TrimRight(line, "\n") + "\n"))
	return err
}

// ReadLine blocks for the next record. A positive timeout arms a read
// deadline whose expiry unblocks only this connection.
func (c *Conn) ReadLine(timeout time.Duration) (string, ReadResult) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", ReadClosed
	}

	line, err := c.r.ReadString('\n')
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", ReadTimedOut
		}
		return "", ReadClosed
	}
	return strings.TrimRight(line, "\r\n"), ReadOK
}

// Close tears the socket down. Safe to call more than once.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr labels the peer for logs.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
