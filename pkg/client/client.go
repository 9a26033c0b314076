// Package client is a typed DocuFS protocol client. It speaks the frame
// protocol to the coordinator, follows node referrals transparently, and
// drives interactive edit sessions. The integration tests are its main
// consumer; an external CLI can build on it too.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/marmos91/docufs/internal/protocol/wire"
)

// DialTimeout bounds connection establishment to the coordinator and to
// referred nodes.
const DialTimeout = 10 * time.Second

// OpError is a non-success reply, carrying the wire result and the
// server's message.
type OpError struct {
	Result  wire.Result
	Message string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Result, e.Message)
}

// ResultOf extracts the wire result of err, or StatusNone for non-protocol
// errors.
func ResultOf(err error) wire.Result {
	if oe, ok := err.(*OpError); ok {
		return oe.Result
	}
	return wire.StatusNone
}

func opError(resp *wire.Message) error {
	return &OpError{Result: resp.Result, Message: resp.DataString()}
}

// Client is one authenticated coordinator session.
type Client struct {
	conn     net.Conn
	username string
}

// Dial connects to the coordinator and opens a session for username.
// A second session for the same username fails with StatusLocked.
func Dial(addr, username string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial coordinator: %w", err)
	}

	req := &wire.Message{Op: wire.OpRegisterClient, Username: username}
	if err := wire.WriteMessage(conn, req); err != nil {
		conn.Close()
		return nil, err
	}
	resp, err := wire.ReadMessage(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !resp.Result.OK() {
		conn.Close()
		return nil, opError(resp)
	}

	return &Client{conn: conn, username: username}, nil
}

// Close ends the session. The coordinator releases the username on
// disconnect.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Username returns the session's username.
func (c *Client) Username() string {
	return c.username
}

// do sends one frame on the session and reads the reply.
func (c *Client) do(m *wire.Message) (*wire.Message, error) {
	m.Username = c.username
	if err := wire.WriteMessage(c.conn, m); err != nil {
		return nil, err
	}
	return wire.ReadMessage(c.conn)
}

// doOK is do plus the expectation of a success result.
func (c *Client) doOK(m *wire.Message) (*wire.Message, error) {
	resp, err := c.do(m)
	if err != nil {
		return nil, err
	}
	if !resp.Result.OK() {
		return nil, opError(resp)
	}
	return resp, nil
}

// dialNode opens a data connection from a referral reply.
func dialNode(resp *wire.Message) (net.Conn, error) {
	addr := net.JoinHostPort(resp.NodeIP, fmt.Sprint(resp.NodePort))
	conn, err := net.DialTimeout("tcp", addr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial storage node %s: %w", addr, err)
	}
	return conn, nil
}
