package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/abusi/clhorde/internal/protocol"
)

// Client is a thin synchronous connection to the daemon, used by the CLI.
// It sends one request at a time and reads JSON event frames until the
// caller finds the reply it wants. Binary PTY frames are surfaced to the
// caller only through ReadRaw.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 3*time.Second)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon at %s: %w", socketPath, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send marshals and writes one request frame.
func (c *Client) Send(req protocol.ClientRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return WriteFrame(c.conn, payload)
}

// ReadEvent reads frames until the next JSON event, silently discarding
// binary PTY frames.
func (c *Client) ReadEvent() (protocol.DaemonEvent, error) {
	for {
		payload, err := ReadFrame(c.conn)
		if err != nil {
			return protocol.DaemonEvent{}, err
		}
		if IsBinaryFrame(payload) {
			continue
		}
		var ev protocol.DaemonEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return protocol.DaemonEvent{}, fmt.Errorf("decode event: %w", err)
		}
		return ev, nil
	}
}

// ReadRaw reads the next frame payload without classifying it.
func (c *Client) ReadRaw() ([]byte, error) {
	return ReadFrame(c.conn)
}

// Request sends req and reads events until one of the wanted types arrives.
// An Error event is returned as a Go error.
func (c *Client) Request(req protocol.ClientRequest, wanted ...string) (protocol.DaemonEvent, error) {
	if err := c.Send(req); err != nil {
		return protocol.DaemonEvent{}, err
	}
	for {
		ev, err := c.ReadEvent()
		if err != nil {
			return protocol.DaemonEvent{}, err
		}
		if ev.Type == protocol.EvError {
			return ev, fmt.Errorf("daemon: %s", ev.Message)
		}
		for _, w := range wanted {
			if ev.Type == w {
				return ev, nil
			}
		}
	}
}
