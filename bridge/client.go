package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"net"

	"go.uber.org/zap"
)

// Client plays the game client side of the bridge. Only used for emulation and tests.
type Client struct {
	connection net.Conn
	writer     *StreamWriter
}

func Dial(ctx context.Context, port uint) (*Client, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge on port %d: %w", port, err)
	}

	applog.Info("Connected to autohost bridge", zap.String("remoteAddr", conn.RemoteAddr().String()))

	return &Client{
		connection: conn,
		writer:     NewStreamWriter(bufio.NewWriter(conn)),
	}, nil
}

func (c *Client) Send(msg hostproto.Inbound) error {
	return c.writer.WriteMessage(msg)
}

// Receive forwards every command from the autohost until the connection closes or ctx ends.
func (c *Client) Receive(ctx context.Context, commands chan<- hostproto.Message) error {
	reader := NewStreamReader(bufio.NewReader(c.connection))
	for {
		msg, err := reader.ReadMessage()
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		if msg == nil {
			return err
		}
		if err != nil {
			applog.Warn("Dropping malformed command", zap.String("command", msg.GetCommand()), zap.Error(err))
			continue
		}

		select {
		case commands <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) Close() error {
	return c.connection.Close()
}
