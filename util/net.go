package util

import (
	"context"
	"net"
)

// NetAcceptWithContext waits for the next connection or for ctx to end. A connection accepted
// after ctx ended is closed instead of leaking.
func NetAcceptWithContext(ctx context.Context, listener net.Listener) (net.Conn, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	results := make(chan result)

	go func() {
		conn, err := listener.Accept()
		select {
		case results <- result{conn: conn, err: err}:
		case <-ctx.Done():
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		return res.conn, res.err
	}
}
