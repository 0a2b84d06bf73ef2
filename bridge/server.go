package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"lobby-autohost/util"
	"net"
	"sync"

	"go.uber.org/zap"
)

const toGameBufferSize = 64

var ErrNotConnected = errors.New("game client is not connected")
var ErrSendBufferFull = errors.New("outbound command buffer is full")

// Server accepts the game client bridge connection. Only one client is served at a time,
// a new connection replaces the previous one.
type Server struct {
	port     uint
	listener net.Listener

	fromGame chan<- hostproto.Inbound

	mu               sync.Mutex
	toGame           chan hostproto.Outbound
	connection       net.Conn
	connectionCancel context.CancelFunc
}

func NewServer(port uint) *Server {
	return &Server{port: port}
}

// Listen blocks until ctx is cancelled, forwarding every decoded inbound message to fromGame.
func (s *Server) Listen(ctx context.Context, fromGame chan<- hostproto.Inbound) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	return s.Serve(ctx, listener, fromGame)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener, fromGame chan<- hostproto.Inbound) error {
	defer func(listener net.Listener) {
		_ = listener.Close()
	}(listener)

	s.listener = listener
	s.fromGame = fromGame

	applog.Info("Listening for the game client bridge", zap.String("listenAddr", listener.Addr().String()))

	for {
		conn, acceptErr := util.NetAcceptWithContext(ctx, listener)
		if acceptErr != nil {
			if ctx.Err() != nil {
				// The connection goroutines close the connection once pending commands are written.
				applog.Debug("Context canceled, stopping accepting bridge connections")
				return nil
			}

			applog.Error("Failed to accept bridge connection", zap.Error(acceptErr))
			continue
		}

		s.closeCurrentConnection()
		s.acceptConnection(ctx, conn)
	}
}

func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptConnection(ctx context.Context, conn net.Conn) {
	clientCtx, cancel := context.WithCancel(ctx)
	clientCtx = applog.AddContextFields(clientCtx, zap.String("remoteAddr", conn.RemoteAddr().String()))
	toGame := make(chan hostproto.Outbound, toGameBufferSize)

	s.mu.Lock()
	s.connection = conn
	s.connectionCancel = cancel
	s.toGame = toGame
	s.mu.Unlock()

	applog.FromContext(clientCtx).Info("Game client bridge connected")

	go s.handleFromGame(clientCtx, conn, NewStreamReader(bufio.NewReader(conn)))
	go s.handleToGame(clientCtx, conn, toGame, NewStreamWriter(bufio.NewWriter(conn)))
}

func (s *Server) handleFromGame(ctx context.Context, conn net.Conn, stream *StreamReader) {
	logger := applog.FromContext(ctx)
	for {
		msg, err := stream.ReadMessage()
		if errors.Is(err, io.EOF) {
			logger.Info("Bridge connection closed by game client (EOF reached)")
			s.closeConnection(conn)
			return
		}

		if ctx.Err() != nil {
			return
		}

		if msg == nil {
			logger.Error("Error reading bridge message, closing connection", zap.Error(err))
			s.closeConnection(conn)
			return
		}

		if err != nil {
			// Malformed payload of a known command, the stream itself is still aligned.
			logger.Warn("Dropping malformed bridge message",
				zap.String("command", msg.GetCommand()),
				zap.Error(err),
			)
			continue
		}

		inbound, ok := msg.(hostproto.Inbound)
		if !ok {
			logger.Debug("Message command ignored", zap.String("command", msg.GetCommand()))
			continue
		}

		select {
		case s.fromGame <- inbound:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) handleToGame(
	ctx context.Context,
	conn net.Conn,
	toGame <-chan hostproto.Outbound,
	stream *StreamWriter,
) {
	for {
		select {
		case msg := <-toGame:
			if err := stream.WriteMessage(msg); err != nil {
				applog.FromContext(ctx).Error("Failed to write command to game client", zap.Error(err))
				s.closeConnection(conn)
				return
			}
		case <-ctx.Done():
			drainToGame(toGame, stream)
			s.closeConnection(conn)
			return
		}
	}
}

// drainToGame writes what was queued before the connection context ended, best effort.
func drainToGame(toGame <-chan hostproto.Outbound, stream *StreamWriter) {
	for {
		select {
		case msg := <-toGame:
			if err := stream.WriteMessage(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// Send queues a command for the connected client without blocking.
func (s *Server) Send(msg hostproto.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connection == nil {
		return ErrNotConnected
	}

	if !util.TrySend(s.toGame, msg) {
		return ErrSendBufferFull
	}
	return nil
}

func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection != nil
}

func (s *Server) closeConnection(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connection != conn {
		return
	}
	s.closeLocked()
}

func (s *Server) closeCurrentConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

func (s *Server) closeLocked() {
	if s.connectionCancel != nil {
		s.connectionCancel()
		s.connectionCancel = nil
	}
	if s.connection != nil {
		_ = s.connection.Close()
		s.connection = nil
	}
	s.toGame = nil
}
