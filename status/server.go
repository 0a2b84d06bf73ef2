// Package status serves the lobby state, manual operations and a live event feed over HTTP.
package status

import (
	"context"
	"errors"
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/lobby"
	"lobby-autohost/metrics"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

const (
	DefaultMaxConnections = 32
	shutdownTimeout       = 5 * time.Second
)

// Controller is the part of the reconciler the API drives.
type Controller interface {
	View(ctx context.Context) (lobby.State, error)
	Balance(ctx context.Context) error
	Shuffle(ctx context.Context) error
	Swap(ctx context.Context, a string, b string) error
	Move(ctx context.Context, player string, team int) error
	Abandon(ctx context.Context) error
}

type Server struct {
	controller     Controller
	events         *lobby.Broadcaster
	maxConnections int
}

func NewServer(controller Controller, events *lobby.Broadcaster) *Server {
	return &Server{
		controller:     controller,
		events:         events,
		maxConnections: DefaultMaxConnections,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", s.eventFeed)

	r.Route("/lobby", func(r chi.Router) {
		r.Get("/", s.getLobby)
		r.Post("/balance", s.postBalance)
		r.Post("/shuffle", s.postShuffle)
		r.Post("/swap", s.postSwap)
		r.Post("/move", s.postMove)
		r.Post("/leave", s.postLeave)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	limited := netutil.LimitListener(listener, s.maxConnections)

	server := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	applog.Info("Status API listening", zap.String("listenAddr", listener.Addr().String()))

	err := server.Serve(limited)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
