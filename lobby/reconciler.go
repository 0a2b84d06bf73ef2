// Package lobby reconciles the hosted lobby: it applies incoming payloads, tracks the swaps it
// requested, gates the game start and drives team balancing.
package lobby

import (
	"context"
	"errors"
	"lobby-autohost/applog"
	"lobby-autohost/balance"
	"lobby-autohost/config"
	"lobby-autohost/hostproto"
	"lobby-autohost/rating"
	"lobby-autohost/snapshot"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultStaleAfter    = 15 * time.Minute
	DefaultRefreshSettle = 150 * time.Millisecond
	DefaultLookupTimeout = 10 * time.Second
	DefaultRetryAfter    = 5 * time.Second

	maxRetryAfter = 2 * time.Minute

	inboxSize = 64
)

var (
	ErrNoLobby           = errors.New("not in a lobby")
	ErrNotHost           = errors.New("not the lobby host")
	ErrAlreadyBalancing  = errors.New("already balancing")
	ErrRatingsPending    = errors.New("balance deferred until ratings are resolved")
	ErrInvalidSwapTarget = errors.New("invalid swap target")
	ErrUnknownTeam       = errors.New("unknown team")
	ErrStopped           = errors.New("reconciler is not running")
)

// CommandSender delivers outbound commands to the game client.
type CommandSender interface {
	Send(msg hostproto.Outbound) error
}

// MapResolver returns the rating key of a map, false when the map has no ratings.
type MapResolver interface {
	Resolve(mapName string) (string, bool)
}

type passthroughMaps struct{}

func (passthroughMaps) Resolve(mapName string) (string, bool) {
	return mapName, mapName != ""
}

type Options struct {
	StaleAfter     time.Duration
	RefreshSettle  time.Duration
	AutoStart      time.Duration
	BalanceEnabled bool
	ExcludeHost    bool
	Shuffle        bool
	Requirements   rating.Requirements
	DefaultRating  float64
	LookupTimeout  time.Duration
	// RetryAfter is the first delay before failed rating lookups run again. It doubles on
	// every consecutive failure.
	RetryAfter time.Duration
}

func DefaultOptions() Options {
	return Options{
		StaleAfter:     DefaultStaleAfter,
		RefreshSettle:  DefaultRefreshSettle,
		BalanceEnabled: true,
		DefaultRating:  rating.DefaultRating,
		LookupTimeout:  DefaultLookupTimeout,
		RetryAfter:     DefaultRetryAfter,
	}
}

func OptionsFromConfig(info *config.Info) Options {
	opts := DefaultOptions()
	if info.StaleAfter > 0 {
		opts.StaleAfter = info.StaleAfter
	}
	if info.RatingTimeout > 0 {
		opts.LookupTimeout = info.RatingTimeout
	}
	if info.DefaultRating > 0 {
		opts.DefaultRating = info.DefaultRating
	}
	opts.AutoStart = info.AutoStart
	opts.BalanceEnabled = info.BalanceEnabled
	opts.ExcludeHost = info.ExcludeHost
	opts.Shuffle = info.ShuffleTeams
	opts.Requirements = rating.Requirements{
		MinGames:  info.MinGames,
		MinRating: info.MinRating,
		MinRank:   info.MinRank,
		MinWins:   info.MinWins,
	}
	return opts
}

type timerKind int

const (
	timerStale timerKind = iota
	timerRefresh
	timerCountdown
	timerRetry
	timerCount
)

// lobbyTimer is a one-shot timer whose fire message carries a generation, so a fire that
// raced with Stop is recognized and dropped by the loop.
type lobbyTimer struct {
	timer      *time.Timer
	generation uint64
}

type pendingBalance struct {
	shuffle bool
}

// Reconciler owns the lobby state. Everything except the exported request methods runs on
// the goroutine executing Run.
type Reconciler struct {
	opts     Options
	sender   CommandSender
	provider rating.Provider
	maps     MapResolver
	engine   *balance.Engine
	events   *Broadcaster
	rng      *rand.Rand

	inbox   chan message
	stopped chan struct{}
	ctx     context.Context

	lobby          *snapshot.Lobby
	mapKey         string
	ledger         *Ledger
	acknowledged   map[[2]string]int
	bestCombo      balance.Combo
	refreshing     bool
	inFlight       map[string]bool
	statsWaiters   map[string]bool
	pendingBalance *pendingBalance
	countdown      bool
	retryDelay     time.Duration
	readyAnnounced bool
	timers         [timerCount]lobbyTimer
}

func NewReconciler(
	opts Options,
	sender CommandSender,
	provider rating.Provider,
	maps MapResolver,
	events *Broadcaster,
) *Reconciler {
	if provider == nil {
		provider = rating.Off{}
	}
	if maps == nil {
		maps = passthroughMaps{}
	}
	if events == nil {
		events = NewBroadcaster()
	}

	return &Reconciler{
		opts:         opts,
		sender:       sender,
		provider:     provider,
		maps:         maps,
		engine:       balance.NewEngine(opts.DefaultRating),
		events:       events,
		rng:          rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		inbox:        make(chan message, inboxSize),
		stopped:      make(chan struct{}),
		ledger:       NewLedger(),
		acknowledged: make(map[[2]string]int),
		inFlight:     make(map[string]bool),
		statsWaiters: make(map[string]bool),
	}
}

func (r *Reconciler) Events() *Broadcaster {
	return r.events
}

// Run processes inbound messages, rating results, timers and requests one at a time until
// ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	r.ctx = ctx
	defer close(r.stopped)

	applog.Info("Lobby reconciler started",
		zap.String("ratingProvider", r.provider.Name()),
		zap.Bool("balanceEnabled", r.opts.BalanceEnabled),
		zap.Bool("excludeHost", r.opts.ExcludeHost),
		zap.Bool("shuffle", r.opts.Shuffle),
		zap.Duration("autoStart", r.opts.AutoStart),
	)

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return nil
		case m := <-r.inbox:
			r.handle(m)
		}
	}
}

func (r *Reconciler) shutdown() {
	if r.lobby != nil {
		r.sendCommand(hostproto.NewLeaveLobbyMessage())
		r.teardown("shutdown")
	}
	r.stopTimers()
	r.events.Close()
	applog.Info("Lobby reconciler stopped")
}

// post hands a message to the loop from any goroutine, giving up when the loop stopped.
func (r *Reconciler) post(ctx context.Context, m message) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues a message from the game client.
func (r *Reconciler) Submit(ctx context.Context, msg hostproto.Inbound) error {
	return r.post(ctx, inboundMessage{msg: msg})
}

// Consume submits everything arriving on from until it closes or ctx is done.
func (r *Reconciler) Consume(ctx context.Context, from <-chan hostproto.Inbound) {
	for {
		select {
		case msg, ok := <-from:
			if !ok {
				return
			}
			if err := r.Submit(ctx, msg); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) emit(e Event) {
	applog.Debug("Lobby event", zap.String("event", e.Kind()), zap.Any("data", e))
	r.events.Publish(e)
}

func (r *Reconciler) sendCommand(msg hostproto.Outbound) bool {
	if r.sender == nil {
		return false
	}
	if err := r.sender.Send(msg); err != nil {
		applog.Warn("Failed to send command to game client",
			zap.String("command", msg.GetCommand()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Reconciler) sendChat(text string) {
	r.sendCommand(hostproto.NewSendChatMessage(text))
}

func (r *Reconciler) isHost() bool {
	return r.lobby != nil && r.lobby.Meta().IsHost
}

func (r *Reconciler) self() string {
	if r.lobby == nil {
		return ""
	}
	return r.lobby.Meta().Self
}
