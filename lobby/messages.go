package lobby

import (
	"context"
	"lobby-autohost/balance"
	"lobby-autohost/hostproto"
	"lobby-autohost/rating"
	"lobby-autohost/snapshot"
)

// message is anything the loop reacts to.
type message interface{ isMessage() }

type inboundMessage struct {
	msg hostproto.Inbound
}

type ratingResult struct {
	lobbyId string
	mapKey  string
	player  string
	record  *rating.Record
	err     error
}

type timerFired struct {
	kind       timerKind
	generation uint64
}

type balanceRequest struct {
	shuffle bool
	reply   chan error
}

type swapRequest struct {
	a, b  string
	reply chan error
}

type moveRequest struct {
	player string
	team   int
	reply  chan error
}

type abandonRequest struct {
	reply chan error
}

type stateRequest struct {
	reply chan State
}

func (inboundMessage) isMessage() {}
func (ratingResult) isMessage()   {}
func (timerFired) isMessage()     {}
func (balanceRequest) isMessage() {}
func (swapRequest) isMessage()    {}
func (moveRequest) isMessage()    {}
func (abandonRequest) isMessage() {}
func (stateRequest) isMessage()   {}

// State is a copy of the reconciler state for status reporting.
type State struct {
	Lobby           *snapshot.View `json:"lobby"`
	Ready           bool           `json:"ready"`
	Refreshing      bool           `json:"refreshing"`
	RatingsActive   bool           `json:"ratingsActive"`
	MapKey          string         `json:"mapKey,omitempty"`
	PendingSwaps    []ExpectedSwap `json:"pendingSwaps"`
	BestCombo       balance.Combo  `json:"bestCombo,omitempty"`
	CountdownActive bool           `json:"countdownActive"`
	RatingsInFlight []string       `json:"ratingsInFlight"`
}

func (r *Reconciler) handle(m message) {
	switch msg := m.(type) {
	case inboundMessage:
		r.handleInbound(msg.msg)
	case ratingResult:
		r.handleRatingResult(msg)
	case timerFired:
		r.handleTimer(msg)
	case balanceRequest:
		msg.reply <- r.balance(msg.shuffle)
	case swapRequest:
		msg.reply <- r.manualSwap(msg.a, msg.b)
	case moveRequest:
		msg.reply <- r.move(msg.player, msg.team)
	case abandonRequest:
		msg.reply <- r.abandon()
	case stateRequest:
		msg.reply <- r.state()
	}

	// Any message may have left the lobby unready. The next ready lobby is announced again.
	if r.readyAnnounced && !r.ready() {
		r.readyAnnounced = false
	}
}

func call[T any](ctx context.Context, r *Reconciler, build func(reply chan T) message) (T, error) {
	var zero T
	reply := make(chan T, 1)

	if err := r.post(ctx, build(reply)); err != nil {
		return zero, err
	}

	select {
	case v := <-reply:
		return v, nil
	case <-r.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func callErr(ctx context.Context, r *Reconciler, build func(reply chan error) message) error {
	result, err := call(ctx, r, build)
	if err != nil {
		return err
	}
	return result
}

// Balance runs the balance engine on the current lobby and issues the resulting swaps.
func (r *Reconciler) Balance(ctx context.Context) error {
	return callErr(ctx, r, func(reply chan error) message {
		return balanceRequest{reply: reply}
	})
}

// Shuffle regroups players randomly, keeping team sizes.
func (r *Reconciler) Shuffle(ctx context.Context) error {
	return callErr(ctx, r, func(reply chan error) message {
		return balanceRequest{shuffle: true, reply: reply}
	})
}

// Swap asks the game client to exchange two players, names may be partial.
func (r *Reconciler) Swap(ctx context.Context, a string, b string) error {
	return callErr(ctx, r, func(reply chan error) message {
		return swapRequest{a: a, b: b, reply: reply}
	})
}

// Move puts a player on another team.
func (r *Reconciler) Move(ctx context.Context, player string, team int) error {
	return callErr(ctx, r, func(reply chan error) message {
		return moveRequest{player: player, team: team, reply: reply}
	})
}

// Abandon leaves the current lobby.
func (r *Reconciler) Abandon(ctx context.Context) error {
	return callErr(ctx, r, func(reply chan error) message {
		return abandonRequest{reply: reply}
	})
}

func (r *Reconciler) View(ctx context.Context) (State, error) {
	return call(ctx, r, func(reply chan State) message {
		return stateRequest{reply: reply}
	})
}

func (r *Reconciler) IsLobbyReady(ctx context.Context) (bool, error) {
	state, err := r.View(ctx)
	if err != nil {
		return false, err
	}
	return state.Ready, nil
}
