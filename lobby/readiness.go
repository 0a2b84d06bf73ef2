package lobby

import (
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"lobby-autohost/metrics"
	"lobby-autohost/rating"
	"sort"

	"go.uber.org/zap"
)

func (r *Reconciler) ratingsActive() bool {
	return r.lobby != nil && r.mapKey != "" && !rating.IsOff(r.provider)
}

// ready is the readiness gate. It has no side effects.
func (r *Reconciler) ready() bool {
	if r.lobby == nil || !r.lobby.HasTeams() || len(r.lobby.NonSpectators()) == 0 {
		return false
	}
	if r.refreshing || r.ledger.Len() > 0 {
		return false
	}
	if !r.ratingsActive() {
		return true
	}

	for _, player := range r.lobby.NonSpectators() {
		if r.inFlight[player] {
			return false
		}
		if rec, _ := r.lobby.Extra(player); !rec.Fetched() {
			return false
		}
	}
	return true
}

// checkReady reports readiness and moves the lobby towards the start when full.
func (r *Reconciler) checkReady() {
	ready := r.ready()
	metrics.LobbyReady.Set(metrics.BoolGauge(ready))

	if !ready || !r.isHost() {
		r.readyAnnounced = false
		return
	}

	if !r.readyAnnounced {
		r.readyAnnounced = true
		r.emit(LobbyReady{})
	}

	if !r.lobby.IsFull() {
		return
	}

	if r.opts.BalanceEnabled && r.bestCombo.Empty() {
		if err := r.balance(r.opts.Shuffle); err != nil {
			applog.Debug("Automatic balance not run", zap.Error(err))
		}
		return
	}
	r.startCountdown()
}

func (r *Reconciler) onBalanced() {
	applog.Info("Lobby balanced", zap.Any("bestCombo", r.bestCombo))
	r.emit(LobbyBalanced{BestCombo: r.bestCombo})

	if r.ready() && r.lobby.IsFull() {
		r.startCountdown()
	}
}

func (r *Reconciler) startCountdown() {
	if r.opts.AutoStart <= 0 || r.countdown || !r.isHost() {
		return
	}

	r.countdown = true
	r.armTimer(timerCountdown, r.opts.AutoStart)

	applog.Info("Start countdown armed", zap.Duration("delay", r.opts.AutoStart))
	r.sendChat(fmt.Sprintf("Game starts in %.0f seconds", r.opts.AutoStart.Seconds()))
	r.emit(CountdownStarted{Delay: r.opts.AutoStart})
}

func (r *Reconciler) cancelCountdown(reason string) {
	if !r.countdown {
		return
	}

	r.countdown = false
	r.stopTimer(timerCountdown)

	applog.Info("Start countdown cancelled", zap.String("reason", reason))
	r.sendChat(fmt.Sprintf("Start cancelled: %s", reason))
	r.emit(CountdownCancelled{Reason: reason})
}

func (r *Reconciler) onCountdownElapsed() {
	r.countdown = false

	if r.lobby == nil || !r.ready() || !r.lobby.IsFull() {
		reason := "lobby is no longer ready"
		applog.Info("Start countdown elapsed without a ready lobby")
		r.emit(CountdownCancelled{Reason: reason})
		return
	}

	if r.sendCommand(hostproto.NewStartGameMessage()) {
		applog.Info("Starting game", zap.String("lobbyId", r.lobby.Id()))
		r.emit(GameStarting{})
	}
}

func (r *Reconciler) state() State {
	state := State{
		Ready:           r.ready(),
		Refreshing:      r.refreshing,
		RatingsActive:   r.ratingsActive(),
		MapKey:          r.mapKey,
		PendingSwaps:    r.ledger.Pending(),
		BestCombo:       r.bestCombo,
		CountdownActive: r.countdown,
		RatingsInFlight: make([]string, 0, len(r.inFlight)),
	}

	if r.lobby != nil {
		view := r.lobby.View()
		state.Lobby = &view
	}

	for player := range r.inFlight {
		state.RatingsInFlight = append(state.RatingsInFlight, player)
	}
	sort.Strings(state.RatingsInFlight)
	return state
}
