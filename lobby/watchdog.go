package lobby

import (
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"lobby-autohost/metrics"
	"time"

	"go.uber.org/zap"
)

func (r *Reconciler) armTimer(kind timerKind, delay time.Duration) {
	r.stopTimer(kind)

	t := &r.timers[kind]
	generation := t.generation
	ctx := r.ctx
	t.timer = time.AfterFunc(delay, func() {
		_ = r.post(ctx, timerFired{kind: kind, generation: generation})
	})
}

// stopTimer bumps the generation so an already queued fire is ignored.
func (r *Reconciler) stopTimer(kind timerKind) {
	t := &r.timers[kind]
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
}

func (r *Reconciler) stopTimers() {
	for kind := timerKind(0); kind < timerCount; kind++ {
		r.stopTimer(kind)
	}
}

func (r *Reconciler) resetStaleTimer() {
	if r.opts.StaleAfter <= 0 {
		return
	}
	r.armTimer(timerStale, r.opts.StaleAfter)
}

func (r *Reconciler) handleTimer(fired timerFired) {
	t := &r.timers[fired.kind]
	if fired.generation != t.generation || r.lobby == nil {
		return
	}
	t.timer = nil

	switch fired.kind {
	case timerStale:
		r.onStale()
	case timerRefresh:
		r.onRefreshSettled()
	case timerCountdown:
		r.onCountdownElapsed()
	case timerRetry:
		r.onRetry()
	}
}

// onStale fires after a quiet period. A nearly empty lobby is reported, otherwise the open
// slots are cycled so the game client announces its state again.
func (r *Reconciler) onStale() {
	players := len(r.lobby.Players())
	defer r.resetStaleTimer()

	if players < 2 {
		metrics.StaleTotal.Inc()
		applog.Info("Lobby is stale", zap.Int("players", players))
		r.emit(Stale{Players: players})
		return
	}

	r.refreshSlots()
}

func (r *Reconciler) refreshSlots() {
	open := r.lobby.OpenSlots()
	applog.Info("Refreshing open slots", zap.Ints("slots", open))
	metrics.RefreshTotal.Inc()

	r.refreshing = true
	metrics.LobbyReady.Set(0)

	for _, slot := range open {
		r.sendCommand(hostproto.NewCloseSlotMessage(slot))
		r.sendCommand(hostproto.NewOpenSlotMessage(slot))
	}

	r.armTimer(timerRefresh, r.opts.RefreshSettle)
}

func (r *Reconciler) onRefreshSettled() {
	r.refreshing = false
	applog.Debug("Slot refresh settled")
	r.checkReady()
}
