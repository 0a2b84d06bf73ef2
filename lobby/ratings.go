package lobby

import (
	"context"
	"errors"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"lobby-autohost/metrics"
	"lobby-autohost/rating"

	"go.uber.org/zap"
)

func (r *Reconciler) fetchRatings(players []string) {
	for _, player := range players {
		r.fetchRating(player)
	}
}

// fetchRating starts a lookup unless the player already has a record or one is in flight.
// The result comes back to the loop as a ratingResult.
func (r *Reconciler) fetchRating(player string) {
	if !r.ratingsActive() || r.inFlight[player] {
		return
	}
	if rec, _ := r.lobby.Extra(player); rec.Fetched() {
		return
	}

	r.inFlight[player] = true

	query := rating.Query{
		Player: player,
		MapKey: r.mapKey,
		Region: r.lobby.Meta().Region,
	}
	lobbyId := r.lobby.Id()
	provider := r.provider
	timeout := r.opts.LookupTimeout
	ctx := r.ctx

	go func() {
		lookupCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		rec, err := provider.Lookup(lookupCtx, query)
		_ = r.post(ctx, ratingResult{
			lobbyId: lobbyId,
			mapKey:  query.MapKey,
			player:  player,
			record:  rec,
			err:     err,
		})
	}()
}

func (r *Reconciler) unresolvedPlayers() []string {
	var unresolved []string
	for _, player := range r.lobby.NonSpectators() {
		if rec, _ := r.lobby.Extra(player); !rec.Fetched() {
			unresolved = append(unresolved, player)
		}
	}
	return unresolved
}

// scheduleRetry arms the retry timer unless one is already pending. Consecutive failures
// back off up to maxRetryAfter.
func (r *Reconciler) scheduleRetry() {
	if r.opts.RetryAfter <= 0 || r.timers[timerRetry].timer != nil {
		return
	}

	switch {
	case r.retryDelay == 0:
		r.retryDelay = r.opts.RetryAfter
	case r.retryDelay < maxRetryAfter:
		r.retryDelay = min(2*r.retryDelay, maxRetryAfter)
	}

	applog.Debug("Rating lookups will be retried", zap.Duration("delay", r.retryDelay))
	r.armTimer(timerRetry, r.retryDelay)
}

func (r *Reconciler) onRetry() {
	unresolved := r.unresolvedPlayers()
	if len(unresolved) == 0 {
		return
	}

	applog.Info("Retrying rating lookups", zap.Strings("players", unresolved))
	metrics.RatingRetriesTotal.Inc()
	r.fetchRatings(unresolved)
}

func (r *Reconciler) handleRatingResult(res ratingResult) {
	if r.lobby == nil || r.lobby.Id() != res.lobbyId {
		metrics.RatingLookupsTotal.WithLabelValues("discarded").Inc()
		return
	}
	if res.mapKey != r.mapKey {
		// Looked up for a map the lobby no longer plays, a new lookup is already running.
		metrics.RatingLookupsTotal.WithLabelValues("discarded").Inc()
		return
	}
	delete(r.inFlight, res.player)

	if !r.lobby.HasPlayer(res.player) {
		metrics.RatingLookupsTotal.WithLabelValues("discarded").Inc()
		applog.Debug("Discarding rating of a player who left", zap.String("player", res.player))
		return
	}

	rec := res.record
	switch {
	case errors.Is(res.err, rating.ErrNotFound):
		metrics.RatingLookupsTotal.WithLabelValues("not_found").Inc()
		rec = rating.Unranked(r.opts.DefaultRating)
	case res.err != nil || rec == nil:
		metrics.RatingLookupsTotal.WithLabelValues("failure").Inc()
		applog.Warn("Rating lookup failed",
			zap.String("player", res.player),
			zap.String("provider", r.provider.Name()),
			zap.Error(res.err),
		)
		r.failStats(res.player)
		r.scheduleRetry()
		r.resumePendingBalance()
		return
	default:
		metrics.RatingLookupsTotal.WithLabelValues("success").Inc()
	}
	r.retryDelay = 0

	if reason := r.opts.Requirements.Check(rec); r.opts.Requirements.Enabled() && reason != "" &&
		res.player != r.self() {
		r.reject(res.player, rec, reason)
		r.resumePendingBalance()
		return
	}

	r.lobby.SetExtra(res.player, rec, true)
	applog.Debug("Player rating resolved",
		zap.String("player", res.player),
		zap.Stringer("record", rec),
	)

	r.emit(PlayerData{Player: res.player, Record: rec.Clone(), Cleared: true})
	r.answerStats(res.player)
	r.checkReady()
	r.resumePendingBalance()
}

func (r *Reconciler) reject(player string, rec *rating.Record, reason string) {
	metrics.RatingLookupsTotal.WithLabelValues("rejected").Inc()
	applog.Info("Player does not meet the lobby requirements",
		zap.String("player", player),
		zap.String("reason", reason),
	)

	delete(r.statsWaiters, player)
	if slot, ok := r.lobby.SlotOf(player); ok && r.isHost() {
		r.sendCommand(hostproto.NewBanSlotMessage(slot.Number, player, reason))
	}
	r.emit(PlayerData{Player: player, Record: rec.Clone(), Cleared: false, Reason: reason})
}

// resumePendingBalance runs a deferred balance once no lookup is outstanding.
func (r *Reconciler) resumePendingBalance() {
	if r.pendingBalance == nil {
		return
	}
	for _, player := range r.lobby.NonSpectators() {
		if r.inFlight[player] {
			return
		}
	}

	pending := r.pendingBalance
	r.pendingBalance = nil
	if err := r.runBalance(pending.shuffle); err != nil {
		applog.Warn("Deferred balance failed", zap.Error(err))
	}
}
