package lobby

import (
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/hostproto"
	"lobby-autohost/metrics"
	"lobby-autohost/snapshot"

	"go.uber.org/zap"
)

func (r *Reconciler) handleInbound(msg hostproto.Inbound) {
	metrics.InboundMessagesTotal.WithLabelValues(msg.GetCommand()).Inc()

	switch m := msg.(type) {
	case *hostproto.LobbySetupMessage:
		r.handleSetup(m.Setup)
	case *hostproto.SlotUpdateMessage:
		r.handleSlots(m.Slots)
	case *hostproto.ChatMessage:
		r.handleChat(m.Sender, m.Text)
	case *hostproto.SwapNoticeMessage:
		r.handleSwapNotice(m.PlayerA, m.PlayerB)
	case *hostproto.LobbyLeftMessage:
		if r.lobby != nil {
			r.teardown(m.Reason)
		}
	default:
		applog.Debug("Inbound message ignored", zap.String("command", msg.GetCommand()))
	}
}

func (r *Reconciler) handleSetup(setup snapshot.Setup) {
	if r.lobby == nil {
		if !setup.Meta.IsHost || setup.PlayerCount() < 1 {
			applog.Debug("Ignoring lobby setup, not hosting a populated lobby",
				zap.String("lobbyName", setup.Meta.Name),
				zap.Bool("isHost", setup.Meta.IsHost),
				zap.Int("players", setup.PlayerCount()),
			)
			return
		}
		r.openLobby(setup)
		return
	}

	previousMap := r.lobby.Meta().Map
	changes := r.lobby.ApplySetup(setup)
	if previousMap != setup.Meta.Map {
		r.onMapChanged()
	}
	r.processChanges(changes)
}

func (r *Reconciler) openLobby(setup snapshot.Setup) {
	r.lobby = snapshot.New(setup)
	r.resolveMapKey()
	r.resetStaleTimer()

	applog.Info("Hosting new lobby",
		zap.String("lobbyId", r.lobby.Id()),
		zap.String("lobbyName", setup.Meta.Name),
		zap.String("map", setup.Meta.Map),
		zap.String("mapKey", r.mapKey),
		zap.Int("players", setup.PlayerCount()),
	)

	metrics.LobbyPlayers.Set(float64(len(r.lobby.Players())))
	r.emit(NewLobby{Lobby: r.lobby.View()})

	r.fetchRatings(r.lobby.Players())
	r.checkReady()
}

func (r *Reconciler) resolveMapKey() {
	r.mapKey = ""
	if key, ok := r.maps.Resolve(r.lobby.Meta().Map); ok {
		r.mapKey = key
	}
}

// onMapChanged drops the records fetched for the previous map.
func (r *Reconciler) onMapChanged() {
	previousKey := r.mapKey
	r.resolveMapKey()
	if previousKey == r.mapKey {
		return
	}

	applog.Info("Lobby map changed, ratings reset",
		zap.String("map", r.lobby.Meta().Map),
		zap.String("mapKey", r.mapKey),
	)

	r.lobby.ClearExtras()
	r.inFlight = make(map[string]bool)
	r.bestCombo = nil
	r.fetchRatings(r.lobby.Players())
}

func (r *Reconciler) handleSlots(slots []snapshot.Slot) {
	if r.lobby == nil {
		applog.Debug("Ignoring slot update without a lobby", zap.Int("slots", len(slots)))
		return
	}
	r.processChanges(r.lobby.Apply(slots))
}

// processChanges classifies the changes of one payload against the ledger.
func (r *Reconciler) processChanges(changes []snapshot.Change) {
	r.resetStaleTimer()

	consumed := false
	balanceConsumed := false

	for _, change := range changes {
		metrics.ChangesTotal.WithLabelValues(changeKind(change)).Inc()

		switch c := change.(type) {
		case snapshot.PlayerJoined:
			r.cancelCountdown(fmt.Sprintf("%s joined", c.Player))
			r.fetchRating(c.Player)
		case snapshot.PlayerMoved:
			r.cancelCountdown(fmt.Sprintf("%s moved", c.Player))
			r.invalidateSwaps(c.Player, fmt.Sprintf("%s moved", c.Player))
		case snapshot.PlayerLeft:
			r.cancelCountdown(fmt.Sprintf("%s left", c.Player))
			r.invalidateSwaps(c.Player, fmt.Sprintf("%s left the lobby", c.Player))
			r.forgetPlayer(c.Player)
		case snapshot.PlayersSwapped:
			matched, isBalance := r.matchSwap(c.A, c.B)
			consumed = consumed || matched
			balanceConsumed = balanceConsumed || isBalance
		}

		r.emit(PlayerPayload{Change: change, ChangeKind: changeKind(change)})
	}

	metrics.LobbyPlayers.Set(float64(len(r.lobby.Players())))
	r.afterChanges(len(changes) > 0, consumed, balanceConsumed)
}

func (r *Reconciler) handleSwapNotice(a string, b string) {
	if r.lobby == nil {
		return
	}

	matched, isBalance := r.matchSwap(a, b)
	if matched {
		// The slot payload reporting this swap follows later and must not count as foreign.
		r.acknowledged[sortedPair(a, b)]++
	}
	r.afterChanges(true, matched, isBalance)
}

// matchSwap consumes the ledger entry for the pair. An unknown swap cancels the countdown.
func (r *Reconciler) matchSwap(a string, b string) (bool, bool) {
	if swap, ok := r.ledger.Match(a, b); ok {
		metrics.SwapsTotal.WithLabelValues("matched").Inc()
		metrics.PendingSwaps.Set(float64(r.ledger.Len()))
		applog.Debug("Expected swap confirmed",
			zap.String("swap", swap.String()),
			zap.Bool("balance", swap.Balance),
			zap.Int("pending", r.ledger.Len()),
		)
		return true, swap.Balance
	}

	pair := sortedPair(a, b)
	if r.acknowledged[pair] > 0 {
		r.acknowledged[pair]--
		if r.acknowledged[pair] == 0 {
			delete(r.acknowledged, pair)
		}
		return true, false
	}

	metrics.SwapsTotal.WithLabelValues("unexpected").Inc()
	applog.Info("Unexpected swap", zap.String("playerA", a), zap.String("playerB", b))
	r.cancelCountdown(fmt.Sprintf("%s and %s swapped", a, b))
	return false, false
}

func (r *Reconciler) invalidateSwaps(player string, reason string) {
	for _, swap := range r.ledger.InvalidatePlayer(player) {
		metrics.SwapsTotal.WithLabelValues("cancelled").Inc()
		applog.Info("Pending swap cancelled",
			zap.String("swap", swap.String()),
			zap.String("reason", reason),
		)
		r.sendChat(fmt.Sprintf("Swap %s cancelled: %s", swap, reason))
		r.emit(SwapCancelled{Swap: swap, Reason: reason})
	}
	metrics.PendingSwaps.Set(float64(r.ledger.Len()))
}

func (r *Reconciler) forgetPlayer(player string) {
	delete(r.statsWaiters, player)
	for pair := range r.acknowledged {
		if pair[0] == player || pair[1] == player {
			delete(r.acknowledged, pair)
		}
	}
}

// afterChanges runs once per payload after every change was classified.
func (r *Reconciler) afterChanges(changed bool, consumed bool, balanceConsumed bool) {
	if !consumed {
		if changed && !r.bestCombo.Empty() {
			applog.Debug("Lobby changed, dropping balance target")
			r.bestCombo = nil
		}
		r.checkReady()
		return
	}

	if r.ledger.Len() == 0 && balanceConsumed {
		r.onBalanced()
	}
}

// teardown forgets the lobby and everything attached to it.
func (r *Reconciler) teardown(reason string) {
	applog.Info("Left lobby",
		zap.String("lobbyId", r.lobby.Id()),
		zap.String("reason", reason),
	)

	r.stopTimers()
	for _, swap := range r.ledger.Clear() {
		r.emit(SwapCancelled{Swap: swap, Reason: "left lobby"})
	}

	r.lobby = nil
	r.mapKey = ""
	r.bestCombo = nil
	r.refreshing = false
	r.countdown = false
	r.pendingBalance = nil
	r.retryDelay = 0
	r.readyAnnounced = false
	r.inFlight = make(map[string]bool)
	r.statsWaiters = make(map[string]bool)
	r.acknowledged = make(map[[2]string]int)

	metrics.LobbyPlayers.Set(0)
	metrics.LobbyReady.Set(0)
	metrics.PendingSwaps.Set(0)

	r.emit(LeftLobby{Reason: reason})
}

func (r *Reconciler) abandon() error {
	if r.lobby == nil {
		return ErrNoLobby
	}
	r.sendCommand(hostproto.NewLeaveLobbyMessage())
	r.teardown("abandoned")
	return nil
}
