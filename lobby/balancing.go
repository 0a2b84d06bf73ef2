package lobby

import (
	"fmt"
	"lobby-autohost/applog"
	"lobby-autohost/balance"
	"lobby-autohost/hostproto"
	"lobby-autohost/metrics"
	"strings"
	"time"

	"go.uber.org/zap"
)

// balance starts a balance or shuffle run. When ratings are still missing the run is deferred
// until every lookup resolved.
func (r *Reconciler) balance(shuffle bool) error {
	if r.lobby == nil {
		return ErrNoLobby
	}
	if !r.isHost() {
		return ErrNotHost
	}
	if !r.bestCombo.Empty() || r.ledger.Len() > 0 || r.pendingBalance != nil {
		return ErrAlreadyBalancing
	}

	if r.ratingsActive() && !shuffle {
		if unresolved := r.unresolvedPlayers(); len(unresolved) > 0 {
			r.pendingBalance = &pendingBalance{shuffle: shuffle}
			r.fetchRatings(unresolved)
			applog.Info("Balance waits for ratings", zap.Strings("players", unresolved))
			r.resumePendingBalance()
			if r.pendingBalance != nil {
				return ErrRatingsPending
			}
			return nil
		}
	}

	return r.runBalance(shuffle)
}

func (r *Reconciler) balanceInput() balance.Input {
	in := balance.Input{Ratings: make(map[string]float64)}

	for _, roster := range r.lobby.Rosters() {
		in.Teams = append(in.Teams, balance.Team{Number: roster.Team.Number, Players: roster.Players})
		for _, player := range roster.Players {
			if rec, _ := r.lobby.Extra(player); rec.Fetched() {
				in.Ratings[player] = rec.Rating
			}
		}
	}

	if r.opts.ExcludeHost {
		in.Excluded = r.self()
	}
	return in
}

func (r *Reconciler) runBalance(shuffle bool) error {
	if r.lobby == nil {
		return ErrNoLobby
	}

	in := r.balanceInput()
	started := time.Now()

	var result balance.Result
	var err error
	if shuffle {
		result, err = r.engine.Shuffle(in, r.rng)
	} else {
		result, err = r.engine.Balance(in)
	}
	metrics.BalanceDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		metrics.BalanceRunsTotal.WithLabelValues("error").Inc()
		applog.Warn("Balance failed", zap.Bool("shuffle", shuffle), zap.Error(err))
		return fmt.Errorf("balance failed: %w", err)
	}

	combo, swaps := result.Plan()
	if combo.Empty() {
		combo = currentGrouping(in)
	}
	r.bestCombo = combo

	applog.Info("Balance computed",
		zap.Bool("shuffle", shuffle),
		zap.Any("bestCombo", combo),
		zap.Stringers("swaps", swaps),
		zap.Any("result", result),
	)

	if len(swaps) == 0 {
		metrics.BalanceRunsTotal.WithLabelValues("balanced").Inc()
		r.onBalanced()
		return nil
	}

	metrics.BalanceRunsTotal.WithLabelValues("swapping").Inc()
	r.sendChat(balanceSummary(result, len(swaps)))

	for _, swap := range swaps {
		if err = r.issueSwap(swap.A, swap.B, true); err != nil {
			r.abortBalance(err)
			return err
		}
	}
	return nil
}

func currentGrouping(in balance.Input) balance.Combo {
	combo := make(balance.Combo, 0, len(in.Teams))
	for _, t := range in.Teams {
		combo = append(combo, t.Players)
	}
	return combo
}

func balanceSummary(result balance.Result, swaps int) string {
	switch res := result.(type) {
	case balance.TwoTeams:
		return fmt.Sprintf("Balancing teams with %d swap(s), rating difference %.0f", swaps, res.EloDiff*2)
	case balance.MoreTeams:
		return fmt.Sprintf("Balancing teams with %d swap(s), worst team off by %.0f", swaps, res.MaxDiff)
	default:
		return fmt.Sprintf("Balancing teams with %d swap(s)", swaps)
	}
}

// abortBalance withdraws every balance swap still pending after a failed issue.
func (r *Reconciler) abortBalance(cause error) {
	applog.Warn("Aborting balance", zap.Error(cause))
	for _, swap := range r.ledger.Pending() {
		if swap.Balance {
			r.ledger.Cancel(swap.Pair[0], swap.Pair[1])
			r.emit(SwapCancelled{Swap: swap, Reason: "balance aborted"})
		}
	}
	metrics.PendingSwaps.Set(float64(r.ledger.Len()))
	r.bestCombo = nil
}

// issueSwap registers the expectation before sending, so a fast confirmation always finds it.
func (r *Reconciler) issueSwap(a string, b string, isBalance bool) error {
	swap := NewExpectedSwap(a, b, isBalance)
	if err := r.ledger.Insert(swap); err != nil {
		return err
	}

	if !r.sendCommand(hostproto.NewSwapCommand(a, b)) {
		r.ledger.Cancel(a, b)
		metrics.PendingSwaps.Set(float64(r.ledger.Len()))
		return fmt.Errorf("failed to send swap %s", swap)
	}

	metrics.SwapsTotal.WithLabelValues("issued").Inc()
	metrics.PendingSwaps.Set(float64(r.ledger.Len()))
	applog.Debug("Swap issued", zap.String("swap", swap.String()), zap.Bool("balance", isBalance))
	return nil
}

// resolvePlayer turns a partial name into exactly one player of the lobby.
func (r *Reconciler) resolvePlayer(query string) (string, error) {
	matches := r.lobby.Search(query)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: no player matches %q", ErrInvalidSwapTarget, query)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %s", ErrInvalidSwapTarget, query, strings.Join(matches, ", "))
	}
}

func (r *Reconciler) manualSwap(queryA string, queryB string) error {
	if r.lobby == nil {
		return ErrNoLobby
	}
	if !r.isHost() {
		return ErrNotHost
	}

	err := r.trySwap(queryA, queryB)
	if err != nil {
		r.sendChat(fmt.Sprintf("Cannot swap: %v", err))
	}
	return err
}

func (r *Reconciler) trySwap(queryA string, queryB string) error {
	a, err := r.resolvePlayer(queryA)
	if err != nil {
		return err
	}
	b, err := r.resolvePlayer(queryB)
	if err != nil {
		return err
	}

	if a == b {
		return fmt.Errorf("%w: %v", ErrInvalidSwapTarget, ErrSelfSwap)
	}
	if err = r.issueSwap(a, b, false); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSwapTarget, err)
	}
	return nil
}

func (r *Reconciler) move(query string, team int) error {
	if r.lobby == nil {
		return ErrNoLobby
	}
	if !r.isHost() {
		return ErrNotHost
	}

	player, err := r.resolvePlayer(query)
	if err != nil {
		return err
	}
	if _, ok := r.lobby.Team(team); !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTeam, team)
	}

	slot, _ := r.lobby.SlotOf(player)
	if slot.Team == team {
		return nil
	}

	if !r.sendCommand(hostproto.NewSetTeamMessage(slot.Number, team)) {
		return fmt.Errorf("failed to move %s", player)
	}
	applog.Info("Moving player", zap.String("player", player), zap.Int("team", team))
	return nil
}
