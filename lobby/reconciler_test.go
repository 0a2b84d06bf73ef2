package lobby

import (
	"context"
	"lobby-autohost/balance"
	"lobby-autohost/hostproto"
	"lobby-autohost/rating"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scenarioRatings() map[string]float64 {
	return map[string]float64{"Ace": 1000, "Bea": 900, "Cid": 700, "Dot": 400}
}

func TestReconciler_IgnoresSetupWhenNotHosting(t *testing.T) {
	h := startHarness(t, testOptions(), nil)

	setup := fourPlayers()
	setup.Meta.IsHost = false
	h.submit(hostproto.NewLobbySetupMessage(setup))
	h.submit(hostproto.NewSlotUpdateMessage(openSlot(1, 1)))

	assert.Nil(t, h.state().Lobby)
	assert.False(t, hasEvent(h.drainEvents(), EventNewLobby))
}

func TestReconciler_IgnoresSetupWithoutPlayers(t *testing.T) {
	h := startHarness(t, testOptions(), nil)

	h.submit(hostproto.NewLobbySetupMessage(twoTeamSetup(openSlot(1, 1), openSlot(2, 2))))

	assert.Nil(t, h.state().Lobby)
}

func TestReconciler_NewLobby(t *testing.T) {
	h := startHarness(t, testOptions(), nil)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))

	event := h.nextEvent(EventNewLobby).(NewLobby)
	assert.Equal(t, "Dual Gap", event.Lobby.Meta.Map)
	assert.Len(t, event.Lobby.Slots, 4)

	state := h.state()
	require.NotNil(t, state.Lobby)
	assert.True(t, state.Ready, "without ratings a populated lobby is ready")
	assert.False(t, state.RatingsActive)
}

// Ratings 1000/900/700/400 split as {Ace, Bea} vs {Cid, Dot}: a single swap of Bea and Dot
// reaches the diff-100 grouping.
func TestReconciler_ScenarioA(t *testing.T) {
	h := startHarness(t, testOptions(), newFakeProvider(scenarioRatings()))

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Balance(h.ctx))
	assert.Equal(t, []string{"!swap Bea Dot"}, h.sender.swapCommands())

	state := h.state()
	require.Len(t, state.PendingSwaps, 1)
	assert.Equal(t, [2]string{"Bea", "Dot"}, state.PendingSwaps[0].Pair)
	assert.True(t, state.PendingSwaps[0].Balance)
	assert.Equal(t, balance.Combo{{"Ace", "Dot"}}, state.BestCombo)
	assert.False(t, state.Ready, "a pending swap blocks readiness")

	h.submit(hostproto.NewSlotUpdateMessage(playerSlot(2, 1, "Dot"), playerSlot(4, 2, "Bea")))
	h.nextEvent(EventLobbyBalanced)

	state = h.state()
	assert.Empty(t, state.PendingSwaps)
	assert.True(t, state.Ready)

	assert.ErrorIs(t, h.rec.Balance(h.ctx), ErrAlreadyBalancing)
	assert.Len(t, h.sender.swapCommands(), 1)
}

func TestReconciler_ScenarioB_AlreadyBalanced(t *testing.T) {
	ratings := map[string]float64{"Ace": 1000, "Bea": 500, "Cid": 900, "Dot": 600}
	h := startHarness(t, testOptions(), newFakeProvider(ratings))

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Balance(h.ctx))
	h.nextEvent(EventLobbyBalanced)

	assert.Empty(t, h.sender.chats(), "nothing to swap means nothing to say")
	assert.Empty(t, h.state().PendingSwaps)
	assert.ErrorIs(t, h.rec.Balance(h.ctx), ErrAlreadyBalancing)
}

func TestReconciler_EqualRatingsNeedNoSwaps(t *testing.T) {
	opts := testOptions()
	opts.BalanceEnabled = true
	opts.AutoStart = time.Hour
	h := startHarness(t, opts, rating.Off{})

	h.submit(hostproto.NewLobbySetupMessage(twoTeamSetup(
		playerSlot(1, 1, "Ace"),
		playerSlot(2, 1, "Cid"),
		playerSlot(3, 2, "Bea"),
		playerSlot(4, 2, "Dot"),
	)))

	balanced := h.nextEvent(EventLobbyBalanced).(LobbyBalanced)
	assert.Equal(t, balance.Combo{{"Ace", "Cid"}}, balance.Combo(balanced.BestCombo))
	h.nextEvent(EventCountdownStarted)

	assert.Empty(t, h.sender.swapCommands())
	assert.Empty(t, h.state().PendingSwaps)
}

func TestReconciler_ScenarioC_LeaverCancelsSwap(t *testing.T) {
	h := startHarness(t, testOptions(), nil)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Swap(h.ctx, "bea", "cid"))
	assert.Equal(t, []string{"!swap Bea Cid"}, h.sender.swapCommands())

	h.submit(hostproto.NewSlotUpdateMessage(openSlot(2, 1)))

	cancelled := h.nextEvent(EventSwapCancelled).(SwapCancelled)
	assert.Equal(t, [2]string{"Bea", "Cid"}, cancelled.Swap.Pair)
	assert.Contains(t, h.sender.chats(), "Swap Bea <-> Cid cancelled: Bea left the lobby")
	assert.Empty(t, h.state().PendingSwaps)

	h.submit(hostproto.NewSwapNoticeMessage("Bea", "Cid"))

	state := h.state()
	assert.Empty(t, state.PendingSwaps)
	assert.NotNil(t, state.Lobby)
}

func TestReconciler_ScenarioD_LateRatingForLeaver(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	gate := provider.gate("Dot")
	h := startHarness(t, testOptions(), provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.eventually(func(s State) bool {
		return len(s.RatingsInFlight) == 1 && s.RatingsInFlight[0] == "Dot"
	})

	h.submit(hostproto.NewSlotUpdateMessage(openSlot(4, 2)))
	h.drainEvents()
	close(gate)

	h.eventually(func(s State) bool {
		return len(s.RatingsInFlight) == 0
	})

	for _, e := range h.drainEvents() {
		if data, ok := e.(PlayerData); ok {
			assert.NotEqual(t, "Dot", data.Player)
		}
	}

	for _, slot := range h.state().Lobby.Slots {
		assert.NotEqual(t, "Dot", slot.Player)
	}
	assert.Equal(t, 1, provider.callCount("Dot"))
}

func TestReconciler_RatingsAreFetchedOncePerPlayer(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	gate := provider.gate("Bea")
	h := startHarness(t, testOptions(), provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.submit(hostproto.NewChatMessage("Cid", "?stats bea"))
	h.submit(hostproto.NewChatMessage("Dot", "?stats bea"))
	h.state()
	close(gate)

	h.waitReady()
	assert.Equal(t, 1, provider.callCount("Bea"))
}

func TestReconciler_UnknownPlayerGetsDefaultRating(t *testing.T) {
	provider := newFakeProvider(map[string]float64{"Ace": 1000, "Bea": 900, "Cid": 700})
	h := startHarness(t, testOptions(), provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	for _, slot := range h.state().Lobby.Slots {
		if slot.Player == "Dot" {
			require.NotNil(t, slot.Extra)
			assert.Equal(t, float64(rating.DefaultRating), slot.Extra.Rating)
			assert.True(t, slot.Cleared)
		}
	}
}

func TestReconciler_ProviderFailureKeepsLobbyUnready(t *testing.T) {
	h := startHarness(t, testOptions(), failingProvider{})

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.eventually(func(s State) bool {
		return len(s.RatingsInFlight) == 0
	})

	state := h.state()
	assert.False(t, state.Ready)
	assert.NotNil(t, state.Lobby)
}

func TestReconciler_FailedLookupIsRetried(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	provider.failNext("Bea", 2)

	opts := testOptions()
	opts.RetryAfter = 10 * time.Millisecond
	h := startHarness(t, opts, provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.submit(hostproto.NewSlotUpdateMessage(fourPlayers().Slots...))
	h.waitReady()

	assert.Equal(t, 3, provider.callCount("Bea"), "two failures then a success")
	assert.Equal(t, 1, provider.callCount("Ace"))

	state := h.state()
	for _, slot := range state.Lobby.Slots {
		if slot.Player == "Bea" {
			assert.True(t, slot.Cleared)
		}
	}
}

func TestReconciler_FailedLookupUnblocksAutoStart(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	provider.failNext("Cid", 1)

	opts := testOptions()
	opts.RetryAfter = 10 * time.Millisecond
	opts.AutoStart = 20 * time.Millisecond
	h := startHarness(t, opts, provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.nextEvent(EventGameStarting)
	assert.Equal(t, 2, provider.callCount("Cid"))
}

func TestReconciler_RequirementsBanPlayer(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	provider.records["Ace"] = &rating.Record{Rating: 1000, Played: 2}
	provider.records["Dot"] = &rating.Record{Rating: 400, Played: 3}

	opts := testOptions()
	opts.Requirements = rating.Requirements{MinGames: 10}
	h := startHarness(t, opts, provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))

	data := h.nextEvent(EventPlayerData).(PlayerData)
	for data.Player != "Dot" {
		data = h.nextEvent(EventPlayerData).(PlayerData)
	}
	assert.False(t, data.Cleared)
	assert.NotEmpty(t, data.Reason)

	h.eventually(func(s State) bool {
		return len(s.RatingsInFlight) == 0
	})

	var bans []*hostproto.BanSlotMessage
	for _, cmd := range h.sender.commands() {
		if ban, ok := cmd.(*hostproto.BanSlotMessage); ok {
			bans = append(bans, ban)
		}
	}
	require.Len(t, bans, 1, "the host itself is never banned")
	assert.Equal(t, 4, bans[0].Slot)
	assert.Equal(t, "Dot", bans[0].Player)

	assert.False(t, h.state().Ready, "a rejected player blocks the start until gone")

	h.submit(hostproto.NewSlotUpdateMessage(openSlot(4, 2)))
	assert.True(t, h.state().Ready)
}

func TestReconciler_UnexpectedSwapDropsBalanceTarget(t *testing.T) {
	h := startHarness(t, testOptions(), newFakeProvider(scenarioRatings()))
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Balance(h.ctx))
	h.submit(hostproto.NewSlotUpdateMessage(playerSlot(2, 1, "Dot"), playerSlot(4, 2, "Bea")))
	h.nextEvent(EventLobbyBalanced)

	h.submit(hostproto.NewSlotUpdateMessage(playerSlot(1, 1, "Cid"), playerSlot(3, 2, "Ace")))

	state := h.state()
	assert.Empty(t, state.BestCombo)
	assert.NoError(t, h.rec.Balance(h.ctx), "a changed roster may be balanced again")
}

func TestReconciler_SwapNoticeConfirmsBalanceSwap(t *testing.T) {
	h := startHarness(t, testOptions(), newFakeProvider(scenarioRatings()))
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Balance(h.ctx))
	h.submit(hostproto.NewSwapNoticeMessage("Dot", "Bea"))
	h.nextEvent(EventLobbyBalanced)

	// The slot payload for the same swap arrives afterwards and keeps the target.
	h.submit(hostproto.NewSlotUpdateMessage(playerSlot(2, 1, "Dot"), playerSlot(4, 2, "Bea")))
	assert.Equal(t, balance.Combo{{"Ace", "Dot"}}, h.state().BestCombo)
}

func TestReconciler_BalanceWaitsForRatings(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	gate := provider.gate("Cid")
	h := startHarness(t, testOptions(), provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.eventually(func(s State) bool {
		return len(s.RatingsInFlight) == 1
	})

	assert.ErrorIs(t, h.rec.Balance(h.ctx), ErrRatingsPending)
	assert.ErrorIs(t, h.rec.Balance(h.ctx), ErrAlreadyBalancing)
	assert.Empty(t, h.sender.swapCommands())

	close(gate)
	assert.Eventually(t, func() bool {
		return len(h.sender.swapCommands()) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, []string{"!swap Bea Dot"}, h.sender.swapCommands())
}

func TestReconciler_ShuffleKeepsTeamSizes(t *testing.T) {
	h := startHarness(t, testOptions(), nil)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Shuffle(h.ctx))

	state := h.state()
	require.Len(t, state.BestCombo, 2)
	assert.Len(t, state.BestCombo[0], 2)
	assert.Len(t, state.BestCombo[1], 2)
	assert.Len(t, h.sender.swapCommands(), len(state.PendingSwaps))
}

func TestReconciler_SwapValidation(t *testing.T) {
	h := startHarness(t, testOptions(), nil)

	assert.ErrorIs(t, h.rec.Swap(h.ctx, "ace", "bea"), ErrNoLobby)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	tests := []struct {
		name string
		a, b string
	}{
		{name: "self", a: "ace", b: "Ace"},
		{name: "unknown", a: "zed", b: "ace"},
		{name: "ambiguous", a: "e", b: "cid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, h.rec.Swap(h.ctx, tt.a, tt.b), ErrInvalidSwapTarget)
		})
	}

	require.NoError(t, h.rec.Swap(h.ctx, "ace", "cid"))
	err := h.rec.Swap(h.ctx, "cid", "ace")
	assert.ErrorIs(t, err, ErrInvalidSwapTarget)

	assert.Len(t, h.state().PendingSwaps, 1)
	assert.Len(t, h.sender.swapCommands(), 1)

	refusals := 0
	for _, text := range h.sender.chats() {
		if len(text) > 12 && text[:12] == "Cannot swap:" {
			refusals++
		}
	}
	assert.Equal(t, len(tests)+1, refusals)
}

func TestReconciler_Move(t *testing.T) {
	h := startHarness(t, testOptions(), nil)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))

	require.NoError(t, h.rec.Move(h.ctx, "bea", 2))
	assert.ErrorIs(t, h.rec.Move(h.ctx, "bea", 7), ErrUnknownTeam)

	var moves []*hostproto.SetTeamMessage
	for _, cmd := range h.sender.commands() {
		if move, ok := cmd.(*hostproto.SetTeamMessage); ok {
			moves = append(moves, move)
		}
	}
	require.Len(t, moves, 1)
	assert.Equal(t, 2, moves[0].Slot)
	assert.Equal(t, 2, moves[0].Team)
}

func TestReconciler_ChatStats(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	h := startHarness(t, testOptions(), provider)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	h.submit(hostproto.NewChatMessage("Bea", "?stats"))
	h.submit(hostproto.NewChatMessage("Bea", "?stats zed"))
	h.submit(hostproto.NewChatMessage("Bea", "?stats e"))
	h.submit(hostproto.NewChatMessage("Bea", "hello"))
	h.state()

	assert.Equal(t, []string{
		"Bea: 900 rating, 10th, 50 games (30 wins, 20 losses), last change +0",
		`No player matches "zed"`,
		`"e" is ambiguous: Ace, Bea`,
	}, h.sender.chats())
}

func TestReconciler_ChatStatsWaitsForLookup(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	gate := provider.gate("Cid")
	h := startHarness(t, testOptions(), provider)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))

	h.submit(hostproto.NewChatMessage("Ace", "?stats cid"))
	h.state()
	assert.Empty(t, h.sender.chats())

	close(gate)
	assert.Eventually(t, func() bool {
		return len(h.sender.chats()) == 1
	}, waitFor, 5*time.Millisecond)
	assert.Contains(t, h.sender.chats()[0], "Cid: 700 rating")
}

func TestReconciler_StaleLobbyWithOnePlayer(t *testing.T) {
	opts := testOptions()
	opts.StaleAfter = 20 * time.Millisecond
	h := startHarness(t, opts, nil)

	h.submit(hostproto.NewLobbySetupMessage(twoTeamSetup(playerSlot(1, 1, "Ace"), openSlot(2, 2))))

	stale := h.nextEvent(EventStale).(Stale)
	assert.Equal(t, 1, stale.Players)
	assert.Equal(t, 0, h.sender.count(hostproto.MessageCommandCloseSlot))
}

func TestReconciler_StaleLobbyRefreshesOpenSlots(t *testing.T) {
	opts := testOptions()
	opts.StaleAfter = 30 * time.Millisecond
	h := startHarness(t, opts, nil)

	h.submit(hostproto.NewLobbySetupMessage(twoTeamSetup(
		playerSlot(1, 1, "Ace"),
		openSlot(2, 1),
		playerSlot(3, 2, "Bea"),
		openSlot(4, 2),
	)))

	assert.Eventually(t, func() bool {
		return h.sender.count(hostproto.MessageCommandCloseSlot) >= 2 &&
			h.sender.count(hostproto.MessageCommandOpenSlot) >= 2
	}, waitFor, 5*time.Millisecond)

	commands := h.sender.commands()
	require.GreaterOrEqual(t, len(commands), 4)
	assert.Equal(t, hostproto.NewCloseSlotMessage(2), commands[0])
	assert.Equal(t, hostproto.NewOpenSlotMessage(2), commands[1])
	assert.Equal(t, hostproto.NewCloseSlotMessage(4), commands[2])
	assert.Equal(t, hostproto.NewOpenSlotMessage(4), commands[3])

	assert.False(t, hasEvent(h.drainEvents(), EventStale))
}

func TestReconciler_CountdownStartsGame(t *testing.T) {
	opts := testOptions()
	opts.AutoStart = 20 * time.Millisecond
	h := startHarness(t, opts, nil)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))

	h.nextEvent(EventCountdownStarted)
	h.nextEvent(EventGameStarting)
	assert.Equal(t, 1, h.sender.count(hostproto.MessageCommandStartGame))
}

func TestReconciler_MoveCancelsCountdown(t *testing.T) {
	opts := testOptions()
	opts.AutoStart = time.Hour
	h := startHarness(t, opts, nil)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.nextEvent(EventCountdownStarted)

	h.submit(hostproto.NewSlotUpdateMessage(openSlot(2, 1), playerSlot(5, 1, "Bea")))

	cancelled := h.nextEvent(EventCountdownCancelled).(CountdownCancelled)
	assert.Equal(t, "Bea moved", cancelled.Reason)
	assert.False(t, h.state().CountdownActive)
	assert.Equal(t, 0, h.sender.count(hostproto.MessageCommandStartGame))
}

func TestReconciler_AutoBalanceThenCountdown(t *testing.T) {
	opts := testOptions()
	opts.BalanceEnabled = true
	opts.AutoStart = time.Hour
	h := startHarness(t, opts, newFakeProvider(scenarioRatings()))

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	assert.Eventually(t, func() bool {
		return len(h.sender.swapCommands()) == 1
	}, waitFor, 5*time.Millisecond)
	assert.False(t, h.state().CountdownActive)

	h.submit(hostproto.NewSlotUpdateMessage(playerSlot(2, 1, "Dot"), playerSlot(4, 2, "Bea")))
	h.nextEvent(EventLobbyBalanced)
	h.nextEvent(EventCountdownStarted)
}

func TestReconciler_ExcludedHostStaysInPlace(t *testing.T) {
	opts := testOptions()
	opts.ExcludeHost = true
	h := startHarness(t, opts, newFakeProvider(scenarioRatings()))

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Balance(h.ctx))
	for _, swap := range h.state().PendingSwaps {
		assert.False(t, swap.Involves("Ace"))
	}
}

func TestReconciler_AbandonAndLobbyLeft(t *testing.T) {
	h := startHarness(t, testOptions(), nil)
	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	require.NoError(t, h.rec.Abandon(h.ctx))
	left := h.nextEvent(EventLeftLobby).(LeftLobby)
	assert.Equal(t, "abandoned", left.Reason)
	assert.Equal(t, 1, h.sender.count(hostproto.MessageCommandLeaveLobby))
	assert.Nil(t, h.state().Lobby)
	assert.ErrorIs(t, h.rec.Abandon(h.ctx), ErrNoLobby)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.nextEvent(EventNewLobby)
	h.submit(hostproto.NewLobbyLeftMessage("kicked"))
	left = h.nextEvent(EventLeftLobby).(LeftLobby)
	assert.Equal(t, "kicked", left.Reason)
}

func TestReconciler_MapChangeResetsRatings(t *testing.T) {
	provider := newFakeProvider(scenarioRatings())
	h := startHarness(t, testOptions(), provider)

	h.submit(hostproto.NewLobbySetupMessage(fourPlayers()))
	h.waitReady()

	setup := fourPlayers()
	setup.Meta.Map = "Setons Clutch"
	h.submit(hostproto.NewLobbySetupMessage(setup))
	h.waitReady()

	assert.Equal(t, "Setons Clutch", h.state().MapKey)
	assert.Equal(t, 2, provider.callCount("Ace"))
}

func TestReconciler_ShutdownLeavesLobbyAndRejectsRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{}
	rec := NewReconciler(testOptions(), sender, nil, nil, nil)
	events, _ := rec.Events().Subscribe(16)

	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	require.NoError(t, rec.Submit(ctx, hostproto.NewLobbySetupMessage(fourPlayers())))
	_, err := rec.View(ctx)
	require.NoError(t, err)

	cancel()
	<-done

	assert.Equal(t, 1, sender.count(hostproto.MessageCommandLeaveLobby))

	var kinds []EventKind
	for e := range events {
		kinds = append(kinds, e.Kind())
	}
	assert.Contains(t, kinds, EventLeftLobby)

	_, err = rec.View(context.Background())
	assert.ErrorIs(t, err, ErrStopped)
}
