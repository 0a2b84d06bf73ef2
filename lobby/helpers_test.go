package lobby

import (
	"context"
	"errors"
	"lobby-autohost/hostproto"
	"lobby-autohost/rating"
	"lobby-autohost/snapshot"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

type fakeSender struct {
	mu   sync.Mutex
	sent []hostproto.Outbound
	err  error
}

func (s *fakeSender) Send(msg hostproto.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) commands() []hostproto.Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]hostproto.Outbound(nil), s.sent...)
}

func (s *fakeSender) chats() []string {
	var texts []string
	for _, cmd := range s.commands() {
		if chat, ok := cmd.(*hostproto.SendChatMessage); ok {
			texts = append(texts, chat.Text)
		}
	}
	return texts
}

func (s *fakeSender) swapCommands() []string {
	var swaps []string
	for _, text := range s.chats() {
		if strings.HasPrefix(text, "!swap ") {
			swaps = append(swaps, text)
		}
	}
	return swaps
}

func (s *fakeSender) count(command hostproto.MessageCommand) int {
	n := 0
	for _, cmd := range s.commands() {
		if cmd.GetCommand() == command {
			n++
		}
	}
	return n
}

// fakeProvider answers from a table. A player listed in gates blocks until the gate closes,
// a player listed in failures gets that many errors first.
type fakeProvider struct {
	mu       sync.Mutex
	records  map[string]*rating.Record
	gates    map[string]chan struct{}
	failures map[string]int
	calls    map[string]int
}

func newFakeProvider(ratings map[string]float64) *fakeProvider {
	p := &fakeProvider{
		records:  make(map[string]*rating.Record),
		gates:    make(map[string]chan struct{}),
		failures: make(map[string]int),
		calls:    make(map[string]int),
	}
	for player, r := range ratings {
		p.records[player] = &rating.Record{Rating: r, Played: 50, Wins: 30, Losses: 20, Rank: 10}
	}
	return p
}

func (p *fakeProvider) Name() string {
	return "fake"
}

func (p *fakeProvider) gate(player string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.gates[player] = ch
	return ch
}

func (p *fakeProvider) failNext(player string, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[player] = times
}

func (p *fakeProvider) Lookup(ctx context.Context, q rating.Query) (*rating.Record, error) {
	p.mu.Lock()
	p.calls[q.Player]++
	gate := p.gates[q.Player]
	rec, ok := p.records[q.Player]
	fail := p.failures[q.Player] > 0
	if fail {
		p.failures[q.Player]--
	}
	p.mu.Unlock()

	if fail {
		return nil, errors.New("service unavailable")
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, rating.ErrNotFound
	}
	return rec.Clone(), nil
}

func (p *fakeProvider) callCount(player string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[player]
}

type failingProvider struct{}

func (failingProvider) Name() string {
	return "failing"
}

func (failingProvider) Lookup(context.Context, rating.Query) (*rating.Record, error) {
	return nil, errors.New("connection refused")
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	rec    *Reconciler
	sender *fakeSender
	events <-chan Event
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.BalanceEnabled = false
	opts.StaleAfter = time.Hour
	opts.RefreshSettle = 10 * time.Millisecond
	opts.LookupTimeout = time.Second
	return opts
}

func startHarness(t *testing.T, opts Options, provider rating.Provider) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	sender := &fakeSender{}
	rec := NewReconciler(opts, sender, provider, nil, nil)
	events, _ := rec.Events().Subscribe(256)

	done := make(chan struct{})
	go func() {
		_ = rec.Run(ctx)
		close(done)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{t: t, ctx: ctx, rec: rec, sender: sender, events: events}
}

func (h *harness) submit(msg hostproto.Inbound) {
	h.t.Helper()
	require.NoError(h.t, h.rec.Submit(h.ctx, msg))
}

// state round-trips through the loop, so every message submitted before was processed.
func (h *harness) state() State {
	h.t.Helper()
	state, err := h.rec.View(h.ctx)
	require.NoError(h.t, err)
	return state
}

func (h *harness) waitReady() {
	h.t.Helper()
	assert.Eventually(h.t, func() bool {
		state, err := h.rec.View(h.ctx)
		return err == nil && state.Ready
	}, waitFor, 5*time.Millisecond)
}

func (h *harness) eventually(condition func(State) bool) {
	h.t.Helper()
	assert.Eventually(h.t, func() bool {
		state, err := h.rec.View(h.ctx)
		return err == nil && condition(state)
	}, waitFor, 5*time.Millisecond)
}

// nextEvent skips events until one of the wanted kind arrives.
func (h *harness) nextEvent(kind EventKind) Event {
	h.t.Helper()
	timeout := time.After(waitFor)
	for {
		select {
		case e, ok := <-h.events:
			require.True(h.t, ok, "event channel closed")
			if e.Kind() == kind {
				return e
			}
		case <-timeout:
			h.t.Fatalf("timed out waiting for %s", kind)
			return nil
		}
	}
}

// drainEvents returns every event emitted so far.
func (h *harness) drainEvents() []Event {
	h.state()
	var events []Event
	for {
		select {
		case e := <-h.events:
			events = append(events, e)
		default:
			return events
		}
	}
}

func hasEvent(events []Event, kind EventKind) bool {
	for _, e := range events {
		if e.Kind() == kind {
			return true
		}
	}
	return false
}

func playerSlot(number int, team int, player string) snapshot.Slot {
	return snapshot.Slot{Number: number, Status: snapshot.SlotPlayer, Team: team, Player: player}
}

func openSlot(number int, team int) snapshot.Slot {
	return snapshot.Slot{Number: number, Status: snapshot.SlotOpen, Team: team}
}

func twoTeamSetup(slots ...snapshot.Slot) snapshot.Setup {
	return snapshot.Setup{
		Meta: snapshot.Meta{Name: "4v4 balanced", Map: "Dual Gap", IsHost: true, Self: "Ace"},
		Teams: []snapshot.Team{
			{Number: 1, Name: "Team 1"},
			{Number: 2, Name: "Team 2"},
			{Number: 9, Name: "Observers", Spectator: true},
		},
		Slots: slots,
	}
}

// fourPlayers seats Ace and Bea on team 1, Cid and Dot on team 2.
func fourPlayers() snapshot.Setup {
	return twoTeamSetup(
		playerSlot(1, 1, "Ace"),
		playerSlot(2, 1, "Bea"),
		playerSlot(3, 2, "Cid"),
		playerSlot(4, 2, "Dot"),
	)
}
