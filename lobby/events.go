package lobby

import (
	"lobby-autohost/rating"
	"lobby-autohost/snapshot"
	"lobby-autohost/util"
	"sync"
	"time"
)

type EventKind = string

const (
	EventNewLobby           EventKind = "newLobby"
	EventPlayerPayload      EventKind = "playerPayload"
	EventPlayerData         EventKind = "playerData"
	EventStale              EventKind = "stale"
	EventLobbyReady         EventKind = "lobbyReady"
	EventLobbyBalanced      EventKind = "lobbyBalanced"
	EventLeftLobby          EventKind = "leftLobby"
	EventSwapCancelled      EventKind = "swapCancelled"
	EventCountdownStarted   EventKind = "countdownStarted"
	EventCountdownCancelled EventKind = "countdownCancelled"
	EventGameStarting       EventKind = "gameStarting"
)

// Event is what the reconciler reports to the outside. Only NewLobby carries a full snapshot.
type Event interface {
	Kind() EventKind
}

type NewLobby struct {
	Lobby snapshot.View `json:"lobby"`
}

type PlayerPayload struct {
	Change     snapshot.Change `json:"change"`
	ChangeKind string          `json:"changeKind"`
}

type PlayerData struct {
	Player  string         `json:"player"`
	Record  *rating.Record `json:"record"`
	Cleared bool           `json:"cleared"`
	Reason  string         `json:"reason,omitempty"`
}

type Stale struct {
	Players int `json:"players"`
}

type LobbyReady struct{}

type LobbyBalanced struct {
	BestCombo [][]string `json:"bestCombo"`
}

type LeftLobby struct {
	Reason string `json:"reason"`
}

type SwapCancelled struct {
	Swap   ExpectedSwap `json:"swap"`
	Reason string       `json:"reason"`
}

type CountdownStarted struct {
	Delay time.Duration `json:"delay"`
}

type CountdownCancelled struct {
	Reason string `json:"reason"`
}

type GameStarting struct{}

func (NewLobby) Kind() EventKind           { return EventNewLobby }
func (PlayerPayload) Kind() EventKind      { return EventPlayerPayload }
func (PlayerData) Kind() EventKind         { return EventPlayerData }
func (Stale) Kind() EventKind              { return EventStale }
func (LobbyReady) Kind() EventKind         { return EventLobbyReady }
func (LobbyBalanced) Kind() EventKind      { return EventLobbyBalanced }
func (LeftLobby) Kind() EventKind          { return EventLeftLobby }
func (SwapCancelled) Kind() EventKind      { return EventSwapCancelled }
func (CountdownStarted) Kind() EventKind   { return EventCountdownStarted }
func (CountdownCancelled) Kind() EventKind { return EventCountdownCancelled }
func (GameStarting) Kind() EventKind       { return EventGameStarting }

func changeKind(c snapshot.Change) string {
	switch c.(type) {
	case snapshot.PlayerJoined:
		return "joined"
	case snapshot.PlayerLeft:
		return "left"
	case snapshot.PlayerMoved:
		return "moved"
	case snapshot.PlayersSwapped:
		return "swapped"
	default:
		return "slot"
	}
}

// Broadcaster fans events out to subscribers. A subscriber that is not keeping up is dropped
// and its channel closed.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextId int
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe returns the event channel and a function that unsubscribes.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextId
	b.nextId++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			close(sub)
			delete(b.subs, id)
		}
	}
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		if !util.TrySend(ch, e) {
			close(ch)
			delete(b.subs, id)
		}
	}
}

func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
	b.closed = true
}
