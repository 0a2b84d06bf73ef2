package main

import (
	"fmt"
	"lobby-autohost/hostproto"
	"lobby-autohost/snapshot"
	"sort"
	"strings"
	"sync"
)

// emulatedLobby mirrors what the game client would hold and reacts to autohost commands
// the way the lobby and the map script do.
type emulatedLobby struct {
	mu    sync.Mutex
	setup snapshot.Setup
	slots map[int]snapshot.Slot
}

func newEmulatedLobby() *emulatedLobby {
	return &emulatedLobby{slots: make(map[int]snapshot.Slot)}
}

func (l *emulatedLobby) load(setup snapshot.Setup) *hostproto.LobbySetupMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.setup = setup
	l.slots = make(map[int]snapshot.Slot, len(setup.Slots))
	for _, slot := range setup.Slots {
		l.slots[slot.Number] = slot
	}
	return hostproto.NewLobbySetupMessage(setup)
}

func (l *emulatedLobby) update(slots ...snapshot.Slot) *hostproto.SlotUpdateMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, slot := range slots {
		l.slots[slot.Number] = slot
	}
	return hostproto.NewSlotUpdateMessage(slots...)
}

func (l *emulatedLobby) slot(number int) (snapshot.Slot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot, ok := l.slots[number]
	return slot, ok
}

func (l *emulatedLobby) findPlayer(name string) (snapshot.Slot, bool) {
	for _, slot := range l.slots {
		if slot.Occupied() && strings.EqualFold(slot.Player, name) {
			return slot, true
		}
	}
	return snapshot.Slot{}, false
}

// apply returns the messages the client sends back in reaction to cmd.
func (l *emulatedLobby) apply(cmd hostproto.Message) []hostproto.Inbound {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch msg := cmd.(type) {
	case *hostproto.SendChatMessage:
		return l.applyChat(msg.Text)
	case *hostproto.SetTeamMessage:
		slot, ok := l.slots[msg.Slot]
		if !ok || slot.Team == msg.Team {
			return nil
		}
		slot.Team = msg.Team
		return l.changed(slot)
	case *hostproto.OpenSlotMessage:
		return l.setStatus(msg.Slot, snapshot.SlotOpen)
	case *hostproto.CloseSlotMessage:
		return l.setStatus(msg.Slot, snapshot.SlotClosed)
	case *hostproto.KickSlotMessage:
		return l.setStatus(msg.Slot, snapshot.SlotOpen)
	case *hostproto.BanSlotMessage:
		slot, ok := l.slots[msg.Slot]
		if !ok || slot.Player != msg.Player {
			return nil
		}
		return l.setStatus(msg.Slot, snapshot.SlotOpen)
	case *hostproto.LeaveLobbyMessage:
		return []hostproto.Inbound{hostproto.NewLobbyLeftMessage("left by autohost")}
	}
	return nil
}

func (l *emulatedLobby) applyChat(text string) []hostproto.Inbound {
	fields := strings.Fields(text)
	if len(fields) != 3 || fields[0] != "!swap" {
		return nil
	}

	a, okA := l.findPlayer(fields[1])
	b, okB := l.findPlayer(fields[2])
	if !okA || !okB {
		return nil
	}

	a.Team, b.Team = b.Team, a.Team
	a.Number, b.Number = b.Number, a.Number
	changes := l.changed(a, b)
	return append([]hostproto.Inbound{hostproto.NewSwapNoticeMessage(a.Player, b.Player)}, changes...)
}

func (l *emulatedLobby) setStatus(number int, status snapshot.SlotStatus) []hostproto.Inbound {
	slot, ok := l.slots[number]
	if !ok {
		return nil
	}
	if status != snapshot.SlotPlayer {
		slot.Player = ""
	}
	slot.Status = status
	return l.changed(slot)
}

func (l *emulatedLobby) changed(slots ...snapshot.Slot) []hostproto.Inbound {
	for _, slot := range slots {
		l.slots[slot.Number] = slot
	}
	return []hostproto.Inbound{hostproto.NewSlotUpdateMessage(slots...)}
}

func (l *emulatedLobby) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	numbers := make([]int, 0, len(l.slots))
	for number := range l.slots {
		numbers = append(numbers, number)
	}
	sort.Ints(numbers)

	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s\n", l.setup.Meta.Name, l.setup.Meta.Map)
	for _, number := range numbers {
		fmt.Fprintf(&b, "  %s\n", l.slots[number])
	}
	return b.String()
}
