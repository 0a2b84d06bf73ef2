package snapshot

import "sort"

// Apply merges an incremental slot payload. Slots missing from the payload keep their state.
func (l *Lobby) Apply(slots []Slot) []Change {
	next := make(map[int]Slot, len(l.slots))
	for n, s := range l.slots {
		next[n] = s
	}
	for _, s := range slots {
		next[s.Number] = normalize(s)
	}
	return l.replace(next)
}

// ApplySetup replaces metadata, teams and the whole slot roster.
func (l *Lobby) ApplySetup(setup Setup) []Change {
	l.meta = setup.Meta
	l.setTeams(setup.Teams)

	next := make(map[int]Slot, len(setup.Slots))
	for _, s := range setup.Slots {
		next[s.Number] = normalize(s)
	}
	return l.replace(next)
}

func positions(slots map[int]Slot) map[string]int {
	result := make(map[string]int)
	for n, s := range slots {
		if s.Occupied() {
			result[s.Player] = n
		}
	}
	return result
}

func sortedBySlot(players map[string]int) []string {
	names := make([]string, 0, len(players))
	for p := range players {
		names = append(names, p)
	}
	sort.Slice(names, func(i, j int) bool {
		return players[names[i]] < players[names[j]]
	})
	return names
}

// replace swaps in the next slot map and reports the difference as changes ordered:
// departures, moves and swaps, joins, then plain slot changes.
func (l *Lobby) replace(next map[int]Slot) []Change {
	before := positions(l.slots)
	after := positions(next)

	var changes []Change

	for _, p := range sortedBySlot(before) {
		if _, ok := after[p]; !ok {
			changes = append(changes, PlayerLeft{Player: p, Slot: before[p]})
			delete(l.extras, p)
		}
	}

	paired := make(map[string]bool)
	for _, p := range sortedBySlot(before) {
		to, stays := after[p]
		from := before[p]
		if !stays || to == from || paired[p] {
			continue
		}

		// The previous occupant of our new slot went exactly to our old slot.
		if prev, ok := l.slots[to]; ok && prev.Occupied() && !paired[prev.Player] {
			if back, ok := after[prev.Player]; ok && back == from {
				paired[p] = true
				paired[prev.Player] = true
				changes = append(changes, PlayersSwapped{A: p, B: prev.Player, SlotA: from, SlotB: to})
				continue
			}
		}

		changes = append(changes, PlayerMoved{Player: p, From: from, To: to})
	}

	for _, p := range sortedBySlot(after) {
		if _, ok := before[p]; !ok {
			changes = append(changes, PlayerJoined{Player: p, Slot: after[p]})
		}
	}

	numbers := make([]int, 0, len(next))
	for n := range next {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, n := range numbers {
		s := next[n]
		prev, existed := l.slots[n]
		if existed && prev.sameState(s) {
			continue
		}
		// Occupant changes are already reported as player events.
		if existed && prev.Player != s.Player && (prev.Occupied() || s.Occupied()) {
			continue
		}
		if !existed && s.Occupied() {
			continue
		}
		changes = append(changes, SlotChanged{Slot: s})
	}

	l.slots = next
	return changes
}
