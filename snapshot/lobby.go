package snapshot

import (
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
	"lobby-autohost/rating"
)

type playerExtra struct {
	record  *rating.Record
	cleared bool
}

// Lobby is not safe for concurrent use, it is owned by the reconciler loop.
type Lobby struct {
	id     string
	meta   Meta
	teams  []Team
	slots  map[int]Slot
	extras map[string]playerExtra
}

func New(setup Setup) *Lobby {
	l := &Lobby{
		id:     uuid.NewString(),
		slots:  make(map[int]Slot, len(setup.Slots)),
		extras: make(map[string]playerExtra),
	}
	l.meta = setup.Meta
	l.setTeams(setup.Teams)
	for _, s := range setup.Slots {
		l.slots[s.Number] = normalize(s)
	}
	return l
}

func normalize(s Slot) Slot {
	if s.Status != SlotPlayer {
		s.Player = ""
	}
	s.Extra = nil
	s.Cleared = false
	return s
}

func (l *Lobby) setTeams(teams []Team) {
	l.teams = slices.Clone(teams)
	sort.Slice(l.teams, func(i, j int) bool {
		return l.teams[i].Number < l.teams[j].Number
	})
}

func (l *Lobby) Id() string {
	return l.id
}

func (l *Lobby) Meta() Meta {
	return l.meta
}

func (l *Lobby) Teams() []Team {
	return slices.Clone(l.teams)
}

func (l *Lobby) Team(number int) (Team, bool) {
	for _, t := range l.teams {
		if t.Number == number {
			return t, true
		}
	}
	return Team{}, false
}

func (l *Lobby) slotNumbers() []int {
	numbers := make([]int, 0, len(l.slots))
	for n := range l.slots {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func (l *Lobby) decorate(s Slot) Slot {
	if extra, ok := l.extras[s.Player]; ok && s.Occupied() {
		s.Extra = extra.record.Clone()
		s.Cleared = extra.cleared
	}
	return s
}

// Slots returns copies ordered by slot number.
func (l *Lobby) Slots() []Slot {
	result := make([]Slot, 0, len(l.slots))
	for _, n := range l.slotNumbers() {
		result = append(result, l.decorate(l.slots[n]))
	}
	return result
}

func (l *Lobby) Slot(number int) (Slot, bool) {
	s, ok := l.slots[number]
	if !ok {
		return Slot{}, false
	}
	return l.decorate(s), true
}

func (l *Lobby) SlotOf(player string) (Slot, bool) {
	for _, n := range l.slotNumbers() {
		s := l.slots[n]
		if s.Occupied() && s.Player == player {
			return l.decorate(s), true
		}
	}
	return Slot{}, false
}

func (l *Lobby) HasPlayer(player string) bool {
	_, ok := l.SlotOf(player)
	return ok
}

func (l *Lobby) isSpectatorTeam(number int) bool {
	t, ok := l.Team(number)
	return ok && t.Spectator
}

// Players returns every human occupant in slot order.
func (l *Lobby) Players() []string {
	var players []string
	for _, n := range l.slotNumbers() {
		if s := l.slots[n]; s.Occupied() {
			players = append(players, s.Player)
		}
	}
	return players
}

func (l *Lobby) NonSpectators() []string {
	var players []string
	for _, n := range l.slotNumbers() {
		s := l.slots[n]
		if s.Occupied() && !l.isSpectatorTeam(s.Team) {
			players = append(players, s.Player)
		}
	}
	return players
}

// Rosters returns the non-spectator teams in team order, empty teams included.
func (l *Lobby) Rosters() []Roster {
	var rosters []Roster
	for _, t := range l.teams {
		if t.Spectator {
			continue
		}
		roster := Roster{Team: t, Players: []string{}}
		for _, n := range l.slotNumbers() {
			s := l.slots[n]
			if s.Team != t.Number {
				continue
			}
			if s.Status == SlotOpen || s.Occupied() {
				roster.Capacity++
			}
			if s.Occupied() {
				roster.Players = append(roster.Players, s.Player)
			}
		}
		rosters = append(rosters, roster)
	}
	return rosters
}

func (l *Lobby) HasTeams() bool {
	for _, t := range l.teams {
		if !t.Spectator {
			return true
		}
	}
	return false
}

func (l *Lobby) OpenSlots() []int {
	var open []int
	for _, n := range l.slotNumbers() {
		if l.slots[n].Status == SlotOpen {
			open = append(open, n)
		}
	}
	return open
}

// IsFull reports whether no open slot is left on a non-spectator team.
func (l *Lobby) IsFull() bool {
	for _, n := range l.OpenSlots() {
		if !l.isSpectatorTeam(l.slots[n].Team) {
			return false
		}
	}
	return true
}

// Assignment maps every non-spectator player to its team number.
func (l *Lobby) Assignment() map[string]int {
	result := make(map[string]int)
	for _, s := range l.slots {
		if s.Occupied() && !l.isSpectatorTeam(s.Team) {
			result[s.Player] = s.Team
		}
	}
	return result
}

// Search resolves a partial, case-insensitive name. An exact match wins over prefix matches,
// prefix matches win over substring matches.
func (l *Lobby) Search(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var exact, prefix, contains []string
	for _, p := range l.Players() {
		name := strings.ToLower(p)
		switch {
		case name == query:
			exact = append(exact, p)
		case strings.HasPrefix(name, query):
			prefix = append(prefix, p)
		case strings.Contains(name, query):
			contains = append(contains, p)
		}
	}

	switch {
	case len(exact) > 0:
		return exact
	case len(prefix) > 0:
		return prefix
	default:
		return contains
	}
}

// SetExtra attaches a rating record to a present player. Returns false when the player is gone.
func (l *Lobby) SetExtra(player string, rec *rating.Record, cleared bool) bool {
	if !l.HasPlayer(player) {
		return false
	}
	l.extras[player] = playerExtra{record: rec.Clone(), cleared: cleared}
	return true
}

// ClearExtras forgets every attached record, used when the records no longer apply.
func (l *Lobby) ClearExtras() {
	clear(l.extras)
}

func (l *Lobby) Extra(player string) (*rating.Record, bool) {
	extra, ok := l.extras[player]
	if !ok {
		return nil, false
	}
	return extra.record.Clone(), extra.cleared
}

func (l *Lobby) View() View {
	return View{
		Id:    l.id,
		Meta:  l.meta,
		Teams: l.Teams(),
		Slots: l.Slots(),
	}
}
