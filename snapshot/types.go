// Package snapshot keeps the in-memory model of one hosted lobby and turns raw slot payloads
// into change events.
package snapshot

import (
	"fmt"
	"lobby-autohost/rating"
)

type SlotStatus = string

const (
	SlotOpen     SlotStatus = "open"
	SlotClosed   SlotStatus = "closed"
	SlotComputer SlotStatus = "computer"
	SlotPlayer   SlotStatus = "player"
)

type Slot struct {
	Number  int            `json:"slot"`
	Status  SlotStatus     `json:"status"`
	Team    int            `json:"team"`
	Player  string         `json:"player,omitempty"`
	Extra   *rating.Record `json:"extra,omitempty"`
	Cleared bool           `json:"cleared,omitempty"`
}

func (s Slot) Occupied() bool {
	return s.Status == SlotPlayer && s.Player != ""
}

func (s Slot) String() string {
	return fmt.Sprintf("Slot { Number=%d, Status=%s, Team=%d, Player=%q }", s.Number, s.Status, s.Team, s.Player)
}

// sameState compares what the game client reports, ignoring the locally attached extra data.
func (s Slot) sameState(other Slot) bool {
	return s.Number == other.Number &&
		s.Status == other.Status &&
		s.Team == other.Team &&
		s.Player == other.Player
}

type Team struct {
	Number    int    `json:"number"`
	Name      string `json:"name"`
	Spectator bool   `json:"spectator,omitempty"`
}

type Meta struct {
	Name   string `json:"name"`
	Map    string `json:"map"`
	Region string `json:"region,omitempty"`
	IsHost bool   `json:"isHost"`
	Self   string `json:"self"`
}

// Setup is the full payload sent when the client enters a lobby.
type Setup struct {
	Meta  Meta   `json:"meta"`
	Teams []Team `json:"teams"`
	Slots []Slot `json:"slots"`
}

func (s Setup) PlayerCount() int {
	count := 0
	for _, slot := range s.Slots {
		if slot.Occupied() {
			count++
		}
	}
	return count
}

// Roster is the player view of one non-spectator team.
type Roster struct {
	Team     Team     `json:"team"`
	Players  []string `json:"players"`
	Capacity int      `json:"capacity"`
}

type View struct {
	Id    string `json:"id"`
	Meta  Meta   `json:"meta"`
	Teams []Team `json:"teams"`
	Slots []Slot `json:"slots"`
}

// Change is one of PlayerJoined, PlayerLeft, PlayerMoved, PlayersSwapped or SlotChanged.
type Change interface {
	isChange()
}

type PlayerJoined struct {
	Player string `json:"player"`
	Slot   int    `json:"slot"`
}

type PlayerLeft struct {
	Player string `json:"player"`
	Slot   int    `json:"slot"`
}

type PlayerMoved struct {
	Player string `json:"player"`
	From   int    `json:"from"`
	To     int    `json:"to"`
}

type PlayersSwapped struct {
	A     string `json:"a"`
	B     string `json:"b"`
	SlotA int    `json:"slotA"`
	SlotB int    `json:"slotB"`
}

type SlotChanged struct {
	Slot Slot `json:"slot"`
}

func (PlayerJoined) isChange()   {}
func (PlayerLeft) isChange()     {}
func (PlayerMoved) isChange()    {}
func (PlayersSwapped) isChange() {}
func (SlotChanged) isChange()    {}
