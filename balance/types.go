// Package balance computes team rebalancing swaps. It is a pure computation and never
// touches a live lobby.
package balance

import (
	"errors"
	"fmt"
)

var (
	ErrNoTeams           = errors.New("no player teams")
	ErrInvalidRoster     = errors.New("player listed in more than one team")
	ErrTooManyPlayers    = errors.New("too many players to search")
	ErrUnbalancedSizes   = errors.New("team sizes cannot be balanced by swapping")
	ErrNoValidAssignment = errors.New("no grouping keeps the excluded player in place")
)

type Team struct {
	Number  int      `json:"number"`
	Players []string `json:"players"`
}

type Input struct {
	Teams   []Team             `json:"teams"`
	Ratings map[string]float64 `json:"ratings"`
	// Excluded names a player who must stay in its current team, usually the host.
	Excluded string `json:"excluded,omitempty"`
}

// Swap exchanges the teams of A and B.
type Swap struct {
	A string `json:"a"`
	B string `json:"b"`
}

func (s Swap) String() string {
	return fmt.Sprintf("%s <-> %s", s.A, s.B)
}

// Combo is a target grouping, one sorted name list per team.
type Combo [][]string

func (c Combo) Empty() bool {
	return len(c) == 0
}

// Result is one of AlreadyBalanced, TwoTeams or MoreTeams.
type Result interface {
	Plan() (Combo, []Swap)
}

type AlreadyBalanced struct{}

func (AlreadyBalanced) Plan() (Combo, []Swap) {
	return nil, nil
}

type TwoTeams struct {
	// BestCombo is the final membership of the LeastSwapTeam.
	BestCombo []string `json:"bestCombo"`
	// Team1Swaps[i] trades places with Team2Swaps[i].
	Team1Swaps    []string `json:"team1Swaps"`
	Team2Swaps    []string `json:"team2Swaps"`
	LeastSwapTeam int      `json:"leastSwapTeam"`
	// EloDiff is the distance between the BestCombo rating and half of the total rating.
	EloDiff float64 `json:"eloDiff"`
}

func (r TwoTeams) Plan() (Combo, []Swap) {
	swaps := make([]Swap, 0, len(r.Team1Swaps))
	for i := range r.Team1Swaps {
		swaps = append(swaps, Swap{A: r.Team1Swaps[i], B: r.Team2Swaps[i]})
	}
	return Combo{r.BestCombo}, swaps
}

type MoreTeams struct {
	Swaps     []Swap `json:"swaps"`
	BestCombo Combo  `json:"bestCombo"`
	// MaxDiff is the worst single team distance from its fair share.
	MaxDiff float64 `json:"maxDiff"`
}

func (r MoreTeams) Plan() (Combo, []Swap) {
	return r.BestCombo, r.Swaps
}
