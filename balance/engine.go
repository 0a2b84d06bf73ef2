package balance

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"
)

const (
	DefaultMaxTwoTeamPlayers   = 24
	DefaultMaxMoreTeamsPlayers = 12

	epsilon = 1e-9
)

type Engine struct {
	DefaultRating       float64
	MaxTwoTeamPlayers   int
	MaxMoreTeamsPlayers int
}

func NewEngine(defaultRating float64) *Engine {
	return &Engine{
		DefaultRating:       defaultRating,
		MaxTwoTeamPlayers:   DefaultMaxTwoTeamPlayers,
		MaxMoreTeamsPlayers: DefaultMaxMoreTeamsPlayers,
	}
}

func (e *Engine) rating(in Input, player string) float64 {
	if r, ok := in.Ratings[player]; ok && r >= 0 {
		return r
	}
	return e.DefaultRating
}

// validate returns every considered player sorted by name and the number of non-empty teams.
func validate(in Input) ([]string, int, error) {
	if len(in.Teams) == 0 {
		return nil, 0, ErrNoTeams
	}

	seen := make(map[string]bool)
	nonEmpty := 0
	for _, t := range in.Teams {
		if len(t.Players) > 0 {
			nonEmpty++
		}
		for _, p := range t.Players {
			if seen[p] {
				return nil, 0, fmt.Errorf("%w: %s", ErrInvalidRoster, p)
			}
			seen[p] = true
		}
	}

	players := make([]string, 0, len(seen))
	for p := range seen {
		players = append(players, p)
	}
	sort.Strings(players)
	return players, nonEmpty, nil
}

// Balance finds the grouping with the smallest rating deviation and the swaps leading to it.
func (e *Engine) Balance(in Input) (Result, error) {
	players, nonEmpty, err := validate(in)
	if err != nil {
		return nil, err
	}

	if nonEmpty < 2 {
		return AlreadyBalanced{}, nil
	}

	if len(in.Teams) == 2 {
		return e.balanceTwoTeams(in, players)
	}
	return e.balanceMoreTeams(in, players)
}

// Shuffle picks a random grouping that keeps every team size and the excluded player in place.
func (e *Engine) Shuffle(in Input, rng *rand.Rand) (Result, error) {
	players, nonEmpty, err := validate(in)
	if err != nil {
		return nil, err
	}

	if nonEmpty < 2 {
		return AlreadyBalanced{}, nil
	}

	pinnedTeam := -1
	pool := players
	if in.Excluded != "" {
		if idx := teamIndexOf(in.Teams, in.Excluded); idx >= 0 {
			pinnedTeam = idx
			pool = slices.DeleteFunc(slices.Clone(players), func(p string) bool { return p == in.Excluded })
		}
	}

	shuffled := slices.Clone(pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	chunks := make(Combo, len(in.Teams))
	next := 0
	for i, t := range in.Teams {
		size := len(t.Players)
		if i == pinnedTeam {
			chunks[i] = append(chunks[i], in.Excluded)
			size--
		}
		chunks[i] = append(chunks[i], shuffled[next:next+size]...)
		sort.Strings(chunks[i])
		next += size
	}

	return MoreTeams{
		Swaps:     swapsTowards(in.Teams, chunks),
		BestCombo: chunks,
		MaxDiff:   e.maxDeviation(in, chunks),
	}, nil
}

func teamIndexOf(teams []Team, player string) int {
	for i, t := range teams {
		if slices.Contains(t.Players, player) {
			return i
		}
	}
	return -1
}

func (e *Engine) maxDeviation(in Input, chunks Combo) float64 {
	total := 0.0
	for _, chunk := range chunks {
		for _, p := range chunk {
			total += e.rating(in, p)
		}
	}

	fair := total / float64(len(chunks))
	worst := 0.0
	for _, chunk := range chunks {
		sum := 0.0
		for _, p := range chunk {
			sum += e.rating(in, p)
		}
		worst = math.Max(worst, math.Abs(fair-sum))
	}
	return worst
}

// swapsTowards walks every team in order and pairs each player missing from it with a member
// that does not belong there, updating a scratch assignment as it goes.
func swapsTowards(teams []Team, chunks Combo) []Swap {
	scratch := make(map[string]int)
	for i, t := range teams {
		for _, p := range t.Players {
			scratch[p] = i
		}
	}

	swaps := make([]Swap, 0)
	for i := range teams {
		target := make(map[string]bool, len(chunks[i]))
		for _, p := range chunks[i] {
			target[p] = true
		}

		for _, p := range chunks[i] {
			if scratch[p] == i {
				continue
			}

			outgoing := ""
			for _, q := range sortedMembers(scratch, i) {
				if !target[q] {
					outgoing = q
					break
				}
			}
			if outgoing == "" {
				// Sizes are preserved by construction, this only happens on inconsistent input.
				continue
			}

			swaps = append(swaps, Swap{A: p, B: outgoing})
			scratch[outgoing] = scratch[p]
			scratch[p] = i
		}
	}
	return swaps
}

func sortedMembers(scratch map[string]int, team int) []string {
	var members []string
	for p, t := range scratch {
		if t == team {
			members = append(members, p)
		}
	}
	sort.Strings(members)
	return members
}
