package balance

import (
	"fmt"
	"math"
	"slices"
)

type chunkSearch struct {
	ratings  map[string]float64
	sizes    []int
	fair     float64
	excluded string
	pinned   int
	teamOf   map[string]int

	current       Combo
	best          Combo
	bestWorst     float64
	bestMisplaced int
}

// balanceMoreTeams searches every split of the players into groups of the current team sizes,
// minimizing the worst single team distance from total/numTeams.
func (e *Engine) balanceMoreTeams(in Input, players []string) (Result, error) {
	if len(players) > e.MaxMoreTeamsPlayers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPlayers, len(players), e.MaxMoreTeamsPlayers)
	}

	s := &chunkSearch{
		ratings:   make(map[string]float64, len(players)),
		sizes:     make([]int, len(in.Teams)),
		excluded:  in.Excluded,
		pinned:    -1,
		current:   make(Combo, len(in.Teams)),
		bestWorst: math.Inf(1),
		teamOf:    make(map[string]int, len(players)),
	}

	total := 0.0
	for _, p := range players {
		s.ratings[p] = e.rating(in, p)
		total += s.ratings[p]
	}
	s.fair = total / float64(len(in.Teams))

	for i, t := range in.Teams {
		s.sizes[i] = len(t.Players)
		for _, p := range t.Players {
			s.teamOf[p] = i
		}
	}
	if in.Excluded != "" {
		s.pinned = teamIndexOf(in.Teams, in.Excluded)
	}

	s.search(0, players, 0)
	if s.best == nil {
		return nil, ErrNoValidAssignment
	}

	return MoreTeams{
		Swaps:     swapsTowards(in.Teams, s.best),
		BestCombo: s.best,
		MaxDiff:   s.bestWorst,
	}, nil
}

// search fills team `team` with every combination of the remaining players in lexicographic
// order. worst is the largest deviation among already filled teams, branches that cannot reach
// the best found so far are cut. Equal worst deviations prefer fewer misplaced players.
func (s *chunkSearch) search(team int, remaining []string, worst float64) {
	if team == len(s.sizes) {
		misplaced := s.misplaced()
		better := worst < s.bestWorst-epsilon ||
			(math.Abs(worst-s.bestWorst) <= epsilon && misplaced < s.bestMisplaced)
		if better {
			s.bestWorst = worst
			s.bestMisplaced = misplaced
			s.best = make(Combo, len(s.current))
			for i, chunk := range s.current {
				s.best[i] = slices.Clone(chunk)
			}
		}
		return
	}

	forEachCombination(len(remaining), s.sizes[team], func(idx []int) {
		chunk := make([]string, len(idx))
		sum := 0.0
		for j, i := range idx {
			chunk[j] = remaining[i]
			sum += s.ratings[remaining[i]]
		}

		if s.pinned >= 0 && (team == s.pinned) != slices.Contains(chunk, s.excluded) {
			return
		}

		teamWorst := math.Max(worst, math.Abs(s.fair-sum))
		if teamWorst > s.bestWorst+epsilon {
			return
		}

		rest := make([]string, 0, len(remaining)-len(chunk))
		for _, p := range remaining {
			if !slices.Contains(chunk, p) {
				rest = append(rest, p)
			}
		}

		s.current[team] = chunk
		s.search(team+1, rest, teamWorst)
	})
}

func (s *chunkSearch) misplaced() int {
	count := 0
	for i, chunk := range s.current {
		for _, p := range chunk {
			if s.teamOf[p] != i {
				count++
			}
		}
	}
	return count
}
