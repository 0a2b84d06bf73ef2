package balance

import (
	"fmt"
	"math"
	"slices"
	"sort"
)

type assignment struct {
	anchor int // index of the team that receives the combination
	swaps  int
}

func (e *Engine) balanceTwoTeams(in Input, players []string) (Result, error) {
	n := len(players)
	if n > e.MaxTwoTeamPlayers {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPlayers, n, e.MaxTwoTeamPlayers)
	}

	k := n / 2
	sizes := [2]int{len(in.Teams[0].Players), len(in.Teams[1].Players)}
	if sizes[0] != k && sizes[1] != k {
		return nil, fmt.Errorf("%w: %d vs %d", ErrUnbalancedSizes, sizes[0], sizes[1])
	}

	ratings := make([]float64, n)
	total := 0.0
	for i, p := range players {
		ratings[i] = e.rating(in, p)
		total += ratings[i]
	}
	target := total / 2

	excludedTeam := -1
	if in.Excluded != "" {
		excludedTeam = teamIndexOf(in.Teams, in.Excluded)
	}

	members := [2]map[string]bool{toSet(in.Teams[0].Players), toSet(in.Teams[1].Players)}

	bestDev := math.Inf(1)
	var best []string
	var bestAssignment assignment

	// Combinations come out in lexicographic order of the name-sorted players.
	// Among equal deviations the fewest swaps win, then the earliest combination.
	forEachCombination(n, k, func(idx []int) {
		sum := 0.0
		for _, i := range idx {
			sum += ratings[i]
		}
		dev := math.Abs(target - sum)
		tied := math.Abs(dev-bestDev) <= epsilon
		if !tied && dev > bestDev {
			return
		}
		if tied && bestAssignment.swaps == 0 {
			return
		}

		combo := make([]string, len(idx))
		for j, i := range idx {
			combo[j] = players[i]
		}

		a, ok := pickAssignment(combo, sizes, members, k, in.Excluded, excludedTeam)
		if !ok || (tied && a.swaps >= bestAssignment.swaps) {
			return
		}

		bestDev = dev
		best = combo
		bestAssignment = a
	})

	if best == nil {
		return nil, ErrNoValidAssignment
	}

	anchor := bestAssignment.anchor
	other := 1 - anchor
	comboSet := toSet(best)

	// Players leaving the anchored team and players joining it, paired positionally.
	var leaving, joining []string
	for _, p := range in.Teams[anchor].Players {
		if !comboSet[p] {
			leaving = append(leaving, p)
		}
	}
	for _, p := range in.Teams[other].Players {
		if comboSet[p] {
			joining = append(joining, p)
		}
	}
	sort.Strings(leaving)
	sort.Strings(joining)

	result := TwoTeams{
		BestCombo:     best,
		Team1Swaps:    []string{},
		Team2Swaps:    []string{},
		LeastSwapTeam: in.Teams[anchor].Number,
		EloDiff:       bestDev,
	}
	if anchor == 0 {
		result.Team1Swaps = append(result.Team1Swaps, leaving...)
		result.Team2Swaps = append(result.Team2Swaps, joining...)
	} else {
		result.Team1Swaps = append(result.Team1Swaps, joining...)
		result.Team2Swaps = append(result.Team2Swaps, leaving...)
	}

	return result, nil
}

// pickAssignment chooses which team receives the combination: fewer swaps first, then the larger
// team, then the team that keeps the excluded (host) player. With an excluded player the
// host's team is always anchored to the side containing the host.
func pickAssignment(
	combo []string,
	sizes [2]int,
	members [2]map[string]bool,
	k int,
	excluded string,
	excludedTeam int,
) (assignment, bool) {
	inCombo := slices.Contains(combo, excluded)

	var candidates []assignment
	for anchor := 0; anchor < 2; anchor++ {
		if sizes[anchor] != k {
			continue
		}

		if excludedTeam >= 0 {
			hostStays := (anchor == excludedTeam) == inCombo
			if !hostStays {
				continue
			}
		}

		swaps := 0
		for _, p := range combo {
			if !members[anchor][p] {
				swaps++
			}
		}
		candidates = append(candidates, assignment{anchor: anchor, swaps: swaps})
	}

	if len(candidates) == 0 {
		return assignment{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.swaps != b.swaps {
			return a.swaps < b.swaps
		}
		if sizes[a.anchor] != sizes[b.anchor] {
			return sizes[a.anchor] > sizes[b.anchor]
		}
		return a.anchor == excludedTeam
	})
	return candidates[0], true
}

// forEachCombination calls fn with every k-subset of [0, n) in lexicographic order.
// The slice passed to fn is reused between calls.
func forEachCombination(n, k int, fn func(idx []int)) {
	if k < 0 || k > n {
		return
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}

	for {
		fn(idx)

		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}

		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func toSet(players []string) map[string]bool {
	set := make(map[string]bool, len(players))
	for _, p := range players {
		set[p] = true
	}
	return set
}
