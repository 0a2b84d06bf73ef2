package balance

import (
	"math"
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTeams(team1, team2 []string) []Team {
	return []Team{{Number: 0, Players: team1}, {Number: 1, Players: team2}}
}

func applySwaps(teams []Team, swaps []Swap) map[string]int {
	assignment := make(map[string]int)
	for i, t := range teams {
		for _, p := range t.Players {
			assignment[p] = i
		}
	}
	for _, s := range swaps {
		assignment[s.A], assignment[s.B] = assignment[s.B], assignment[s.A]
	}
	return assignment
}

func TestBalanceScenarioFourPlayers(t *testing.T) {
	engine := NewEngine(1200)
	in := Input{
		Teams:   twoTeams([]string{"Ace", "Bea"}, []string{"Cid", "Dot"}),
		Ratings: map[string]float64{"Ace": 1000, "Bea": 900, "Cid": 700, "Dot": 400},
	}

	result, err := engine.Balance(in)
	require.NoError(t, err)

	two, ok := result.(TwoTeams)
	require.True(t, ok, "expected TwoTeams, got %T", result)

	assert.Equal(t, 100.0, two.EloDiff)
	assert.Contains(t, [][]string{{"Ace", "Dot"}, {"Bea", "Cid"}}, two.BestCombo)
	assert.Equal(t, []string{"Ace", "Dot"}, two.BestCombo, "lexicographically smallest combination wins ties")
	assert.Equal(t, 0, two.LeastSwapTeam)
	assert.Equal(t, []string{"Bea"}, two.Team1Swaps)
	assert.Equal(t, []string{"Dot"}, two.Team2Swaps)

	_, swaps := result.Plan()
	assert.Equal(t, []Swap{{A: "Bea", B: "Dot"}}, swaps)

	final := applySwaps(in.Teams, swaps)
	assert.Equal(t, final["Ace"], final["Dot"])
	assert.Equal(t, final["Bea"], final["Cid"])
}

func TestBalanceAlreadySplitEvenly(t *testing.T) {
	engine := NewEngine(1200)
	result, err := engine.Balance(Input{
		Teams:   twoTeams([]string{"Ace", "Dot"}, []string{"Bea", "Cid"}),
		Ratings: map[string]float64{"Ace": 1000, "Bea": 900, "Cid": 600, "Dot": 500},
	})
	require.NoError(t, err)

	two := result.(TwoTeams)
	assert.Equal(t, 0.0, two.EloDiff)
	assert.Len(t, two.Team1Swaps, 0)
	assert.Len(t, two.Team2Swaps, 0)
}

func TestBalanceEqualRatingsKeepCurrentTeams(t *testing.T) {
	engine := NewEngine(1200)

	for _, tc := range []struct {
		name    string
		teams   []Team
		ratings map[string]float64
	}{
		{"default ratings", twoTeams([]string{"Ace", "Cid"}, []string{"Bea", "Dot"}), nil},
		{"last in name order", twoTeams([]string{"Cid", "Dot"}, []string{"Ace", "Bea"}), nil},
		{"rated", twoTeams([]string{"Bea", "Dot"}, []string{"Ace", "Cid"}),
			map[string]float64{"Ace": 800, "Bea": 800, "Cid": 800, "Dot": 800}},
		{"three a side", twoTeams([]string{"A", "C", "E"}, []string{"B", "D", "F"}), nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			result, err := engine.Balance(Input{Teams: tc.teams, Ratings: tc.ratings})
			require.NoError(t, err)

			two := result.(TwoTeams)
			assert.Equal(t, 0.0, two.EloDiff)
			assert.Empty(t, two.Team1Swaps)
			assert.Empty(t, two.Team2Swaps)

			_, swaps := result.Plan()
			assert.Empty(t, swaps)
		})
	}
}

func TestBalanceTiePrefersFewerSwaps(t *testing.T) {
	engine := NewEngine(1200)
	// {Ace,Cid} and {Ace,Dot} both reach diff 100; only the later one matches a current team.
	in := Input{
		Teams:   twoTeams([]string{"Bea", "Cid"}, []string{"Ace", "Dot"}),
		Ratings: map[string]float64{"Ace": 1000, "Bea": 1000, "Cid": 500, "Dot": 300},
	}

	result, err := engine.Balance(in)
	require.NoError(t, err)

	two := result.(TwoTeams)
	assert.Equal(t, 100.0, two.EloDiff)
	assert.Equal(t, []string{"Ace", "Dot"}, two.BestCombo)
	assert.Equal(t, 1, two.LeastSwapTeam)
	assert.Empty(t, two.Team1Swaps)
	assert.Empty(t, two.Team2Swaps)
}

func TestBalanceFewerThanTwoTeamsIsNoop(t *testing.T) {
	engine := NewEngine(1200)

	result, err := engine.Balance(Input{Teams: twoTeams([]string{"Ace", "Bea"}, nil)})
	require.NoError(t, err)
	assert.Equal(t, AlreadyBalanced{}, result)

	combo, swaps := result.Plan()
	assert.True(t, combo.Empty())
	assert.Empty(t, swaps)
}

func TestBalanceInvalidInput(t *testing.T) {
	engine := NewEngine(1200)

	_, err := engine.Balance(Input{})
	assert.ErrorIs(t, err, ErrNoTeams)

	_, err = engine.Balance(Input{Teams: twoTeams([]string{"Ace"}, []string{"Ace"})})
	assert.ErrorIs(t, err, ErrInvalidRoster)

	_, err = engine.Balance(Input{Teams: twoTeams([]string{"A", "B", "C", "D"}, []string{"E"})})
	assert.ErrorIs(t, err, ErrUnbalancedSizes)
}

func TestBalanceTooManyPlayers(t *testing.T) {
	engine := NewEngine(1200)
	engine.MaxTwoTeamPlayers = 4

	_, err := engine.Balance(Input{Teams: twoTeams([]string{"A", "B", "C"}, []string{"D", "E", "F"})})
	assert.ErrorIs(t, err, ErrTooManyPlayers)
}

func TestBalanceDefaultRatingForMissing(t *testing.T) {
	engine := NewEngine(1000)
	result, err := engine.Balance(Input{
		Teams:   twoTeams([]string{"Ace", "Bea"}, []string{"Cid", "Dot"}),
		Ratings: map[string]float64{"Ace": 2000, "Bea": -1},
	})
	require.NoError(t, err)

	two := result.(TwoTeams)
	// 2000 + 1000 + 1000 + 1000: the best split puts Ace alone with any one player.
	assert.Equal(t, 500.0, two.EloDiff)
	assert.Equal(t, []string{"Ace", "Bea"}, two.BestCombo)
	assert.Empty(t, two.Team1Swaps)
}

func TestBalanceOddPlayerCount(t *testing.T) {
	engine := NewEngine(1200)
	in := Input{
		Teams:   twoTeams([]string{"A", "B", "C"}, []string{"D", "E"}),
		Ratings: map[string]float64{"A": 1500, "B": 1400, "C": 1300, "D": 1000, "E": 900},
	}

	result, err := engine.Balance(in)
	require.NoError(t, err)

	two := result.(TwoTeams)
	assert.Equal(t, 1, two.LeastSwapTeam, "only the two player team can receive a two player combination")
	assert.Len(t, two.BestCombo, 2)

	_, swaps := result.Plan()
	final := applySwaps(in.Teams, swaps)
	counts := map[int]int{}
	for _, team := range final {
		counts[team]++
	}
	assert.Equal(t, map[int]int{0: 3, 1: 2}, counts, "swaps keep team sizes")
}

func TestBalanceExcludedHostStaysInPlace(t *testing.T) {
	engine := NewEngine(1200)
	ratings := map[string]float64{"Ace": 1000, "Bea": 900, "Cid": 700, "Dot": 400}

	for _, host := range []string{"Ace", "Bea", "Cid", "Dot"} {
		t.Run(host, func(t *testing.T) {
			in := Input{
				Teams:    twoTeams([]string{"Ace", "Bea"}, []string{"Cid", "Dot"}),
				Ratings:  ratings,
				Excluded: host,
			}

			result, err := engine.Balance(in)
			require.NoError(t, err)

			two := result.(TwoTeams)
			assert.Equal(t, 100.0, two.EloDiff)
			assert.NotContains(t, two.Team1Swaps, host)
			assert.NotContains(t, two.Team2Swaps, host)

			_, swaps := result.Plan()
			final := applySwaps(in.Teams, swaps)
			assert.Equal(t, teamIndexOf(in.Teams, host), final[host])
		})
	}
}

func TestComplementSymmetry(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	players := []string{"A", "B", "C", "D", "E", "F"}

	for round := 0; round < 20; round++ {
		ratings := map[string]float64{}
		total := 0.0
		for _, p := range players {
			ratings[p] = float64(800 + rng.IntN(1200))
			total += ratings[p]
		}

		forEachCombination(len(players), 3, func(idx []int) {
			sum := 0.0
			for _, i := range idx {
				sum += ratings[players[i]]
			}
			assert.InDelta(t, math.Abs(total/2-sum), math.Abs(total/2-(total-sum)), 1e-9)
		})

		engine := NewEngine(1200)
		result, err := engine.Balance(Input{Teams: twoTeams(players[:3], players[3:]), Ratings: ratings})
		require.NoError(t, err)
		two := result.(TwoTeams)
		assert.Contains(t, two.BestCombo, "A", "the combination holding the first name is found before its complement")
	}
}

func TestForEachCombination(t *testing.T) {
	var got [][]int
	forEachCombination(4, 2, func(idx []int) {
		got = append(got, slices.Clone(idx))
	})
	assert.Equal(t, [][]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}, got)

	calls := 0
	forEachCombination(3, 0, func(idx []int) { calls++ })
	assert.Equal(t, 1, calls)

	calls = 0
	forEachCombination(2, 3, func(idx []int) { calls++ })
	assert.Equal(t, 0, calls)
}

func TestShuffleKeepsSizesAndHost(t *testing.T) {
	engine := NewEngine(1200)
	in := Input{
		Teams: []Team{
			{Number: 0, Players: []string{"A", "B"}},
			{Number: 1, Players: []string{"C", "D"}},
			{Number: 3, Players: []string{"E", "F"}},
		},
		Excluded: "C",
	}

	for seed := uint64(0); seed < 10; seed++ {
		result, err := engine.Shuffle(in, rand.New(rand.NewPCG(seed, seed)))
		require.NoError(t, err)

		combo, swaps := result.Plan()
		require.Len(t, combo, 3)
		for i, chunk := range combo {
			assert.Len(t, chunk, 2)
			assert.True(t, sort.StringsAreSorted(chunk))
			final := applySwaps(in.Teams, swaps)
			for _, p := range chunk {
				assert.Equal(t, i, final[p])
			}
		}
		assert.Contains(t, combo[1], "C")
	}
}
