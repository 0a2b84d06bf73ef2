package rating

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"strings"
)

// Synthetic derives a stable fake record from the player name. Useful for local testing
// of the balance flow without a real ladder.
type Synthetic struct{}

func (Synthetic) Name() string {
	return "synthetic"
}

func (Synthetic) Lookup(ctx context.Context, q Query) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToLower(q.Player)))
	_, _ = h.Write([]byte(q.MapKey))
	rng := rand.New(rand.NewPCG(h.Sum64(), 0x5eed))

	played := rng.IntN(400)
	wins := 0
	if played > 0 {
		wins = rng.IntN(played + 1)
	}

	return &Record{
		Played:     played,
		Wins:       wins,
		Losses:     played - wins,
		Rating:     float64(800 + rng.IntN(1400)),
		Rank:       1 + rng.IntN(5000),
		LastChange: float64(rng.IntN(61) - 30),
	}, nil
}
