// Package rating looks up per-player skill records from a pluggable source.
package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const DefaultRating = 1200

var (
	ErrNotFound = errors.New("player has no rating record")
	ErrDisabled = errors.New("rating provider is off")
)

// Record is the rating state of one player for one map. A negative Rating means "not fetched".
type Record struct {
	Played     int     `json:"played"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Rating     float64 `json:"rating"`
	Rank       int     `json:"rank"`
	LastChange float64 `json:"lastChange"`
}

func (r *Record) Fetched() bool {
	return r != nil && r.Rating >= 0
}

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (r *Record) String() string {
	if r == nil {
		return "Record { <nil> }"
	}
	return fmt.Sprintf(
		"Record { Rating=%.0f, Rank=%d, Played=%d, Wins=%d, Losses=%d }",
		r.Rating, r.Rank, r.Played, r.Wins, r.Losses,
	)
}

// Unranked is the record given to players the provider does not know.
func Unranked(rating float64) *Record {
	return &Record{Rating: rating}
}

type Query struct {
	Player string
	MapKey string
	Region string
}

func (q Query) key() string {
	return strings.ToLower(q.Player) + "\x00" + q.MapKey + "\x00" + q.Region
}

type Provider interface {
	Name() string
	Lookup(ctx context.Context, q Query) (*Record, error)
}

// Requirements are the admission thresholds a player must meet, zero values disable a check.
type Requirements struct {
	MinGames  int
	MinRating float64
	MinRank   int
	MinWins   int
}

func (r Requirements) Enabled() bool {
	return r.MinGames > 0 || r.MinRating > 0 || r.MinRank > 0 || r.MinWins > 0
}

// Check returns the reason a record fails the requirements, or an empty string.
// Rank is "lower is better" and an unranked player (rank 0) fails a rank requirement.
func (r Requirements) Check(rec *Record) string {
	if rec == nil {
		return "no rating record"
	}
	if r.MinGames > 0 && rec.Played < r.MinGames {
		return fmt.Sprintf("played %d of %d required games", rec.Played, r.MinGames)
	}
	if r.MinRating > 0 && rec.Rating < r.MinRating {
		return fmt.Sprintf("rating %.0f below %.0f", rec.Rating, r.MinRating)
	}
	if r.MinRank > 0 && (rec.Rank <= 0 || rec.Rank > r.MinRank) {
		return fmt.Sprintf("rank %d outside top %d", rec.Rank, r.MinRank)
	}
	if r.MinWins > 0 && rec.Wins < r.MinWins {
		return fmt.Sprintf("%d of %d required wins", rec.Wins, r.MinWins)
	}
	return ""
}

type Off struct{}

func (Off) Name() string {
	return "off"
}

func (Off) Lookup(context.Context, Query) (*Record, error) {
	return nil, ErrDisabled
}

func IsOff(p Provider) bool {
	if p == nil {
		return true
	}
	_, ok := p.(Off)
	return ok
}
