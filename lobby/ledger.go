package lobby

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	ErrSelfSwap      = errors.New("a player cannot swap with themselves")
	ErrDuplicateSwap = errors.New("swap is already pending")
)

// ExpectedSwap is a swap we asked the game client for and whose confirmation is still due.
type ExpectedSwap struct {
	Pair     [2]string `json:"pair"`
	Balance  bool      `json:"balance"`
	IssuedAt time.Time `json:"issuedAt"`
}

func NewExpectedSwap(a string, b string, balance bool) ExpectedSwap {
	return ExpectedSwap{
		Pair:     sortedPair(a, b),
		Balance:  balance,
		IssuedAt: time.Now(),
	}
}

func sortedPair(a string, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}

func (s ExpectedSwap) Involves(player string) bool {
	return s.Pair[0] == player || s.Pair[1] == player
}

func (s ExpectedSwap) String() string {
	return fmt.Sprintf("%s <-> %s", s.Pair[0], s.Pair[1])
}

// Ledger holds at most one entry per unordered player pair. Insert, Match, InvalidatePlayer,
// Cancel and Clear are the only ways to change it.
type Ledger struct {
	entries []ExpectedSwap
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) index(pair [2]string) int {
	return slices.IndexFunc(l.entries, func(s ExpectedSwap) bool {
		return s.Pair == pair
	})
}

func (l *Ledger) Insert(swap ExpectedSwap) error {
	if strings.EqualFold(swap.Pair[0], swap.Pair[1]) {
		return ErrSelfSwap
	}
	if l.index(swap.Pair) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateSwap, swap)
	}
	l.entries = append(l.entries, swap)
	return nil
}

// Match consumes the entry for the unordered pair (a, b).
func (l *Ledger) Match(a string, b string) (ExpectedSwap, bool) {
	i := l.index(sortedPair(a, b))
	if i < 0 {
		return ExpectedSwap{}, false
	}
	swap := l.entries[i]
	l.entries = slices.Delete(l.entries, i, i+1)
	return swap, true
}

// Cancel drops the entry for (a, b) without it being confirmed.
func (l *Ledger) Cancel(a string, b string) bool {
	_, ok := l.Match(a, b)
	return ok
}

// InvalidatePlayer removes and returns every entry naming the player.
func (l *Ledger) InvalidatePlayer(player string) []ExpectedSwap {
	var removed []ExpectedSwap
	l.entries = slices.DeleteFunc(l.entries, func(s ExpectedSwap) bool {
		if s.Involves(player) {
			removed = append(removed, s)
			return true
		}
		return false
	})
	return removed
}

func (l *Ledger) Clear() []ExpectedSwap {
	removed := l.entries
	l.entries = nil
	return removed
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

func (l *Ledger) Pending() []ExpectedSwap {
	return slices.Clone(l.entries)
}
