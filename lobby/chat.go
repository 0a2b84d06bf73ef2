package lobby

import (
	"fmt"
	"lobby-autohost/rating"
	"strings"

	"github.com/dustin/go-humanize"
)

const statsCommand = "?stats"

func (r *Reconciler) handleChat(sender string, text string) {
	text = strings.TrimSpace(text)
	if r.lobby == nil || !r.isHost() {
		return
	}

	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.EqualFold(fields[0], statsCommand) {
		return
	}

	query := sender
	if len(fields) > 1 {
		query = strings.Join(fields[1:], " ")
	}
	r.requestStats(query)
}

func (r *Reconciler) requestStats(query string) {
	matches := r.lobby.Search(query)
	switch {
	case len(matches) == 0:
		r.sendChat(fmt.Sprintf("No player matches %q", query))
		return
	case len(matches) > 1:
		r.sendChat(fmt.Sprintf("%q is ambiguous: %s", query, strings.Join(matches, ", ")))
		return
	}

	player := matches[0]
	if rec, _ := r.lobby.Extra(player); rec.Fetched() {
		r.sendChat(formatStats(player, rec))
		return
	}

	if !r.ratingsActive() {
		r.sendChat("Ratings are not available for this map")
		return
	}

	r.statsWaiters[player] = true
	r.fetchRating(player)
}

func (r *Reconciler) answerStats(player string) {
	if !r.statsWaiters[player] {
		return
	}
	delete(r.statsWaiters, player)

	if rec, _ := r.lobby.Extra(player); rec.Fetched() {
		r.sendChat(formatStats(player, rec))
	}
}

func (r *Reconciler) failStats(player string) {
	if !r.statsWaiters[player] {
		return
	}
	delete(r.statsWaiters, player)
	r.sendChat(fmt.Sprintf("Could not fetch the rating of %s", player))
}

func formatStats(player string, rec *rating.Record) string {
	rank := "unranked"
	if rec.Rank > 0 {
		rank = humanize.Ordinal(rec.Rank)
	}

	return fmt.Sprintf("%s: %s rating, %s, %s games (%s wins, %s losses), last change %+.0f",
		player,
		humanize.Comma(int64(rec.Rating)),
		rank,
		humanize.Comma(int64(rec.Played)),
		humanize.Comma(int64(rec.Wins)),
		humanize.Comma(int64(rec.Losses)),
		rec.LastChange,
	)
}
