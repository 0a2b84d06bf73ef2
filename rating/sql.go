package rating

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lookupQuery = `
SELECT played, wins, losses, rating, rank, last_change
FROM player_ratings
WHERE lower(player) = lower($1) AND map_key = $2 AND ($3 = '' OR region = $3)
ORDER BY last_change DESC
LIMIT 1`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// SqlProvider reads records from a postgres table filled by an external ladder.
type SqlProvider struct {
	db    rowQuerier
	close func()
}

// NewSqlProvider connects and pings the database so a bad connection string is reported at startup.
func NewSqlProvider(ctx context.Context, databaseUrl string) (*SqlProvider, error) {
	pool, err := pgxpool.New(ctx, databaseUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to create rating database pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach rating database: %w", err)
	}

	return &SqlProvider{db: pool, close: pool.Close}, nil
}

func (p *SqlProvider) Name() string {
	return "sql"
}

func (p *SqlProvider) Lookup(ctx context.Context, q Query) (*Record, error) {
	var rec Record
	err := p.db.QueryRow(ctx, lookupQuery, q.Player, q.MapKey, q.Region).Scan(
		&rec.Played,
		&rec.Wins,
		&rec.Losses,
		&rec.Rating,
		&rec.Rank,
		&rec.LastChange,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying rating for %s failed: %w", q.Player, err)
	}
	return &rec, nil
}

func (p *SqlProvider) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
