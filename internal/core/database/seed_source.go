package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/SiegfredLorelle/iskobot-api/internal/core"
	"github.com/SiegfredLorelle/iskobot-api/internal/models"
)

var (
	_ core.SeedSource = (*PgSeedSource)(nil)
	_ core.SeedSource = (*StaticSeedSource)(nil)
)

// PgSeedSource reads crawl seeds from the rag_websites table.
type PgSeedSource struct {
	db *sql.DB
}

func NewPgSeedSource(db *sql.DB) *PgSeedSource {
	return &PgSeedSource{db: db}
}

func (s *PgSeedSource) ListSeeds(ctx context.Context) ([]models.Seed, error) {
	const q = `SELECT url, last_scraped FROM rag_websites ORDER BY id ASC`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list seeds: %w", err)
	}
	defer rows.Close()

	var out []models.Seed
	for rows.Next() {
		var (
			seed models.Seed
			last sql.NullTime
		)
		if err := rows.Scan(&seed.URL, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			seed.LastScraped = &t
		}
		out = append(out, seed)
	}
	return out, rows.Err()
}

func (s *PgSeedSource) MarkScraped(ctx context.Context, url string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rag_websites SET last_scraped = $2 WHERE url = $1`, url, at)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("website not found: %s", url)
	}
	return nil
}

// StaticSeedSource serves a fixed list of seeds, typically from SEED_URLS.
type StaticSeedSource struct {
	urls []string
}

func NewStaticSeedSource(urls []string) *StaticSeedSource {
	return &StaticSeedSource{urls: urls}
}

func (s *StaticSeedSource) ListSeeds(context.Context) ([]models.Seed, error) {
	out := make([]models.Seed, 0, len(s.urls))
	for _, u := range s.urls {
		if u != "" {
			out = append(out, models.Seed{URL: u})
		}
	}
	return out, nil
}

// MarkScraped is a no-op; static seeds have nowhere to record the time.
func (s *StaticSeedSource) MarkScraped(context.Context, string, time.Time) error {
	return nil
}
