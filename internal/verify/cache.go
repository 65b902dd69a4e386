package verify

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/anchorlab/anchorbench/internal/model"
)

// defaultCacheTTL bounds how long a rarity lookup stays valid. Web result
// counts drift as pages are indexed, so stale entries are re-queried.
const defaultCacheTTL = 7 * 24 * time.Hour

// Cache stores rarity lookups in SQLite so repeated generation runs do not
// re-spend search API quota on the same query.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

// OpenCache opens (creating if needed) the rarity cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}

	const migration = `
CREATE TABLE IF NOT EXISTS rarity_cache (
	query      TEXT PRIMARY KEY,
	count      INTEGER NOT NULL,
	capped     INTEGER NOT NULL,
	source_hit INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rarity_cache_expires_at ON rarity_cache(expires_at);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}

	return &Cache{db: db, ttl: defaultCacheTTL}, nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns a cached, unexpired estimate for the query. Cached entries are
// always Verified: only successful lookups are stored.
func (c *Cache) Get(ctx context.Context, query string) (model.RarityEstimate, bool) {
	var count int
	var capped, sourceHit bool
	err := c.db.QueryRowContext(ctx,
		`SELECT count, capped, source_hit FROM rarity_cache WHERE query = ? AND expires_at > ?`,
		query, time.Now().UTC(),
	).Scan(&count, &capped, &sourceHit)
	if errors.Is(err, sql.ErrNoRows) || err != nil {
		return model.RarityEstimate{}, false
	}
	return model.RarityEstimate{
		Count:      count,
		Capped:     capped,
		Verified:   true,
		SourceMiss: !sourceHit,
		Query:      query,
	}, true
}

// Put stores a verified estimate. Unverified estimates are skipped: caching
// a degraded lookup would hide a later successful one.
func (c *Cache) Put(ctx context.Context, query string, est model.RarityEstimate) error {
	if !est.Verified {
		return nil
	}
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO rarity_cache (query, count, capped, source_hit, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET count = excluded.count, capped = excluded.capped,
		 source_hit = excluded.source_hit, created_at = excluded.created_at,
		 expires_at = excluded.expires_at`,
		query, est.Count, est.Capped, !est.SourceMiss, now, now.Add(c.ttl),
	)
	return eris.Wrap(err, "cache: put")
}

// Prune deletes expired entries and returns how many were removed.
func (c *Cache) Prune(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM rarity_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "cache: prune")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
