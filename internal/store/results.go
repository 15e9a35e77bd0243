package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/lapis/internal/cache"
)

// Get returns the entry stored under key. Expired entries are reported as
// missing.
func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	var (
		e     cache.Entry
		blob  []byte
		count int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT data_version, lines, line_count
		FROM query_results
		WHERE query_key = ? AND created_at >= ?
	`, key, s.cutoff()).Scan(&e.DataVersion, &blob, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	e.Lines = splitLines(blob, count)
	return e, true, nil
}

// Set stores e under key, replacing any previous entry.
func (s *Store) Set(ctx context.Context, key string, e cache.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_results (query_key, data_version, lines, line_count, cost, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_key) DO UPDATE SET
			data_version = excluded.data_version,
			lines        = excluded.lines,
			line_count   = excluded.line_count,
			cost         = excluded.cost,
			created_at   = excluded.created_at
	`, key, e.DataVersion, bytes.Join(e.Lines, []byte{'\n'}), len(e.Lines), e.Cost(), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Purge deletes every entry.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM query_results"); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

// DeleteStale deletes entries computed from a data version other than
// current, and expired entries. It returns the number of deleted rows.
func (s *Store) DeleteStale(ctx context.Context, current string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM query_results
		WHERE data_version != ? OR created_at < ?
	`, current, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("delete stale: %w", err)
	}
	return res.RowsAffected()
}

// Stats reports the number of stored entries and their total cost.
func (s *Store) Stats(ctx context.Context) (entries int64, cost int64, err error) {
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(cost), 0) FROM query_results",
	).Scan(&entries, &cost)
	if err != nil {
		return 0, 0, fmt.Errorf("stats: %w", err)
	}
	return entries, cost, nil
}

// cutoff is the oldest visible created_at, or 0 without a TTL.
func (s *Store) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixMilli()
}

// splitLines reverses the '\n' join. A zero count is an empty result, which
// is distinct from one empty line.
func splitLines(blob []byte, count int) [][]byte {
	if count == 0 {
		return nil
	}
	return bytes.Split(blob, []byte{'\n'})
}

var _ cache.Backend = (*Store)(nil)
