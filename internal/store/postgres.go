package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// Postgres implements the persistence collaborator over pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// New creates the store.
func New(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ActiveAccommodations lists every listing eligible for checking right now.
func (s *Postgres) ActiveAccommodations(ctx context.Context) ([]model.Accommodation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, platform, check_in, check_out, adults, children, rooms, active
		FROM accommodations
		WHERE active AND check_out >= CURRENT_DATE
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active accommodations: %w", err)
	}
	defer rows.Close()

	var out []model.Accommodation
	for rows.Next() {
		var a model.Accommodation
		if err := rows.Scan(&a.ID, &a.URL, &a.Platform, &a.CheckIn, &a.CheckOut,
			&a.Adults, &a.Children, &a.Rooms, &a.Active); err != nil {
			return nil, fmt.Errorf("scan accommodation: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Accommodation fetches one listing by ID. Returns nil when it no longer
// exists.
func (s *Postgres) Accommodation(ctx context.Context, id string) (*model.Accommodation, error) {
	var a model.Accommodation
	err := s.pool.QueryRow(ctx, `
		SELECT id, url, platform, check_in, check_out, adults, children, rooms, active
		FROM accommodations WHERE id = $1`, id,
	).Scan(&a.ID, &a.URL, &a.Platform, &a.CheckIn, &a.CheckOut,
		&a.Adults, &a.Children, &a.Rooms, &a.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get accommodation %s: %w", id, err)
	}
	return &a, nil
}

// SystemSettings bulk-reads the dynamic settings rows for a cache rebuild.
func (s *Postgres) SystemSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM system_settings`)
	if err != nil {
		return nil, fmt.Errorf("read system settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ExtractionRules assembles the rule set for one platform: the optional
// custom extractor script, selector rules, and both pattern lists.
func (s *Postgres) ExtractionRules(ctx context.Context, platform model.Platform) (*model.ExtractionRuleSet, error) {
	rs := &model.ExtractionRuleSet{Platform: platform}

	err := s.pool.QueryRow(ctx,
		`SELECT script FROM extractor_scripts WHERE platform = $1`, platform,
	).Scan(&rs.CustomExtractor)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read extractor script: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT category, selector, priority
		FROM selector_rules
		WHERE platform = $1
		ORDER BY priority DESC`, platform)
	if err != nil {
		return nil, fmt.Errorf("read selector rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.SelectorRule
		if err := rows.Scan(&r.Category, &r.Selector, &r.Priority); err != nil {
			return nil, fmt.Errorf("scan selector rule: %w", err)
		}
		rs.Selectors = append(rs.Selectors, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := s.pool.Query(ctx, `
		SELECT kind, pattern
		FROM text_patterns
		WHERE platform = $1
		ORDER BY position`, platform)
	if err != nil {
		return nil, fmt.Errorf("read text patterns: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var kind, pattern string
		if err := prows.Scan(&kind, &pattern); err != nil {
			return nil, fmt.Errorf("scan text pattern: %w", err)
		}
		if kind == "available" {
			rs.AvailablePatterns = append(rs.AvailablePatterns, pattern)
		} else {
			rs.UnavailablePatterns = append(rs.UnavailablePatterns, pattern)
		}
	}
	return rs, prows.Err()
}

// RecordCheckResult persists one check outcome for inspection.
func (s *Postgres) RecordCheckResult(ctx context.Context, accommodationID, cycleID string, res model.CheckResult) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO check_results
			(accommodation_id, cycle_id, available, price, checked_url, error, retry_count, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		accommodationID, cycleID, res.Available, res.Price, res.CheckedURL, res.Error, res.RetryCount)
	if err != nil {
		return fmt.Errorf("record check result: %w", err)
	}
	return nil
}

// RecordCycleStats persists cycle-level aggregates, the primary operator
// error signal.
func (s *Postgres) RecordCycleStats(ctx context.Context, stats model.CycleStats) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cycle_stats (cycle_id, total, success, error, duration_ms, finished_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		stats.CycleID, stats.Total, stats.Success, stats.Error, stats.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record cycle stats: %w", err)
	}
	return nil
}

// FindOrCreateDedupeKey inserts the notification dedupe key. It reports
// true when this call created the key, meaning the transition has not been
// notified yet.
func (s *Postgres) FindOrCreateDedupeKey(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notification_dedupe (dedupe_key, created_at)
		VALUES ($1, now())
		ON CONFLICT (dedupe_key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("find or create dedupe key: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpsertHeartbeat writes the worker's singleton heartbeat row. The start
// time is write-once.
func (s *Postgres) UpsertHeartbeat(ctx context.Context, hb model.Heartbeat) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_heartbeats
			(worker_id, started_at, last_heartbeat_at, processing, processing_since,
			 cron_expression, listings_checked, last_cycle_errors, last_cycle_ms)
		VALUES ($1, $2, $3, $4, NULLIF($5, '0001-01-01T00:00:00Z'::timestamptz), $6, $7, $8, $9)
		ON CONFLICT (worker_id) DO UPDATE SET
			last_heartbeat_at = EXCLUDED.last_heartbeat_at,
			processing = EXCLUDED.processing,
			processing_since = EXCLUDED.processing_since,
			cron_expression = EXCLUDED.cron_expression,
			listings_checked = EXCLUDED.listings_checked,
			last_cycle_errors = EXCLUDED.last_cycle_errors,
			last_cycle_ms = EXCLUDED.last_cycle_ms`,
		hb.WorkerID, hb.StartedAt, hb.LastHeartbeatAt, hb.Processing, hb.ProcessingSince,
		hb.CronExpression, hb.ListingsChecked, hb.LastCycleErrors, hb.LastCycleMs)
	if err != nil {
		return fmt.Errorf("upsert heartbeat: %w", err)
	}
	return nil
}

// AppendHeartbeatHistory adds one immutable snapshot row.
func (s *Postgres) AppendHeartbeatHistory(ctx context.Context, row model.HeartbeatHistory) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO worker_heartbeat_history (worker_id, ts, status, processing, uptime_seconds)
		VALUES ($1, $2, $3, $4, $5)`,
		row.WorkerID, row.Timestamp, row.Status, row.Processing, row.UptimeSeconds)
	if err != nil {
		return fmt.Errorf("append heartbeat history: %w", err)
	}
	return nil
}

// Heartbeat reads one worker's singleton heartbeat row, nil when absent.
func (s *Postgres) Heartbeat(ctx context.Context, workerID string) (*model.Heartbeat, error) {
	var hb model.Heartbeat
	err := s.pool.QueryRow(ctx, `
		SELECT worker_id, started_at, last_heartbeat_at, processing,
		       COALESCE(processing_since, '0001-01-01T00:00:00Z'::timestamptz),
		       cron_expression, listings_checked, last_cycle_errors, last_cycle_ms
		FROM worker_heartbeats WHERE worker_id = $1`, workerID,
	).Scan(&hb.WorkerID, &hb.StartedAt, &hb.LastHeartbeatAt, &hb.Processing, &hb.ProcessingSince,
		&hb.CronExpression, &hb.ListingsChecked, &hb.LastCycleErrors, &hb.LastCycleMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read heartbeat: %w", err)
	}
	return &hb, nil
}
