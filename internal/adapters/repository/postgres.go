package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/okian/aecr/internal/domain/model"
	"github.com/okian/aecr/pkg/metrics"
)

const (
	defaultTable     = "campaign_records"
	defaultStmtLimit = 10 * time.Second
	dayLayout        = "2006-01-02"
)

const schema = `CREATE TABLE IF NOT EXISTS %[1]s (
	campaign_id      TEXT NOT NULL,
	platform         TEXT NOT NULL,
	day              DATE NOT NULL,
	channel          TEXT NOT NULL,
	account_id       TEXT NOT NULL,
	user_id          TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	currency         CHAR(3) NOT NULL,
	impressions      BIGINT NOT NULL CHECK (impressions >= 0),
	clicks           BIGINT NOT NULL CHECK (clicks >= 0),
	conversions      DOUBLE PRECISION NOT NULL CHECK (conversions >= 0),
	spend            DOUBLE PRECISION NOT NULL CHECK (spend >= 0),
	conversion_value DOUBLE PRECISION NOT NULL CHECK (conversion_value >= 0),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (campaign_id, platform, day)
);
CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (user_id, day)`

const upsertSQL = `INSERT INTO %s
	(campaign_id, platform, day, channel, account_id, user_id, name, currency,
	 impressions, clicks, conversions, spend, conversion_value, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())
ON CONFLICT (campaign_id, platform, day) DO UPDATE SET
	channel = EXCLUDED.channel,
	account_id = EXCLUDED.account_id,
	user_id = EXCLUDED.user_id,
	name = EXCLUDED.name,
	currency = EXCLUDED.currency,
	impressions = EXCLUDED.impressions,
	clicks = EXCLUDED.clicks,
	conversions = EXCLUDED.conversions,
	spend = EXCLUDED.spend,
	conversion_value = EXCLUDED.conversion_value,
	updated_at = now()`

const selectSQL = `SELECT campaign_id, platform, day, channel, account_id, user_id, name, currency,
	impressions, clicks, conversions, spend, conversion_value
FROM %s`

// PostgresStore is a Store on PostgreSQL. Each upsert is a single statement,
// so per-record atomicity and last-writer-wins come from the primary key.
type PostgresStore struct {
	db      *sql.DB
	table   string
	index   string
	timeout time.Duration
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB, opts ...Option) *PostgresStore {
	s := &PostgresStore{db: db, table: defaultTable, timeout: defaultStmtLimit}
	for _, opt := range opts {
		opt(s)
	}
	s.index = pq.QuoteIdentifier(s.table + "_user_day_idx")
	s.table = pq.QuoteIdentifier(s.table)
	return s
}

// OpenPostgres opens and pings a lib/pq connection.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the records table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, s.table, s.index)); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Upsert implements Store.
func (s *PostgresStore) Upsert(ctx context.Context, rec model.CampaignRecord) error {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("upsert", float64(time.Since(start).Milliseconds())) }()

	if err := Validate(rec); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(upsertSQL, s.table),
		rec.CampaignID, string(rec.Platform), rec.Date.Format(dayLayout), rec.Channel,
		rec.AccountID, rec.UserID, rec.Name, rec.Currency,
		rec.Impressions, rec.Clicks, rec.Conversions, rec.Spend, rec.ConversionValue)
	if err != nil {
		metrics.RecordError("repository", "upsert_failed")
		return fmt.Errorf("upsert %s/%s/%s: %w", rec.Platform, rec.CampaignID, rec.Date.Format(dayLayout), err)
	}
	return nil
}

// Query implements Store.
func (s *PostgresStore) Query(ctx context.Context, f Filter) ([]model.CampaignRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("query", float64(time.Since(start).Milliseconds())) }()

	where, args := buildWhere(f)
	q := fmt.Sprintf(selectSQL, s.table) + where + " ORDER BY day, platform, campaign_id"

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		metrics.RecordError("repository", "query_failed")
		return nil, fmt.Errorf("query campaign records: %w", err)
	}
	defer rows.Close()

	out := make([]model.CampaignRecord, 0)
	for rows.Next() {
		var (
			r        model.CampaignRecord
			platform string
		)
		if err := rows.Scan(&r.CampaignID, &platform, &r.Date, &r.Channel, &r.AccountID, &r.UserID, &r.Name,
			&r.Currency, &r.Impressions, &r.Clicks, &r.Conversions, &r.Spend, &r.ConversionValue); err != nil {
			return nil, fmt.Errorf("scan campaign record: %w", err)
		}
		r.Platform = model.Platform(platform)
		r.Date = r.Date.UTC()
		r.Currency = strings.TrimSpace(r.Currency)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign records: %w", err)
	}
	return out, nil
}

func buildWhere(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Platform != "" {
		add("platform = $%d", string(f.Platform))
	}
	if len(f.AccountIDs) > 0 {
		add("account_id = ANY($%d)", pq.Array(f.AccountIDs))
	}
	if f.CampaignID != "" {
		add("campaign_id = $%d", f.CampaignID)
	}
	if !f.From.IsZero() {
		add("day >= $%d", f.From.Format(dayLayout))
	}
	if !f.To.IsZero() {
		add("day <= $%d", f.To.Format(dayLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
