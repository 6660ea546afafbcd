package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tartampluch/go-congrats/internal/config"
)

const schemaCongratulations = `
CREATE TABLE IF NOT EXISTS congratulations (
	id         BIGSERIAL PRIMARY KEY,
	client_id  BIGINT      NOT NULL,
	event_type VARCHAR(50) NOT NULL DEFAULT 'birthday',
	text       TEXT        NOT NULL,
	sent_via   VARCHAR(50) NOT NULL DEFAULT 'email',
	status     VARCHAR(50) NOT NULL DEFAULT 'pending',
	message_id VARCHAR(255) NOT NULL DEFAULT '',
	sent_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	opened     BOOLEAN     NOT NULL DEFAULT FALSE,
	opened_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS congratulations_client_id_idx ON congratulations (client_id)`

const congratulationColumns = `id, client_id, event_type, text, sent_via, status, message_id, sent_at, opened, opened_at`

const (
	queryGet    = `SELECT ` + congratulationColumns + ` FROM congratulations WHERE id = $1`
	queryInsert = `
		INSERT INTO congratulations (client_id, event_type, text, sent_via, status, message_id, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
)

// PostgresStore implements Store against PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresStore creates a Postgres-backed history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the congratulations table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaCongratulations); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSchema, err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, c *Congratulation) error {
	c.Normalize(s.now())
	err := s.db.QueryRowContext(ctx, queryInsert,
		c.ClientID, c.EventType, c.Text, c.Channel, c.Status, c.MessageID, c.SentAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("%s: create: %w", config.ErrHistoryQuery, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Congratulation, error) {
	c, err := scanCongratulation(s.db.QueryRowContext(ctx, queryGet, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get %d: %w", config.ErrHistoryQuery, id, err)
	}
	return &c, nil
}

func (s *PostgresStore) List(ctx context.Context, f Filter) ([]Congratulation, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM congratulations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", config.ErrHistoryQuery, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, f.Offset)
	q := `SELECT ` + congratulationColumns + ` FROM congratulations` + where +
		` ORDER BY sent_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: list: %w", config.ErrHistoryQuery, err)
	}
	defer rows.Close()

	out := []Congratulation{}
	for rows.Next() {
		c, err := scanCongratulation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: scan: %w", config.ErrHistoryQuery, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%s: rows: %w", config.ErrHistoryQuery, err)
	}
	return out, total, nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		conds = append(conds, col+" = $"+strconv.Itoa(len(args)))
	}
	if f.ClientID != 0 {
		add("client_id", f.ClientID)
	}
	if f.Status != "" {
		add("status", f.Status)
	}
	if f.Channel != "" {
		add("sent_via", f.Channel)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCongratulation(row rowScanner) (Congratulation, error) {
	var c Congratulation
	var openedAt sql.NullTime
	err := row.Scan(&c.ID, &c.ClientID, &c.EventType, &c.Text, &c.Channel, &c.Status,
		&c.MessageID, &c.SentAt, &c.Opened, &openedAt)
	if err != nil {
		return Congratulation{}, err
	}
	if openedAt.Valid {
		t := openedAt.Time
		c.OpenedAt = &t
	}
	return c, nil
}
