package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tartampluch/go-congrats/internal/config"
)

// pqUniqueViolation is the SQLSTATE for unique constraint failures.
const pqUniqueViolation = "23505"

const schemaClients = `
CREATE TABLE IF NOT EXISTS clients (
	id               BIGSERIAL PRIMARY KEY,
	first_name       VARCHAR(100) NOT NULL,
	last_name        VARCHAR(100) NOT NULL,
	email            VARCHAR(255) NOT NULL,
	phone            VARCHAR(20)  NOT NULL DEFAULT '',
	company_name     VARCHAR(255) NOT NULL DEFAULT '',
	position         VARCHAR(100) NOT NULL DEFAULT '',
	segment          VARCHAR(50)  NOT NULL DEFAULT '',
	birthday         DATE         NOT NULL,
	birth_year_known BOOLEAN      NOT NULL DEFAULT TRUE,
	created_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ  NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS clients_email_lower_idx ON clients (lower(email))`

const clientColumns = `id, first_name, last_name, email, phone, company_name, position, segment, birthday, birth_year_known, created_at, updated_at`

const (
	queryListAll = `SELECT ` + clientColumns + ` FROM clients ORDER BY id`
	queryGet     = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	queryInsert  = `
		INSERT INTO clients (first_name, last_name, email, phone, company_name, position, segment, birthday, birth_year_known)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	queryUpdate = `
		UPDATE clients SET first_name = $2, last_name = $3, email = $4, phone = $5,
			company_name = $6, position = $7, segment = $8, birthday = $9, birth_year_known = $10, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`
	queryDelete = `DELETE FROM clients WHERE id = $1`
)

// PostgresRepository implements Repository against PostgreSQL.
type PostgresRepository struct{ db *sql.DB }

// NewPostgresRepository creates a Postgres-backed client repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository { return &PostgresRepository{db: db} }

// EnsureSchema creates the clients table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schemaClients); err != nil {
		return fmt.Errorf("%s: %w", config.ErrSchema, err)
	}
	return nil
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]Client, error) {
	rows, err := r.db.QueryContext(ctx, queryListAll)
	if err != nil {
		return nil, fmt.Errorf("%s: list all: %w", config.ErrClientQuery, err)
	}
	defer rows.Close()
	return scanClients(rows)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Client, int, error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("%s: count: %w", config.ErrClientQuery, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, f.Offset)
	q := `SELECT ` + clientColumns + ` FROM clients` + where +
		` ORDER BY id LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: list: %w", config.ErrClientQuery, err)
	}
	defer rows.Close()

	out, err := scanClients(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Client, error) {
	c, err := scanClient(r.db.QueryRowContext(ctx, queryGet, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: get %d: %w", config.ErrClientQuery, id, err)
	}
	return &c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *Client) error {
	err := r.db.QueryRowContext(ctx, queryInsert,
		c.FirstName, c.LastName, c.Email, c.Phone, c.CompanyName, c.Position, c.Segment, c.Birthday.Time, c.Birthday.YearKnown(),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("%s: create: %w", config.ErrClientQuery, err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, c *Client) error {
	err := r.db.QueryRowContext(ctx, queryUpdate,
		c.ID, c.FirstName, c.LastName, c.Email, c.Phone, c.CompanyName, c.Position, c.Segment, c.Birthday.Time, c.Birthday.YearKnown(),
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicateEmail
	case err != nil:
		return fmt.Errorf("%s: update %d: %w", config.ErrClientQuery, c.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, queryDelete, id)
	if err != nil {
		return fmt.Errorf("%s: delete %d: %w", config.ErrClientQuery, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any
	if f.Segment != "" {
		args = append(args, f.Segment)
		conds = append(conds, "segment = $"+strconv.Itoa(len(args)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := strconv.Itoa(len(args))
		conds = append(conds, "(first_name ILIKE $"+n+" OR last_name ILIKE $"+n+" OR email ILIKE $"+n+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (Client, error) {
	var c Client
	var birthday time.Time
	var yearKnown bool
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&c.CompanyName, &c.Position, &c.Segment, &birthday, &yearKnown, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Client{}, err
	}
	c.Birthday = NewDate(birthday.Year(), birthday.Month(), birthday.Day())
	if !yearKnown {
		c.Birthday = NewYearlessDate(birthday.Month(), birthday.Day())
	}
	return c, nil
}

func scanClients(rows *sql.Rows) ([]Client, error) {
	var out []Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", config.ErrClientQuery, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", config.ErrClientQuery, err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
