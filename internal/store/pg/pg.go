// Package pg implements store.CustomerStore on PostgreSQL via pgx. The
// pgx transaction is the single all-or-nothing boundary for one identity
// resolution.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/reentry/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect abre un pool contra el DSN configurado.
func Connect(ctx context.Context, dsn string, maxConns int, connMaxLifetime time.Duration) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if connMaxLifetime > 0 {
		cfg.MaxConnLifetime = connMaxLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const profileColumns = `p.id, p.login, p.email, p.first_name, p.last_name, p.credentials_enabled, p.created_at, p.updated_at`

func scanProfile(row pgx.Row) (*store.Profile, error) {
	var p store.Profile
	err := row.Scan(&p.ID, &p.Login, &p.Email, &p.FirstName, &p.LastName, &p.CredentialsEnabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) FindLinkedProfile(ctx context.Context, providerID, subjectID string) (*store.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM customer_profile p
		JOIN external_profile x ON x.profile_id = p.id
		WHERE x.provider_id = $1 AND x.subject_id = $2
		LIMIT 1
	`, providerID, subjectID)
	return scanProfile(row)
}

// WithinTx ejecuta fn dentro de una transacción pgx: commit sólo si fn
// retorna nil, rollback ante cualquier error.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) FindByLogin(ctx context.Context, login string) (*store.Profile, error) {
	if login == "" {
		return nil, store.ErrNotFound
	}
	row := t.tx.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM customer_profile p
		WHERE lower(p.login) = lower($1)
		LIMIT 1
	`, login)
	return scanProfile(row)
}

func (t *pgTx) SearchByEmail(ctx context.Context, email string) ([]*store.Profile, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+profileColumns+`
		FROM customer_profile p
		WHERE lower(p.email) = lower($1)
		ORDER BY p.created_at, p.id
	`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*store.Profile
	for rows.Next() {
		var p store.Profile
		if err := rows.Scan(&p.ID, &p.Login, &p.Email, &p.FirstName, &p.LastName, &p.CredentialsEnabled, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (t *pgTx) CreateExternallyAuthenticatedCustomer(ctx context.Context, providerID, subjectID string) (*store.Profile, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO customer_profile (id, login, email, first_name, last_name, credentials_enabled)
		VALUES ($1, '', '', '', '', true)
		RETURNING id, login, email, first_name, last_name, credentials_enabled, created_at, updated_at
	`, uuid.New())
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	if _, err := t.LinkExternalProfile(ctx, p.ID, providerID, subjectID); err != nil {
		return nil, err
	}
	return p, nil
}

func (t *pgTx) LinkExternalProfile(ctx context.Context, profileID uuid.UUID, providerID, subjectID string) (*store.ExternalLink, error) {
	var l store.ExternalLink
	err := t.tx.QueryRow(ctx, `
		INSERT INTO external_profile (profile_id, provider_id, subject_id, email)
		VALUES ($1, $2, $3, '')
		RETURNING profile_id, provider_id, subject_id, email, created_at
	`, profileID, providerID, subjectID).Scan(&l.ProfileID, &l.ProviderID, &l.SubjectID, &l.Email, &l.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", err)
	}
	return &l, nil
}

func (t *pgTx) SetExternalEmail(ctx context.Context, providerID, subjectID, email string) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE external_profile SET email = $3
		WHERE provider_id = $1 AND subject_id = $2
	`, providerID, subjectID, email)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *pgTx) SetEmail(ctx context.Context, profileID uuid.UUID, email string) error {
	return t.update(ctx, profileID, "email", email)
}

func (t *pgTx) SetFirstName(ctx context.Context, profileID uuid.UUID, firstName string) error {
	return t.update(ctx, profileID, "first_name", firstName)
}

func (t *pgTx) SetLastName(ctx context.Context, profileID uuid.UUID, lastName string) error {
	return t.update(ctx, profileID, "last_name", lastName)
}

func (t *pgTx) update(ctx context.Context, profileID uuid.UUID, column, value string) error {
	// column names come from the three Set* methods above, never from input
	ct, err := t.tx.Exec(ctx, `
		UPDATE customer_profile SET `+column+` = $2, updated_at = now()
		WHERE id = $1
	`, profileID, value)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
