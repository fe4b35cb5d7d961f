package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
)

var _ repository.IdentityRepository = (*PostgresIdentityRepo)(nil)

type PostgresIdentityRepo struct {
	db querier
}

func NewPostgresIdentityRepo(pool *pgxpool.Pool) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: pool}
}

const identityColumns = `id, display_name, handle, verified_until, premium_until, active_token, role, created_at, last_seen_at`

func (r *PostgresIdentityRepo) FindOne(ctx context.Context, id int64) (*model.Identity, error) {
	row := r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id=$1;`, id)
	i, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return i, nil
}

// Upsert is a single INSERT .. ON CONFLICT statement, so concurrent callers never lose the row.
func (r *PostgresIdentityRepo) Upsert(ctx context.Context, id int64, patch model.IdentityPatch) error {
	if id == 0 {
		return domain.ErrInvalidArgument
	}
	q, args := buildUpsert(id, patch)
	if _, err := r.db.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}

func (r *PostgresIdentityRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM identities;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

func (r *PostgresIdentityRepo) ListPage(ctx context.Context, skip, limit int) ([]*model.Identity, error) {
	if skip < 0 || limit <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	rows, err := r.db.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY id OFFSET $1 LIMIT $2;`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	out := make([]*model.Identity, 0, limit)
	for rows.Next() {
		i, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// Stats reports the size of the whole database, which is what the hosting quota is measured on.
func (r *PostgresIdentityRepo) Stats(ctx context.Context) (repository.StoreStats, error) {
	var used int64
	if err := r.db.QueryRow(ctx, `SELECT pg_database_size(current_database());`).Scan(&used); err != nil {
		return repository.StoreStats{}, fmt.Errorf("database size: %w", err)
	}
	return repository.StoreStats{UsedBytes: used}, nil
}

func scanIdentity(row pgx.Row) (*model.Identity, error) {
	var (
		i       model.Identity
		role    string
		premium *time.Time
	)
	if err := row.Scan(&i.ID, &i.DisplayName, &i.Handle, &i.VerifiedUntil, &premium, &i.ActiveToken, &role, &i.CreatedAt, &i.LastSeenAt); err != nil {
		return nil, err
	}
	i.Role = model.Role(role)
	i.PremiumUntil = premium
	return &i, nil
}

// buildUpsert renders the patch as an insert that falls back to updating only the patched columns.
// last_seen_at is refreshed on every write.
func buildUpsert(id int64, p model.IdentityPatch) (string, []any) {
	cols := []string{"id"}
	args := []any{id}
	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if p.DisplayName != nil {
		add("display_name", *p.DisplayName)
	}
	if p.Handle != nil {
		add("handle", *p.Handle)
	}
	if p.Role != nil {
		add("role", string(*p.Role))
	}
	if p.VerifiedUntil != nil {
		add("verified_until", *p.VerifiedUntil)
	}
	if p.PremiumUntil != nil {
		add("premium_until", *p.PremiumUntil)
	}
	if p.ActiveToken != nil {
		add("active_token", *p.ActiveToken)
	}

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols[1:] {
		sets = append(sets, c+"=EXCLUDED."+c)
	}
	sets = append(sets, "last_seen_at=now()")

	q := "INSERT INTO identities (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") +
		") ON CONFLICT (id) DO UPDATE SET " + strings.Join(sets, ", ") + ";"
	return q, args
}
