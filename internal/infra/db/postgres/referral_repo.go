package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-link-gateway/internal/domain"
	"telegram-link-gateway/internal/domain/model"
	"telegram-link-gateway/internal/domain/ports/repository"
)

var _ repository.ReferralRepository = (*PostgresReferralRepo)(nil)

type PostgresReferralRepo struct {
	db querier
}

func NewPostgresReferralRepo(pool *pgxpool.Pool) *PostgresReferralRepo {
	return &PostgresReferralRepo{db: pool}
}

func (r *PostgresReferralRepo) Create(ctx context.Context, rec *model.ReferralRecord) error {
	if rec == nil || rec.Code == "" || rec.ReferrerID == 0 {
		return domain.ErrInvalidArgument
	}
	referred := rec.Referred
	if referred == nil {
		referred = []int64{}
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO referrals (code, referrer_id, referred, created_at)
VALUES ($1, $2, $3, $4);`, rec.Code, rec.ReferrerID, referred, rec.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("referral code %q taken: %w", rec.Code, domain.ErrInvalidArgument)
		}
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

func (r *PostgresReferralRepo) FindByCode(ctx context.Context, code string) (*model.ReferralRecord, error) {
	row := r.db.QueryRow(ctx, `SELECT code, referrer_id, referred, created_at FROM referrals WHERE code=$1;`, code)
	var rec model.ReferralRecord
	if err := row.Scan(&rec.Code, &rec.ReferrerID, &rec.Referred, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, fmt.Errorf("find referral: %w", err)
	}
	return &rec, nil
}

func (r *PostgresReferralRepo) ExistsForReferrer(ctx context.Context, referrerID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM referrals WHERE referrer_id=$1);`, referrerID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("referral exists: %w", err)
	}
	return ok, nil
}

func (r *PostgresReferralRepo) AppendReferral(ctx context.Context, code string, identityID int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE referrals SET referred = array_append(referred, $2) WHERE code=$1;`, code, identityID)
	if err != nil {
		return fmt.Errorf("append referral: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

func (r *PostgresReferralRepo) ListByReferrer(ctx context.Context, referrerID int64) ([]*model.ReferralRecord, error) {
	rows, err := r.db.Query(ctx, `
SELECT code, referrer_id, referred, created_at
  FROM referrals WHERE referrer_id=$1 ORDER BY created_at, code;`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []*model.ReferralRecord
	for rows.Next() {
		var rec model.ReferralRecord
		if err := rows.Scan(&rec.Code, &rec.ReferrerID, &rec.Referred, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
