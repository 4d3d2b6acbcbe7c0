package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tokensite-backend/internal/models"
)

type AccessGrantRepo struct {
	pool *pgxpool.Pool
}

func NewAccessGrantRepo(pool *pgxpool.Pool) *AccessGrantRepo {
	return &AccessGrantRepo{pool: pool}
}

func (r *AccessGrantRepo) Record(ctx context.Context, grant *models.AccessGrant) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO access_grants (id, wallet_address, balance, issued_at, expires_at)
		VALUES ($1, $2, NULLIF($3::text, '')::numeric, $4, $5)`,
		grant.ID, grant.Address, grant.Balance, grant.IssuedAt, grant.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert access grant: %w", err)
	}
	return nil
}
