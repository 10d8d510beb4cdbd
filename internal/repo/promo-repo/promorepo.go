package promorepo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
)

type Repository struct {
	db pg.Database
}

func New(db pg.Database) *Repository {
	return &Repository{
		db: db,
	}
}

const promoColumns = `id, code, reward, is_random, reward_min, reward_max, usage_limit, usage_count, is_active, created_at`

func scanPromo(row pgx.Row) (*domain.PromoCode, error) {
	var promo domain.PromoCode
	err := row.Scan(
		&promo.ID, &promo.Code, &promo.Reward, &promo.IsRandom, &promo.RewardMin,
		&promo.RewardMax, &promo.UsageLimit, &promo.UsageCount, &promo.IsActive, &promo.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &promo, nil
}

// FindActiveByCodeForUpdate matches the code case-insensitively and locks the
// row. Must be called inside a transaction.
func (r *Repository) FindActiveByCodeForUpdate(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := `
        SELECT ` + promoColumns + `
        FROM promo_codes
        WHERE lower(code) = lower($1) AND is_active
        FOR UPDATE
    `
	promo, err := scanPromo(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find promo code", zap.Error(err))
		return nil, err
	}
	return promo, nil
}

func (r *Repository) HasRedemption(ctx context.Context, userID int64, promoID int) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM promo_redemptions WHERE user_id = $1 AND promo_id = $2
        )
    `
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, promoID).Scan(&exists); err != nil {
		zap.L().Error("failed to check promo redemption", zap.Error(err))
		return false, err
	}
	return exists, nil
}

// IncrementUsage bumps usage_count, guarded against exceeding usage_limit.
func (r *Repository) IncrementUsage(ctx context.Context, promoID int) (bool, error) {
	query := `
		UPDATE promo_codes
		SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`
	tag, err := r.db.Exec(ctx, query, promoID)
	if err != nil {
		zap.L().Error("failed to increment promo usage", zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) CreateRedemption(ctx context.Context, userID int64, promoID int) error {
	query := `
		INSERT INTO promo_redemptions (user_id, promo_id)
		VALUES ($1, $2)
	`
	if _, err := r.db.Exec(ctx, query, userID, promoID); err != nil {
		zap.L().Error("failed to create promo redemption", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	query := `
		INSERT INTO promo_codes (code, reward, is_random, reward_min, reward_max, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		promo.Code, promo.Reward, promo.IsRandom, promo.RewardMin, promo.RewardMax, promo.UsageLimit,
	).Scan(&promo.ID, &promo.CreatedAt)
	if err != nil {
		zap.L().Error("can't save promo code", zap.Error(err))
		return nil, err
	}
	promo.IsActive = true
	return promo, nil
}

func (r *Repository) List(ctx context.Context) ([]domain.PromoCode, error) {
	query := `
        SELECT ` + promoColumns + `
        FROM promo_codes
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		zap.L().Error("failed to fetch promo codes", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var promos []domain.PromoCode
	for rows.Next() {
		promo, err := scanPromo(rows)
		if err != nil {
			zap.L().Error("failed to scan promo row", zap.Error(err))
			return nil, err
		}
		promos = append(promos, *promo)
	}

	return promos, nil
}

func (r *Repository) SetActive(ctx context.Context, promoID int, active bool) error {
	query := `
		UPDATE promo_codes
		SET is_active = $1
		WHERE id = $2
	`
	if _, err := r.db.Exec(ctx, query, active, promoID); err != nil {
		zap.L().Error("failed to toggle promo code", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, promoID int) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM promo_redemptions WHERE promo_id = $1`, promoID); err != nil {
		zap.L().Error("failed to delete promo redemptions", zap.Error(err))
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM promo_codes WHERE id = $1`, promoID); err != nil {
		zap.L().Error("failed to delete promo code", zap.Error(err))
		return err
	}
	return nil
}
