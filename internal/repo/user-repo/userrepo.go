package userrepo

import (
	"context"
	"time"

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

func (r *Repository) FindByID(ctx context.Context, userID int64) (*domain.User, error) {
	query := `
        SELECT user_id, username, first_name, balance, referral_count, referred_by, last_bonus_at, created_at
        FROM users
        WHERE user_id = $1
    `
	var user domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.Balance,
		&user.ReferralCount, &user.ReferredBy, &user.LastBonusAt, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

// FindByIDForUpdate locks the user row for the duration of the surrounding
// transaction, serializing concurrent claims against the same user.
func (r *Repository) FindByIDForUpdate(ctx context.Context, userID int64) (*domain.User, error) {
	query := `
        SELECT user_id, username, first_name, balance, referral_count, referred_by, last_bonus_at, created_at
        FROM users
        WHERE user_id = $1
        FOR UPDATE
    `
	var user domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.Balance,
		&user.ReferralCount, &user.ReferredBy, &user.LastBonusAt, &user.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find user", zap.Error(err))
		return nil, err
	}
	return &user, nil
}

func (r *Repository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (user_id, username, first_name, referred_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, user.ID, user.Username, user.FirstName, user.ReferredBy).Scan(&user.CreatedAt)
	if err != nil {
		zap.L().Error("can't save user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

func (r *Repository) UpdateIdentity(ctx context.Context, userID int64, username, firstName string) error {
	query := `
		UPDATE users
		SET username = $1, first_name = $2
		WHERE user_id = $3
	`
	if _, err := r.db.Exec(ctx, query, username, firstName, userID); err != nil {
		zap.L().Error("failed to update user identity", zap.Error(err))
		return err
	}
	return nil
}

// Credit atomically adds amount to the balance and returns the new value.
func (r *Repository) Credit(ctx context.Context, userID int64, amount float64) (float64, error) {
	query := `
		UPDATE users
		SET balance = balance + $1
		WHERE user_id = $2
		RETURNING balance
	`
	var balance float64
	err := r.db.QueryRow(ctx, query, amount, userID).Scan(&balance)
	if err != nil {
		zap.L().Error("failed to credit user balance", zap.Error(err))
		return 0, err
	}
	return balance, nil
}

// Debit atomically subtracts amount from the balance. The update is guarded
// so the balance can never go negative; applied reports whether the debit
// took effect.
func (r *Repository) Debit(ctx context.Context, userID int64, amount float64) (balance float64, applied bool, err error) {
	query := `
		UPDATE users
		SET balance = balance - $1
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance
	`
	err = r.db.QueryRow(ctx, query, amount, userID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		zap.L().Error("failed to debit user balance", zap.Error(err))
		return 0, false, err
	}
	return balance, true, nil
}

// AddReferralReward credits the referrer and bumps its referral counter in
// one statement.
func (r *Repository) AddReferralReward(ctx context.Context, referrerID int64, reward float64) error {
	query := `
		UPDATE users
		SET balance = balance + $1, referral_count = referral_count + 1
		WHERE user_id = $2
	`
	if _, err := r.db.Exec(ctx, query, reward, referrerID); err != nil {
		zap.L().Error("failed to add referral reward", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) SetLastBonusAt(ctx context.Context, userID int64, at time.Time) error {
	query := `
		UPDATE users
		SET last_bonus_at = $1
		WHERE user_id = $2
	`
	if _, err := r.db.Exec(ctx, query, at, userID); err != nil {
		zap.L().Error("failed to set last bonus time", zap.Error(err))
		return err
	}
	return nil
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count)
	if err != nil {
		zap.L().Error("failed to count users", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *Repository) TopReferrers(ctx context.Context, limit int) ([]domain.User, error) {
	query := `
        SELECT user_id, username, first_name, balance, referral_count, referred_by, last_bonus_at, created_at
        FROM users
        WHERE referral_count > 0
        ORDER BY referral_count DESC, created_at
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		zap.L().Error("failed to fetch top referrers", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var user domain.User
		err := rows.Scan(
			&user.ID, &user.Username, &user.FirstName, &user.Balance,
			&user.ReferralCount, &user.ReferredBy, &user.LastBonusAt, &user.CreatedAt,
		)
		if err != nil {
			zap.L().Error("failed to scan user row", zap.Error(err))
			return nil, err
		}
		users = append(users, user)
	}

	return users, nil
}

func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		zap.L().Error("failed to list user ids", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			zap.L().Error("failed to scan user id", zap.Error(err))
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, nil
}
