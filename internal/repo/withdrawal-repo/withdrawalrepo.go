package withdrawalrepo

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

const withdrawalColumns = `id, user_id, amount, status, created_at, processed_at, moderation_message_id, public_message_id`

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var wd domain.Withdrawal
	err := row.Scan(
		&wd.ID, &wd.UserID, &wd.Amount, &wd.Status, &wd.CreatedAt,
		&wd.ProcessedAt, &wd.ModerationMessageID, &wd.PublicMessageID,
	)
	if err != nil {
		return nil, err
	}
	return &wd, nil
}

func (r *Repository) Create(ctx context.Context, withdrawal *domain.Withdrawal) (*domain.Withdrawal, error) {
	query := `
		INSERT INTO withdrawals (user_id, amount, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query, withdrawal.UserID, withdrawal.Amount, withdrawal.Status).
		Scan(&withdrawal.ID, &withdrawal.CreatedAt)
	if err != nil {
		zap.L().Error("can't save withdrawal", zap.Error(err))
		return nil, err
	}
	return withdrawal, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*domain.Withdrawal, error) {
	query := `
        SELECT ` + withdrawalColumns + `
        FROM withdrawals
        WHERE id = $1
    `
	wd, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		zap.L().Error("can't find withdrawal", zap.Error(err))
		return nil, err
	}
	return wd, nil
}

// SetMessageIDs stores the external correlation handles; nil values are kept
// null so a failed send stays unrecorded.
func (r *Repository) SetMessageIDs(ctx context.Context, id int, moderationID, publicID *int) error {
	query := `
		UPDATE withdrawals
		SET moderation_message_id = COALESCE($1, moderation_message_id),
		    public_message_id = COALESCE($2, public_message_id)
		WHERE id = $3
	`
	if _, err := r.db.Exec(ctx, query, moderationID, publicID, id); err != nil {
		zap.L().Error("failed to set withdrawal message ids", zap.Error(err))
		return err
	}
	return nil
}

// MarkProcessed transitions a pending withdrawal to a terminal status.
// applied is false when the row is absent or already terminal.
func (r *Repository) MarkProcessed(ctx context.Context, id int, status string, processedAt time.Time) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = $1, processed_at = $2
		WHERE id = $3 AND status = $4
	`
	tag, err := r.db.Exec(ctx, query, status, processedAt, id, domain.PendingWithdrawalStatus)
	if err != nil {
		zap.L().Error("failed to mark withdrawal processed", zap.Error(err))
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) ListByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	query := `
        SELECT ` + withdrawalColumns + `
        FROM withdrawals
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		zap.L().Error("failed to fetch withdrawals", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		wd, err := scanWithdrawal(rows)
		if err != nil {
			zap.L().Error("failed to scan withdrawal row", zap.Error(err))
			return nil, err
		}
		withdrawals = append(withdrawals, *wd)
	}

	return withdrawals, nil
}

func (r *Repository) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM withdrawals WHERE status = $1`, domain.PendingWithdrawalStatus).Scan(&count)
	if err != nil {
		zap.L().Error("failed to count pending withdrawals", zap.Error(err))
		return 0, err
	}
	return count, nil
}

func (r *Repository) ApprovedTotal(ctx context.Context) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `SELECT COALESCE(sum(amount), 0) FROM withdrawals WHERE status = $1`, domain.ApprovedWithdrawalStatus).Scan(&total)
	if err != nil {
		zap.L().Error("failed to sum approved withdrawals", zap.Error(err))
		return 0, err
	}
	return total, nil
}
