package gamerepo

import (
	"context"
	"time"

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

// CreateRound appends an audit entry; rounds are never mutated afterwards.
func (r *Repository) CreateRound(ctx context.Context, round *domain.GameRound) (*domain.GameRound, error) {
	query := `
		INSERT INTO game_rounds (user_id, game_type, bet, outcome, payout)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, played_at
	`
	err := r.db.QueryRow(ctx, query,
		round.UserID, round.GameType, round.Bet, round.Outcome, round.Payout,
	).Scan(&round.ID, &round.PlayedAt)
	if err != nil {
		zap.L().Error("can't save game round", zap.Error(err))
		return nil, err
	}
	return round, nil
}

func (r *Repository) CountRoundsSince(ctx context.Context, userID int64, gameType string, since time.Time) (int, error) {
	query := `
        SELECT count(*)
        FROM game_rounds
        WHERE user_id = $1 AND game_type = $2 AND played_at >= $3
    `
	var count int
	err := r.db.QueryRow(ctx, query, userID, gameType, since).Scan(&count)
	if err != nil {
		zap.L().Error("failed to count game rounds", zap.Error(err))
		return 0, err
	}
	return count, nil
}
