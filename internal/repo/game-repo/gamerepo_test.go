package gamerepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/srvnk/starsbot/internal/domain"
)

func NewMock(t *testing.T) (*Repository, pgxmock.PgxPoolIface) {
	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	repo := New(mockDB)
	defer mockDB.Close()

	return repo, mockDB
}

func TestRepository_CreateRound(t *testing.T) {
	repo, mock := NewMock(t)
	playedAt := time.Now()

	tests := []struct {
		name      string
		mockSetup func()
		expectErr bool
	}{
		{
			name: "Round recorded",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO game_rounds (user_id, game_type, bet, outcome, payout) VALUES ($1, $2, $3, $4, $5) RETURNING id, played_at`)).
					WithArgs(int64(1), "football", 10.0, domain.WinOutcome, 30.0).
					WillReturnRows(pgxmock.NewRows([]string{"id", "played_at"}).AddRow(5, playedAt))
			},
		},
		{
			name: "Database error",
			mockSetup: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO game_rounds (user_id, game_type, bet, outcome, payout) VALUES ($1, $2, $3, $4, $5) RETURNING id, played_at`)).
					WithArgs(int64(1), "football", 10.0, domain.WinOutcome, 30.0).
					WillReturnError(errors.New("database error"))
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockSetup()
			round := &domain.GameRound{UserID: 1, GameType: "football", Bet: 10.0, Outcome: domain.WinOutcome, Payout: 30.0}
			result, err := repo.CreateRound(context.Background(), round)

			if tt.expectErr {
				assert.Error(t, err)
				assert.Nil(t, result)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, 5, result.ID)
				assert.Equal(t, playedAt, result.PlayedAt)
			}
		})
	}
}

func TestRepository_CountRoundsSince(t *testing.T) {
	repo, mock := NewMock(t)
	since := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM game_rounds WHERE user_id = $1 AND game_type = $2 AND played_at >= $3`)).
		WithArgs(int64(1), "slots", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountRoundsSince(context.Background(), 1, "slots", since)
	assert.NoError(t, err)
	assert.Equal(t, 4, count)
}
