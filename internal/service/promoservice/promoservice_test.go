package promoservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
)

type stubSource struct {
	f float64
	n int
}

func (s stubSource) Float64() float64 { return s.f }
func (s stubSource) IntN(int) int     { return s.n }

func NewMock(t *testing.T) (*Service, *MockRepo, *MockUserRepo, *pg.MockTXManager) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	userRepo := NewMockUserRepo(ctrl)
	txManager := pg.NewMockTXManager(ctrl)
	service := New(repo, userRepo, txManager, stubSource{f: 0.5})
	defer ctrl.Finish()
	return service, repo, userRepo, txManager
}

func passthroughTx(txManager *pg.MockTXManager) {
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}

func TestRedeem(t *testing.T) {
	service, repo, userRepo, txManager := NewMock(t)

	rewardMin, rewardMax := 2.0, 8.0
	fixed := &domain.PromoCode{ID: 1, Code: "SPRING", Reward: 15.0}
	randomized := &domain.PromoCode{ID: 2, Code: "LUCKY", IsRandom: true, RewardMin: &rewardMin, RewardMax: &rewardMax}

	tests := []struct {
		name            string
		code            string
		prepareMock     func()
		expectedReward  float64
		expectedBalance float64
		expectedError   error
	}{
		{
			name: "Fixed reward redeemed",
			code: "SPRING",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "SPRING").Return(fixed, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 1).Return(false, nil)
				repo.EXPECT().IncrementUsage(gomock.Any(), 1).Return(true, nil)
				repo.EXPECT().CreateRedemption(gomock.Any(), int64(1), 1).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(1), 15.0).Return(15.0, nil)
			},
			expectedReward:  15.0,
			expectedBalance: 15.0,
		},
		{
			name: "Random reward drawn from range",
			code: "LUCKY",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "LUCKY").Return(randomized, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 2).Return(false, nil)
				repo.EXPECT().IncrementUsage(gomock.Any(), 2).Return(true, nil)
				repo.EXPECT().CreateRedemption(gomock.Any(), int64(1), 2).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(1), 5.0).Return(5.0, nil)
			},
			expectedReward:  5.0,
			expectedBalance: 5.0,
		},
		{
			name: "Code is trimmed before lookup",
			code: "  SPRING  ",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "SPRING").Return(fixed, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 1).Return(false, nil)
				repo.EXPECT().IncrementUsage(gomock.Any(), 1).Return(true, nil)
				repo.EXPECT().CreateRedemption(gomock.Any(), int64(1), 1).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(1), 15.0).Return(15.0, nil)
			},
			expectedReward:  15.0,
			expectedBalance: 15.0,
		},
		{
			name: "Unknown code",
			code: "NOPE",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "NOPE").Return(nil, nil)
			},
			expectedError: ErrPromoNotFound,
		},
		{
			name: "Already redeemed",
			code: "SPRING",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "SPRING").Return(fixed, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 1).Return(true, nil)
			},
			expectedError: ErrAlreadyRedeemed,
		},
		{
			name: "Usage limit reached",
			code: "SPRING",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "SPRING").Return(fixed, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 1).Return(false, nil)
				repo.EXPECT().IncrementUsage(gomock.Any(), 1).Return(false, nil)
			},
			expectedError: ErrPromoExhausted,
		},
		{
			name: "Credit error rolls back",
			code: "SPRING",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindActiveByCodeForUpdate(gomock.Any(), "SPRING").Return(fixed, nil)
				repo.EXPECT().HasRedemption(gomock.Any(), int64(1), 1).Return(false, nil)
				repo.EXPECT().IncrementUsage(gomock.Any(), 1).Return(true, nil)
				repo.EXPECT().CreateRedemption(gomock.Any(), int64(1), 1).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(1), 15.0).Return(0.0, errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			reward, balance, err := service.Redeem(context.Background(), 1, tt.code)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedReward, reward)
				assert.Equal(t, tt.expectedBalance, balance)
			}
		})
	}
}

func TestCreate(t *testing.T) {
	service, repo, _, _ := NewMock(t)

	repo.EXPECT().Create(gomock.Any(), &domain.PromoCode{Code: "WELCOME", Reward: 5.0}).
		Return(&domain.PromoCode{ID: 7, Code: "WELCOME", Reward: 5.0, IsActive: true}, nil)

	created, err := service.Create(context.Background(), &domain.PromoCode{Code: " WELCOME ", Reward: 5.0})
	assert.NoError(t, err)
	assert.Equal(t, 7, created.ID)

	repo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("db error"))
	_, err = service.Create(context.Background(), &domain.PromoCode{Code: "X"})
	assert.Error(t, err)
}
