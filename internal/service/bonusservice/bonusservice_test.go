package bonusservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
)

type stubSource struct {
	f float64
	n int
}

func (s stubSource) Float64() float64 { return s.f }
func (s stubSource) IntN(int) int     { return s.n }

func NewMock(t *testing.T) (*Service, *MockRepo, *MockSettings, *pg.MockTXManager) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	settings := NewMockSettings(ctrl)
	txManager := pg.NewMockTXManager(ctrl)
	service := New(repo, txManager, settings, stubSource{f: 0.5}, Defaults{CooldownHours: 24, Min: 1.0, Max: 5.0})
	defer ctrl.Finish()
	return service, repo, settings, txManager
}

func passthroughTx(txManager *pg.MockTXManager) {
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}

func TestClaim(t *testing.T) {
	service, repo, settings, txManager := NewMock(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	recent := now.Add(-2 * time.Hour)
	expired := now.Add(-25 * time.Hour)

	expectAmountSettings := func() {
		settings.EXPECT().Int(gomock.Any(), settingsservice.KeyBonusCooldownHours, 24).Return(24)
		settings.EXPECT().Float(gomock.Any(), settingsservice.KeyBonusMin, 1.0).Return(1.0)
		settings.EXPECT().Float(gomock.Any(), settingsservice.KeyBonusMax, 5.0).Return(5.0)
	}

	tests := []struct {
		name            string
		prepareMock     func()
		expectedAmount  float64
		expectedBalance float64
		expectedRetry   time.Duration
		expectedError   error
	}{
		{
			name: "First claim",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(&domain.User{ID: 1}, nil)
				expectAmountSettings()
				repo.EXPECT().Credit(gomock.Any(), int64(1), 3.0).Return(3.0, nil)
				repo.EXPECT().SetLastBonusAt(gomock.Any(), int64(1), now).Return(nil)
			},
			expectedAmount:  3.0,
			expectedBalance: 3.0,
		},
		{
			name: "Claim after cooldown expired",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, Balance: 10.0, LastBonusAt: &expired}, nil)
				expectAmountSettings()
				repo.EXPECT().Credit(gomock.Any(), int64(1), 3.0).Return(13.0, nil)
				repo.EXPECT().SetLastBonusAt(gomock.Any(), int64(1), now).Return(nil)
			},
			expectedAmount:  3.0,
			expectedBalance: 13.0,
		},
		{
			name: "Cooldown still active",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, LastBonusAt: &recent}, nil)
				settings.EXPECT().Int(gomock.Any(), settingsservice.KeyBonusCooldownHours, 24).Return(24)
			},
			expectedRetry: 22 * time.Hour,
			expectedError: ErrCooldownActive,
		},
		{
			name: "Unknown user",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(nil, nil)
			},
			expectedError: ErrUserNotFound,
		},
		{
			name: "Credit error rolls back",
			prepareMock: func() {
				passthroughTx(txManager)
				repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(&domain.User{ID: 1}, nil)
				expectAmountSettings()
				repo.EXPECT().Credit(gomock.Any(), int64(1), 3.0).Return(0.0, errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			amount, balance, retryIn, err := service.Claim(context.Background(), 1)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
				assert.Equal(t, tt.expectedRetry, retryIn)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedAmount, amount)
				assert.Equal(t, tt.expectedBalance, balance)
			}
		})
	}
}

func TestClaimUsesConfiguredCooldown(t *testing.T) {
	service, repo, settings, txManager := NewMock(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	// With the cooldown reduced to one hour a two-hour-old claim is allowed.
	last := now.Add(-2 * time.Hour)
	passthroughTx(txManager)
	repo.EXPECT().FindByIDForUpdate(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, LastBonusAt: &last}, nil)
	settings.EXPECT().Int(gomock.Any(), settingsservice.KeyBonusCooldownHours, 24).Return(1)
	settings.EXPECT().Float(gomock.Any(), settingsservice.KeyBonusMin, 1.0).Return(2.0)
	settings.EXPECT().Float(gomock.Any(), settingsservice.KeyBonusMax, 5.0).Return(4.0)
	repo.EXPECT().Credit(gomock.Any(), int64(1), 3.0).Return(3.0, nil)
	repo.EXPECT().SetLastBonusAt(gomock.Any(), int64(1), now).Return(nil)

	amount, _, _, err := service.Claim(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 3.0, amount)
}
