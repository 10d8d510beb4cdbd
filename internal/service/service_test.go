package service

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/repo"
	"github.com/srvnk/starsbot/internal/service/taskservice"
	"github.com/srvnk/starsbot/internal/service/withdrawservice"
	"github.com/srvnk/starsbot/pkg/random"
)

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockDB, err := pgxmock.NewPool()
	assert.NoError(t, err)
	defer mockDB.Close()

	cfg := &config.Config{ReferralReward: 5.0, BonusCooldownHr: 24, BonusMin: 0.5, BonusMax: 1.0}
	services := New(
		cfg,
		repo.New(mockDB),
		pg.NewMockTXManager(ctrl),
		taskservice.NewMockMembershipChecker(ctrl),
		withdrawservice.NewMockMessenger(ctrl),
		random.New(),
	)

	assert.NotNil(t, services.Settings)
	assert.NotNil(t, services.User)
	assert.NotNil(t, services.Bonus)
	assert.NotNil(t, services.Promo)
	assert.NotNil(t, services.Task)
	assert.NotNil(t, services.Game)
	assert.NotNil(t, services.Withdraw)
}
