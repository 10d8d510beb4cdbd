package service

import (
	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/repo"
	"github.com/srvnk/starsbot/internal/service/bonusservice"
	"github.com/srvnk/starsbot/internal/service/gameservice"
	"github.com/srvnk/starsbot/internal/service/promoservice"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/internal/service/taskservice"
	"github.com/srvnk/starsbot/internal/service/userservice"
	"github.com/srvnk/starsbot/internal/service/withdrawservice"
	"github.com/srvnk/starsbot/pkg/random"
)

type Services struct {
	Settings *settingsservice.Service
	User     *userservice.Service
	Bonus    *bonusservice.Service
	Promo    *promoservice.Service
	Task     *taskservice.Service
	Game     *gameservice.Service
	Withdraw *withdrawservice.Service
}

func New(
	cfg *config.Config,
	repos *repo.Repositories,
	txManager pg.TXManager,
	checker taskservice.MembershipChecker,
	messenger withdrawservice.Messenger,
	rng random.Source,
) *Services {
	settings := settingsservice.New(repos.Settings)

	return &Services{
		Settings: settings,
		User:     userservice.New(repos.User, txManager, settings, cfg.ReferralReward),
		Bonus: bonusservice.New(repos.User, txManager, settings, rng, bonusservice.Defaults{
			CooldownHours: cfg.BonusCooldownHr,
			Min:           cfg.BonusMin,
			Max:           cfg.BonusMax,
		}),
		Promo:    promoservice.New(repos.Promo, repos.User, txManager, rng),
		Task:     taskservice.New(repos.Task, repos.User, txManager, checker),
		Game:     gameservice.New(repos.Game, repos.User, txManager, settings, rng),
		Withdraw: withdrawservice.New(repos.Withdrawal, repos.User, txManager, messenger, withdrawservice.NewChallengeStore(rng)),
	}
}
