package bonusservice

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/pkg/random"
)

type Repo interface {
	FindByIDForUpdate(ctx context.Context, userID int64) (*domain.User, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	SetLastBonusAt(ctx context.Context, userID int64, at time.Time) error
}

type Settings interface {
	Float(ctx context.Context, key string, def float64) float64
	Int(ctx context.Context, key string, def int) int
}

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrCooldownActive = errors.New("bonus cooldown active")
)

type Defaults struct {
	CooldownHours int
	Min           float64
	Max           float64
}

type Service struct {
	repo      Repo
	txManager pg.TXManager
	settings  Settings
	rng       random.Source
	defaults  Defaults
	now       func() time.Time
}

func New(repo Repo, txManager pg.TXManager, settings Settings, rng random.Source, defaults Defaults) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		settings:  settings,
		rng:       rng,
		defaults:  defaults,
		now:       time.Now,
	}
}

// Claim grants a random bonus once per cooldown window. The user row is
// locked for the transaction so two racing requests cannot both pass the
// cooldown check.
func (s *Service) Claim(ctx context.Context, userID int64) (amount, balance float64, retryIn time.Duration, err error) {
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		user, err := s.repo.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}

		now := s.now()
		cooldown := time.Duration(s.settings.Int(ctx, settingsservice.KeyBonusCooldownHours, s.defaults.CooldownHours)) * time.Hour
		if user.LastBonusAt != nil {
			elapsed := now.Sub(*user.LastBonusAt)
			if elapsed < cooldown {
				retryIn = cooldown - elapsed
				return ErrCooldownActive
			}
		}

		min := s.settings.Float(ctx, settingsservice.KeyBonusMin, s.defaults.Min)
		max := s.settings.Float(ctx, settingsservice.KeyBonusMax, s.defaults.Max)
		amount = random.Amount(s.rng, min, max)

		balance, err = s.repo.Credit(ctx, userID, amount)
		if err != nil {
			return err
		}
		return s.repo.SetLastBonusAt(ctx, userID, now)
	})
	if err != nil {
		if !errors.Is(err, ErrCooldownActive) {
			zap.L().Error("failed to claim bonus", zap.Int64("userID", userID), zap.Error(err))
		}
		return 0, 0, retryIn, err
	}
	return amount, balance, 0, nil
}
