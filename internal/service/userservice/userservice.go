package userservice

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
)

type Repo interface {
	FindByID(ctx context.Context, userID int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateIdentity(ctx context.Context, userID int64, username, firstName string) error
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	AddReferralReward(ctx context.Context, referrerID int64, reward float64) error
	Count(ctx context.Context) (int, error)
	TopReferrers(ctx context.Context, limit int) ([]domain.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

type Settings interface {
	Float(ctx context.Context, key string, def float64) float64
}

var ErrUserNotFound = errors.New("user not found")

type Service struct {
	repo                  Repo
	txManager             pg.TXManager
	settings              Settings
	defaultReferralReward float64
}

func New(repo Repo, txManager pg.TXManager, settings Settings, defaultReferralReward float64) *Service {
	return &Service{
		repo:                  repo,
		txManager:             txManager,
		settings:              settings,
		defaultReferralReward: defaultReferralReward,
	}
}

// Register upserts a user by its stable id. A referrer is attached only on
// first sight and only when it is an existing account other than the user
// itself; the referral reward is credited in the same transaction.
func (s *Service) Register(ctx context.Context, userID int64, username, firstName string, referrerID int64) (user *domain.User, isNew bool, rewardGiven float64, err error) {
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		existing, err := s.repo.FindByID(ctx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Username != username || existing.FirstName != firstName {
				if err := s.repo.UpdateIdentity(ctx, userID, username, firstName); err != nil {
					return err
				}
				existing.Username = username
				existing.FirstName = firstName
			}
			user = existing
			return nil
		}

		var referredBy *int64
		if referrerID != 0 && referrerID != userID {
			referrer, err := s.repo.FindByID(ctx, referrerID)
			if err != nil {
				return err
			}
			if referrer != nil {
				referredBy = &referrerID
			}
		}

		created, err := s.repo.Create(ctx, &domain.User{
			ID:         userID,
			Username:   username,
			FirstName:  firstName,
			ReferredBy: referredBy,
		})
		if err != nil {
			return err
		}

		if referredBy != nil {
			reward := s.settings.Float(ctx, settingsservice.KeyReferralReward, s.defaultReferralReward)
			if err := s.repo.AddReferralReward(ctx, *referredBy, reward); err != nil {
				return err
			}
			rewardGiven = reward
		}

		user = created
		isNew = true
		return nil
	})
	if err != nil {
		zap.L().Error("failed to register user", zap.Int64("userID", userID), zap.Error(err))
		return nil, false, 0, err
	}
	return user, isNew, rewardGiven, nil
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to get user", zap.Error(err))
		return nil, err
	}
	return user, nil
}

// Credit adds an arbitrary amount to a user's balance (admin action).
func (s *Service) Credit(ctx context.Context, userID int64, amount float64) (float64, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, ErrUserNotFound
	}
	balance, err := s.repo.Credit(ctx, userID, amount)
	if err != nil {
		zap.L().Error("failed to credit user", zap.Int64("userID", userID), zap.Error(err))
		return 0, err
	}
	return balance, nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) TopReferrers(ctx context.Context, limit int) ([]domain.User, error) {
	users, err := s.repo.TopReferrers(ctx, limit)
	if err != nil {
		zap.L().Error("failed to get top referrers", zap.Error(err))
		return nil, err
	}
	return users, nil
}

func (s *Service) ListIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ListIDs(ctx)
}
