package promoservice

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/pkg/random"
)

type Repo interface {
	FindActiveByCodeForUpdate(ctx context.Context, code string) (*domain.PromoCode, error)
	HasRedemption(ctx context.Context, userID int64, promoID int) (bool, error)
	IncrementUsage(ctx context.Context, promoID int) (bool, error)
	CreateRedemption(ctx context.Context, userID int64, promoID int) error
	Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error)
	List(ctx context.Context) ([]domain.PromoCode, error)
	SetActive(ctx context.Context, promoID int, active bool) error
	Delete(ctx context.Context, promoID int) error
}

type UserRepo interface {
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
}

var (
	ErrPromoNotFound   = errors.New("promo code not found")
	ErrAlreadyRedeemed = errors.New("promo code already redeemed")
	ErrPromoExhausted  = errors.New("promo code usage limit reached")
)

type Service struct {
	repo      Repo
	userRepo  UserRepo
	txManager pg.TXManager
	rng       random.Source
}

func New(repo Repo, userRepo UserRepo, txManager pg.TXManager, rng random.Source) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		txManager: txManager,
		rng:       rng,
	}
}

// Redeem applies a promo code to a user. The code row is locked for the
// duration of the transaction, so concurrent redemptions of the same code
// serialize and the usage limit cannot be oversold.
func (s *Service) Redeem(ctx context.Context, userID int64, code string) (reward, balance float64, err error) {
	code = strings.TrimSpace(code)
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		promo, err := s.repo.FindActiveByCodeForUpdate(ctx, code)
		if err != nil {
			return err
		}
		if promo == nil {
			return ErrPromoNotFound
		}

		redeemed, err := s.repo.HasRedemption(ctx, userID, promo.ID)
		if err != nil {
			return err
		}
		if redeemed {
			return ErrAlreadyRedeemed
		}

		applied, err := s.repo.IncrementUsage(ctx, promo.ID)
		if err != nil {
			return err
		}
		if !applied {
			return ErrPromoExhausted
		}

		if err := s.repo.CreateRedemption(ctx, userID, promo.ID); err != nil {
			return err
		}

		reward = promo.Reward
		if promo.IsRandom && promo.RewardMin != nil && promo.RewardMax != nil {
			reward = random.Amount(s.rng, *promo.RewardMin, *promo.RewardMax)
		}

		balance, err = s.userRepo.Credit(ctx, userID, reward)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrPromoNotFound), errors.Is(err, ErrAlreadyRedeemed), errors.Is(err, ErrPromoExhausted):
		default:
			zap.L().Error("failed to redeem promo code", zap.Int64("userID", userID), zap.Error(err))
		}
		return 0, 0, err
	}
	return reward, balance, nil
}

func (s *Service) Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	promo.Code = strings.TrimSpace(promo.Code)
	created, err := s.repo.Create(ctx, promo)
	if err != nil {
		zap.L().Error("failed to create promo code", zap.Error(err))
		return nil, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]domain.PromoCode, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetActive(ctx context.Context, promoID int, active bool) error {
	return s.repo.SetActive(ctx, promoID, active)
}

func (s *Service) Delete(ctx context.Context, promoID int) error {
	return s.repo.Delete(ctx, promoID)
}
