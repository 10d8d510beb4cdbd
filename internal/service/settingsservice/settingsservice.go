package settingsservice

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Setting keys managed through the admin panel. Absent or unparsable values
// fall back to the documented defaults.
const (
	KeyReferralReward     = "referral_reward"
	KeyBonusCooldownHours = "bonus_cooldown_hours"
	KeyBonusMin           = "bonus_min"
	KeyBonusMax           = "bonus_max"
	KeyPaymentsChannelID  = "payments_channel_id"
	KeyPaymentsChannelURL = "payments_channel_url"
)

// GameKey builds the per-game setting key, e.g. game_football_coeff.
func GameKey(gameType, field string) string {
	return fmt.Sprintf("game_%s_%s", gameType, field)
}

type Repo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Service struct {
	repo Repo
}

func New(repo Repo) *Service {
	return &Service{
		repo: repo,
	}
}

func (s *Service) String(ctx context.Context, key, def string) string {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil || !found {
		return def
	}
	return value
}

func (s *Service) Float(ctx context.Context, key string, def float64) float64 {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil || !found {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		zap.L().Warn("unparsable setting value, using default",
			zap.String("key", key), zap.String("value", value), zap.Float64("default", def))
		return def
	}
	return parsed
}

func (s *Service) Int(ctx context.Context, key string, def int) int {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil || !found {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		zap.L().Warn("unparsable setting value, using default",
			zap.String("key", key), zap.String("value", value), zap.Int("default", def))
		return def
	}
	return parsed
}

// Bool reads "1" as true and "0" as false, anything else as the default.
func (s *Service) Bool(ctx context.Context, key string, def bool) bool {
	value, found, err := s.repo.Get(ctx, key)
	if err != nil || !found {
		return def
	}
	switch value {
	case "1":
		return true
	case "0":
		return false
	default:
		zap.L().Warn("unparsable setting value, using default",
			zap.String("key", key), zap.String("value", value), zap.Bool("default", def))
		return def
	}
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	if err := s.repo.Set(ctx, key, value); err != nil {
		zap.L().Error("failed to store setting", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
