package gameservice

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/pkg/random"
)

const (
	GameFootball   = "football"
	GameBasketball = "basketball"
	GameBowling    = "bowling"
	GameDice       = "dice"
	GameSlots      = "slots"
)

const (
	SideHigh = "high"
	SideLow  = "low"
)

type Repo interface {
	CreateRound(ctx context.Context, round *domain.GameRound) (*domain.GameRound, error)
	CountRoundsSince(ctx context.Context, userID int64, gameType string, since time.Time) (int, error)
}

type UserRepo interface {
	FindByIDForUpdate(ctx context.Context, userID int64) (*domain.User, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	Debit(ctx context.Context, userID int64, amount float64) (balance float64, applied bool, err error)
}

type Settings interface {
	Float(ctx context.Context, key string, def float64) float64
	Int(ctx context.Context, key string, def int) int
	Bool(ctx context.Context, key string, def bool) bool
}

var (
	ErrUnknownGame       = errors.New("unknown game")
	ErrGameDisabled      = errors.New("game disabled")
	ErrBetTooLow         = errors.New("bet below minimum")
	ErrDailyLimitReached = errors.New("daily game limit reached")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoundAborted      = errors.New("round aborted, bet refunded")
	ErrRoundInProgress   = errors.New("round already in progress")
	ErrNoPendingRound    = errors.New("no pending round")
	ErrInvalidSide       = errors.New("invalid side")
)

// Result is the settled outcome of one round.
type Result struct {
	Draw    int
	Outcome string
	Payout  float64
	Balance float64
}

// Config is the effective per-game configuration after settings overrides.
type Config struct {
	Enabled    bool
	Coeff      float64
	Coeff1     float64
	Coeff2     float64
	MinBet     float64
	DailyLimit int
}

type gameRules struct {
	sides    int
	defaults Config
}

var rules = map[string]gameRules{
	GameFootball:   {sides: 5, defaults: Config{Enabled: true, Coeff: 3.0, MinBet: 1.0}},
	GameBasketball: {sides: 5, defaults: Config{Enabled: true, Coeff: 2.5, MinBet: 1.0}},
	GameBowling:    {sides: 6, defaults: Config{Enabled: true, Coeff: 4.0, MinBet: 1.0}},
	GameDice:       {sides: 6, defaults: Config{Enabled: true, Coeff: 1.9, MinBet: 1.0}},
	GameSlots:      {sides: 64, defaults: Config{Enabled: true, Coeff1: 5.0, Coeff2: 2.0, MinBet: 1.0}},
}

// Types lists the supported game types in menu order.
func Types() []string {
	return []string{GameFootball, GameBasketball, GameBowling, GameDice, GameSlots}
}

type pendingRound struct {
	bet       float64
	startedAt time.Time
}

type Service struct {
	repo      Repo
	userRepo  UserRepo
	txManager pg.TXManager
	settings  Settings
	rng       random.Source
	now       func() time.Time

	mu      sync.Mutex
	pending map[int64]pendingRound
}

func New(repo Repo, userRepo UserRepo, txManager pg.TXManager, settings Settings, rng random.Source) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		txManager: txManager,
		settings:  settings,
		rng:       rng,
		now:       time.Now,
		pending:   make(map[int64]pendingRound),
	}
}

// GameConfig resolves the effective configuration for a game type.
func (s *Service) GameConfig(ctx context.Context, gameType string) (Config, error) {
	r, ok := rules[gameType]
	if !ok {
		return Config{}, ErrUnknownGame
	}
	cfg := Config{
		Enabled:    s.settings.Bool(ctx, settingsservice.GameKey(gameType, "enabled"), r.defaults.Enabled),
		MinBet:     s.settings.Float(ctx, settingsservice.GameKey(gameType, "min_bet"), r.defaults.MinBet),
		DailyLimit: s.settings.Int(ctx, settingsservice.GameKey(gameType, "daily_limit"), r.defaults.DailyLimit),
	}
	if gameType == GameSlots {
		cfg.Coeff1 = s.settings.Float(ctx, settingsservice.GameKey(gameType, "coeff1"), r.defaults.Coeff1)
		cfg.Coeff2 = s.settings.Float(ctx, settingsservice.GameKey(gameType, "coeff2"), r.defaults.Coeff2)
	} else {
		cfg.Coeff = s.settings.Float(ctx, settingsservice.GameKey(gameType, "coeff"), r.defaults.Coeff)
	}
	return cfg, nil
}

// acceptBet validates the round preconditions and debits the bet in one
// transaction. The user row is locked first so a concurrent bet cannot pass
// the daily-limit count before this one debits. The debit happens before the
// draw so the balance can never go negative mid-round.
func (s *Service) acceptBet(ctx context.Context, userID int64, gameType string, bet float64) (Config, error) {
	cfg, err := s.GameConfig(ctx, gameType)
	if err != nil {
		return Config{}, err
	}
	if !cfg.Enabled {
		return Config{}, ErrGameDisabled
	}
	if bet < cfg.MinBet {
		return Config{}, ErrBetTooLow
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if cfg.DailyLimit > 0 {
			if _, err := s.userRepo.FindByIDForUpdate(ctx, userID); err != nil {
				return err
			}
			dayStart := s.now().UTC().Truncate(24 * time.Hour)
			count, err := s.repo.CountRoundsSince(ctx, userID, gameType, dayStart)
			if err != nil {
				return err
			}
			if count >= cfg.DailyLimit {
				return ErrDailyLimitReached
			}
		}

		_, applied, err := s.userRepo.Debit(ctx, userID, bet)
		if err != nil {
			return err
		}
		if !applied {
			return ErrInsufficientFunds
		}
		return nil
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// settle records the round and credits the payout in one transaction. If
// that fails the bet is returned by a compensating credit.
func (s *Service) settle(ctx context.Context, userID int64, gameType string, bet float64, draw int, win bool, coeff float64) (*Result, error) {
	result := &Result{Draw: draw, Outcome: domain.LoseOutcome}
	if win {
		result.Outcome = domain.WinOutcome
		result.Payout = random.Round2(bet * coeff)
	}

	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		_, err := s.repo.CreateRound(ctx, &domain.GameRound{
			UserID:   userID,
			GameType: gameType,
			Bet:      bet,
			Outcome:  result.Outcome,
			Payout:   result.Payout,
		})
		if err != nil {
			return err
		}
		balance, err := s.userRepo.Credit(ctx, userID, result.Payout)
		if err != nil {
			return err
		}
		result.Balance = balance
		return nil
	})
	if err != nil {
		zap.L().Error("failed to settle round, refunding bet",
			zap.Int64("userID", userID), zap.String("game", gameType), zap.Error(err))
		if _, rerr := s.userRepo.Credit(ctx, userID, bet); rerr != nil {
			zap.L().Error("failed to refund bet",
				zap.Int64("userID", userID), zap.Float64("bet", bet), zap.Error(rerr))
		}
		return nil, ErrRoundAborted
	}
	return result, nil
}

// Play runs a full round of any game except dice, which needs a side choice
// between the bet and the draw.
func (s *Service) Play(ctx context.Context, userID int64, gameType string, bet float64) (*Result, error) {
	if gameType == GameDice {
		return nil, ErrInvalidSide
	}
	cfg, err := s.acceptBet(ctx, userID, gameType, bet)
	if err != nil {
		return nil, err
	}

	draw := random.Draw(s.rng, rules[gameType].sides)
	var win bool
	coeff := cfg.Coeff
	switch gameType {
	case GameFootball:
		win = draw == 5
	case GameBasketball:
		win = draw >= 4
	case GameBowling:
		win = draw == 6
	case GameSlots:
		switch {
		case draw <= 3:
			win = true
			coeff = cfg.Coeff1
		case draw <= 10:
			win = true
			coeff = cfg.Coeff2
		}
	}
	return s.settle(ctx, userID, gameType, bet, draw, win, coeff)
}

// StartRound accepts a dice bet and holds it until the player picks a side.
func (s *Service) StartRound(ctx context.Context, userID int64, bet float64) error {
	s.mu.Lock()
	_, busy := s.pending[userID]
	s.mu.Unlock()
	if busy {
		return ErrRoundInProgress
	}

	if _, err := s.acceptBet(ctx, userID, GameDice, bet); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending[userID] = pendingRound{bet: bet, startedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// ChooseSide resolves the held dice round: high wins on 4-6, low on 1-3.
func (s *Service) ChooseSide(ctx context.Context, userID int64, side string) (*Result, error) {
	if side != SideHigh && side != SideLow {
		return nil, ErrInvalidSide
	}

	s.mu.Lock()
	round, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoPendingRound
	}

	cfg, err := s.GameConfig(ctx, GameDice)
	if err != nil {
		return nil, err
	}
	draw := random.Draw(s.rng, rules[GameDice].sides)
	win := (side == SideHigh && draw > 3) || (side == SideLow && draw < 4)
	return s.settle(ctx, userID, GameDice, round.bet, draw, win, cfg.Coeff)
}

// CancelRound refunds a held dice bet without recording a round.
func (s *Service) CancelRound(ctx context.Context, userID int64) error {
	s.mu.Lock()
	round, ok := s.pending[userID]
	if ok {
		delete(s.pending, userID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrNoPendingRound
	}

	if _, err := s.userRepo.Credit(ctx, userID, round.bet); err != nil {
		zap.L().Error("failed to refund cancelled round",
			zap.Int64("userID", userID), zap.Float64("bet", round.bet), zap.Error(err))
		return err
	}
	return nil
}
