package withdrawservice

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/pg"
)

type Repo interface {
	Create(ctx context.Context, withdrawal *domain.Withdrawal) (*domain.Withdrawal, error)
	FindByID(ctx context.Context, id int) (*domain.Withdrawal, error)
	SetMessageIDs(ctx context.Context, id int, moderationID, publicID *int) error
	MarkProcessed(ctx context.Context, id int, status string, processedAt time.Time) (bool, error)
	ListByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	PendingCount(ctx context.Context) (int, error)
	ApprovedTotal(ctx context.Context) (float64, error)
}

type UserRepo interface {
	FindByID(ctx context.Context, userID int64) (*domain.User, error)
	Debit(ctx context.Context, userID int64, amount float64) (balance float64, applied bool, err error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	Count(ctx context.Context) (int, error)
}

// Messenger delivers withdrawal notifications to the moderation channel, the
// public payments channel and the requesting user. Every call is best-effort
// from the service's point of view.
type Messenger interface {
	SendModeration(withdrawal *domain.Withdrawal, user *domain.User) (int, error)
	SendPublic(withdrawal *domain.Withdrawal, user *domain.User) (int, error)
	EditModeration(messageID int, withdrawal *domain.Withdrawal, user *domain.User) error
	EditPublic(messageID int, withdrawal *domain.Withdrawal, user *domain.User) error
	NotifyUser(userID int64, withdrawal *domain.Withdrawal) error
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("withdrawal not found")
	ErrAlreadyProcessed  = errors.New("withdrawal already processed")
)

type Service struct {
	repo       Repo
	userRepo   UserRepo
	txManager  pg.TXManager
	messenger  Messenger
	challenges *ChallengeStore
	now        func() time.Time
}

func New(repo Repo, userRepo UserRepo, txManager pg.TXManager, messenger Messenger, challenges *ChallengeStore) *Service {
	return &Service{
		repo:       repo,
		userRepo:   userRepo,
		txManager:  txManager,
		messenger:  messenger,
		challenges: challenges,
		now:        time.Now,
	}
}

// NewChallenge issues an arithmetic question the user must answer before a
// withdrawal request is accepted.
func (s *Service) NewChallenge(userID int64) (string, error) {
	return s.challenges.NewChallenge(userID)
}

func (s *Service) SubmitAnswer(userID int64, answer int) error {
	return s.challenges.SubmitAnswer(userID, answer)
}

// Request debits the amount and records a pending withdrawal in one
// transaction. The channel notifications happen after commit; a failed send
// only leaves the corresponding message id unset.
func (s *Service) Request(ctx context.Context, userID int64, amount float64) (*domain.Withdrawal, error) {
	if _, locked := s.challenges.Locked(userID); locked {
		return nil, ErrLockedOut
	}

	var withdrawal *domain.Withdrawal
	err := s.txManager.Begin(ctx, func(ctx context.Context) error {
		_, applied, err := s.userRepo.Debit(ctx, userID, amount)
		if err != nil {
			return err
		}
		if !applied {
			return ErrInsufficientFunds
		}
		withdrawal, err = s.repo.Create(ctx, &domain.Withdrawal{
			UserID: userID,
			Amount: amount,
			Status: domain.PendingWithdrawalStatus,
		})
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInsufficientFunds) {
			zap.L().Error("failed to create withdrawal", zap.Int64("userID", userID), zap.Error(err))
		}
		return nil, err
	}

	s.announce(ctx, withdrawal)
	return withdrawal, nil
}

// announce posts the new request to both channels and stores whichever
// message ids came back.
func (s *Service) announce(ctx context.Context, withdrawal *domain.Withdrawal) {
	user, err := s.userRepo.FindByID(ctx, withdrawal.UserID)
	if err != nil {
		zap.L().Warn("skipping withdrawal announcements", zap.Int("id", withdrawal.ID), zap.Error(err))
		return
	}

	if id, err := s.messenger.SendModeration(withdrawal, user); err != nil {
		zap.L().Warn("failed to post to moderation channel", zap.Int("id", withdrawal.ID), zap.Error(err))
	} else {
		withdrawal.ModerationMessageID = &id
	}
	if id, err := s.messenger.SendPublic(withdrawal, user); err != nil {
		zap.L().Warn("failed to post to payments channel", zap.Int("id", withdrawal.ID), zap.Error(err))
	} else {
		withdrawal.PublicMessageID = &id
	}

	if withdrawal.ModerationMessageID == nil && withdrawal.PublicMessageID == nil {
		return
	}
	if err := s.repo.SetMessageIDs(ctx, withdrawal.ID, withdrawal.ModerationMessageID, withdrawal.PublicMessageID); err != nil {
		zap.L().Warn("failed to store withdrawal message ids", zap.Int("id", withdrawal.ID), zap.Error(err))
	}
}

// Approve transitions pending → approved. The funds were debited at request
// time, so no balance change happens here.
func (s *Service) Approve(ctx context.Context, id int) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal == nil {
		return nil, ErrNotFound
	}

	processedAt := s.now()
	applied, err := s.repo.MarkProcessed(ctx, id, domain.ApprovedWithdrawalStatus, processedAt)
	if err != nil {
		zap.L().Error("failed to approve withdrawal", zap.Int("id", id), zap.Error(err))
		return nil, err
	}
	if !applied {
		return nil, ErrAlreadyProcessed
	}
	withdrawal.Status = domain.ApprovedWithdrawalStatus
	withdrawal.ProcessedAt = &processedAt

	s.publishResolution(ctx, withdrawal)
	return withdrawal, nil
}

// Reject transitions pending → rejected and returns the funds. Status change
// and refund commit together.
func (s *Service) Reject(ctx context.Context, id int) (*domain.Withdrawal, error) {
	withdrawal, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal == nil {
		return nil, ErrNotFound
	}

	processedAt := s.now()
	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		applied, err := s.repo.MarkProcessed(ctx, id, domain.RejectedWithdrawalStatus, processedAt)
		if err != nil {
			return err
		}
		if !applied {
			return ErrAlreadyProcessed
		}
		_, err = s.userRepo.Credit(ctx, withdrawal.UserID, withdrawal.Amount)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrAlreadyProcessed) {
			zap.L().Error("failed to reject withdrawal", zap.Int("id", id), zap.Error(err))
		}
		return nil, err
	}
	withdrawal.Status = domain.RejectedWithdrawalStatus
	withdrawal.ProcessedAt = &processedAt

	s.publishResolution(ctx, withdrawal)
	return withdrawal, nil
}

// publishResolution updates both channel messages and tells the user. The
// three sends are independent; one failing does not stop the others.
func (s *Service) publishResolution(ctx context.Context, withdrawal *domain.Withdrawal) {
	user, err := s.userRepo.FindByID(ctx, withdrawal.UserID)
	if err != nil {
		zap.L().Warn("skipping withdrawal resolution messages", zap.Int("id", withdrawal.ID), zap.Error(err))
		return
	}

	if withdrawal.ModerationMessageID != nil {
		if err := s.messenger.EditModeration(*withdrawal.ModerationMessageID, withdrawal, user); err != nil {
			zap.L().Warn("failed to edit moderation message", zap.Int("id", withdrawal.ID), zap.Error(err))
		}
	}
	if withdrawal.PublicMessageID != nil {
		if err := s.messenger.EditPublic(*withdrawal.PublicMessageID, withdrawal, user); err != nil {
			zap.L().Warn("failed to edit payments message", zap.Int("id", withdrawal.ID), zap.Error(err))
		}
	}
	if err := s.messenger.NotifyUser(withdrawal.UserID, withdrawal); err != nil {
		zap.L().Warn("failed to notify user", zap.Int("id", withdrawal.ID), zap.Error(err))
	}
}

func (s *Service) History(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	return s.repo.ListByUserID(ctx, userID)
}

func (s *Service) FindByID(ctx context.Context, id int) (*domain.Withdrawal, error) {
	return s.repo.FindByID(ctx, id)
}

// Stats collects the aggregate numbers for the admin panel.
func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	users, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.repo.PendingCount(ctx)
	if err != nil {
		return nil, err
	}
	approved, err := s.repo.ApprovedTotal(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Stats{UserCount: users, PendingCount: pending, ApprovedTotal: approved}, nil
}
