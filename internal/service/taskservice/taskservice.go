package taskservice

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/membership"
	"github.com/srvnk/starsbot/internal/pg"
)

type Repo interface {
	FindByID(ctx context.Context, taskID int) (*domain.Task, error)
	ListActive(ctx context.Context) ([]domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	HasCompletion(ctx context.Context, userID int64, taskID int) (bool, error)
	CreateCompletion(ctx context.Context, userID int64, taskID int) error
	CompletedTaskIDs(ctx context.Context, userID int64) (map[int]struct{}, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	SetActive(ctx context.Context, taskID int, active bool) error
	Delete(ctx context.Context, taskID int) error
}

type UserRepo interface {
	FindByID(ctx context.Context, userID int64) (*domain.User, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
}

type MembershipChecker interface {
	IsMember(ctx context.Context, channel string, userID int64) (bool, error)
}

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskInactive     = errors.New("task inactive")
	ErrTaskUnavailable  = errors.New("task unavailable")
	ErrAlreadyCompleted = errors.New("task already completed")
	ErrNotCompleted     = errors.New("task requirements not met")
	ErrCheckFailed      = errors.New("task check temporarily unavailable")
)

type Service struct {
	repo      Repo
	userRepo  UserRepo
	txManager pg.TXManager
	checker   MembershipChecker
}

func New(repo Repo, userRepo UserRepo, txManager pg.TXManager, checker MembershipChecker) *Service {
	return &Service{
		repo:      repo,
		userRepo:  userRepo,
		txManager: txManager,
		checker:   checker,
	}
}

// ListAvailable returns active tasks the user has not completed yet.
func (s *Service) ListAvailable(ctx context.Context, userID int64) ([]domain.Task, error) {
	tasks, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	completed, err := s.repo.CompletedTaskIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	available := make([]domain.Task, 0, len(tasks))
	for _, task := range tasks {
		if _, ok := completed[task.ID]; !ok {
			available = append(available, task)
		}
	}
	return available, nil
}

// Check verifies the task requirement and pays the reward on success. A
// subscription task whose channel the bot can no longer see is deactivated
// on the spot so it stops being offered.
func (s *Service) Check(ctx context.Context, userID int64, taskID int) (reward, balance float64, err error) {
	task, err := s.repo.FindByID(ctx, taskID)
	if err != nil {
		return 0, 0, err
	}
	if task == nil {
		return 0, 0, ErrTaskNotFound
	}
	if !task.IsActive {
		return 0, 0, ErrTaskInactive
	}

	done, err := s.repo.HasCompletion(ctx, userID, taskID)
	if err != nil {
		return 0, 0, err
	}
	if done {
		return 0, 0, ErrAlreadyCompleted
	}

	switch task.Type {
	case domain.TaskTypeSubscribe:
		ok, err := s.checker.IsMember(ctx, task.ChannelID, userID)
		if err != nil {
			if errors.Is(err, membership.ErrChannelInaccessible) {
				zap.L().Warn("deactivating task with inaccessible channel",
					zap.Int("taskID", taskID), zap.String("channel", task.ChannelID))
				if derr := s.repo.SetActive(ctx, taskID, false); derr != nil {
					zap.L().Error("failed to deactivate task", zap.Int("taskID", taskID), zap.Error(derr))
				}
				return 0, 0, ErrTaskUnavailable
			}
			zap.L().Warn("membership check failed", zap.Int("taskID", taskID), zap.Error(err))
			return 0, 0, ErrCheckFailed
		}
		if !ok {
			return 0, 0, ErrNotCompleted
		}
	case domain.TaskTypeReferrals:
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			return 0, 0, err
		}
		if user == nil || user.ReferralCount < task.TargetValue {
			return 0, 0, ErrNotCompleted
		}
	default:
		zap.L().Error("unknown task type", zap.Int("taskID", taskID), zap.String("type", task.Type))
		return 0, 0, ErrTaskUnavailable
	}

	err = s.txManager.Begin(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateCompletion(ctx, userID, taskID); err != nil {
			return err
		}
		balance, err = s.userRepo.Credit(ctx, userID, task.Reward)
		return err
	})
	if err != nil {
		zap.L().Error("failed to complete task", zap.Int64("userID", userID), zap.Int("taskID", taskID), zap.Error(err))
		return 0, 0, err
	}
	return task.Reward, balance, nil
}

func (s *Service) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	created, err := s.repo.Create(ctx, task)
	if err != nil {
		zap.L().Error("failed to create task", zap.Error(err))
		return nil, err
	}
	return created, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Task, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetActive(ctx context.Context, taskID int, active bool) error {
	return s.repo.SetActive(ctx, taskID, active)
}

func (s *Service) Delete(ctx context.Context, taskID int) error {
	return s.repo.Delete(ctx, taskID)
}
