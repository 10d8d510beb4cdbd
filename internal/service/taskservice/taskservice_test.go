package taskservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/membership"
	"github.com/srvnk/starsbot/internal/pg"
)

func NewMock(t *testing.T) (*Service, *MockRepo, *MockUserRepo, *MockMembershipChecker, *pg.MockTXManager) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	userRepo := NewMockUserRepo(ctrl)
	checker := NewMockMembershipChecker(ctrl)
	txManager := pg.NewMockTXManager(ctrl)
	service := New(repo, userRepo, txManager, checker)
	defer ctrl.Finish()
	return service, repo, userRepo, checker, txManager
}

func passthroughTx(txManager *pg.MockTXManager) {
	txManager.EXPECT().Begin(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, fn func(ctx context.Context) error) error {
		return fn(ctx)
	})
}

func TestListAvailable(t *testing.T) {
	service, repo, _, _, _ := NewMock(t)

	tasks := []domain.Task{
		{ID: 1, Title: "Join channel", IsActive: true},
		{ID: 2, Title: "Invite friends", IsActive: true},
		{ID: 3, Title: "Join another channel", IsActive: true},
	}
	repo.EXPECT().ListActive(gomock.Any()).Return(tasks, nil)
	repo.EXPECT().CompletedTaskIDs(gomock.Any(), int64(1)).Return(map[int]struct{}{2: {}}, nil)

	available, err := service.ListAvailable(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, []domain.Task{tasks[0], tasks[2]}, available)
}

func TestCheckSubscribeTask(t *testing.T) {
	service, repo, userRepo, checker, txManager := NewMock(t)

	task := &domain.Task{ID: 1, Type: domain.TaskTypeSubscribe, ChannelID: "@news", Reward: 5.0, IsActive: true}

	tests := []struct {
		name            string
		prepareMock     func()
		expectedReward  float64
		expectedBalance float64
		expectedError   error
	}{
		{
			name: "Member gets reward",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(false, nil)
				checker.EXPECT().IsMember(gomock.Any(), "@news", int64(10)).Return(true, nil)
				passthroughTx(txManager)
				repo.EXPECT().CreateCompletion(gomock.Any(), int64(10), 1).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(10), 5.0).Return(25.0, nil)
			},
			expectedReward:  5.0,
			expectedBalance: 25.0,
		},
		{
			name: "Not a member",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(false, nil)
				checker.EXPECT().IsMember(gomock.Any(), "@news", int64(10)).Return(false, nil)
			},
			expectedError: ErrNotCompleted,
		},
		{
			name: "Inaccessible channel deactivates the task",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(false, nil)
				checker.EXPECT().IsMember(gomock.Any(), "@news", int64(10)).Return(false, membership.ErrChannelInaccessible)
				repo.EXPECT().SetActive(gomock.Any(), 1, false).Return(nil)
			},
			expectedError: ErrTaskUnavailable,
		},
		{
			name: "Transient check failure does not deactivate",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(false, nil)
				checker.EXPECT().IsMember(gomock.Any(), "@news", int64(10)).Return(false, errors.New("timeout"))
			},
			expectedError: ErrCheckFailed,
		},
		{
			name: "Already completed",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(true, nil)
			},
			expectedError: ErrAlreadyCompleted,
		},
		{
			name: "Unknown task",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(nil, nil)
			},
			expectedError: ErrTaskNotFound,
		},
		{
			name: "Inactive task",
			prepareMock: func() {
				inactive := *task
				inactive.IsActive = false
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(&inactive, nil)
			},
			expectedError: ErrTaskInactive,
		},
		{
			name: "Completion error rolls back",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 1).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 1).Return(false, nil)
				checker.EXPECT().IsMember(gomock.Any(), "@news", int64(10)).Return(true, nil)
				passthroughTx(txManager)
				repo.EXPECT().CreateCompletion(gomock.Any(), int64(10), 1).Return(errors.New("db error"))
			},
			expectedError: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			reward, balance, err := service.Check(context.Background(), 10, 1)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedReward, reward)
				assert.Equal(t, tt.expectedBalance, balance)
			}
		})
	}
}

func TestCheckReferralsTask(t *testing.T) {
	service, repo, userRepo, _, txManager := NewMock(t)

	task := &domain.Task{ID: 2, Type: domain.TaskTypeReferrals, TargetValue: 5, Reward: 10.0, IsActive: true}

	tests := []struct {
		name          string
		prepareMock   func()
		expectedError error
	}{
		{
			name: "Enough referrals",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 2).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 2).Return(false, nil)
				userRepo.EXPECT().FindByID(gomock.Any(), int64(10)).Return(&domain.User{ID: 10, ReferralCount: 5}, nil)
				passthroughTx(txManager)
				repo.EXPECT().CreateCompletion(gomock.Any(), int64(10), 2).Return(nil)
				userRepo.EXPECT().Credit(gomock.Any(), int64(10), 10.0).Return(10.0, nil)
			},
		},
		{
			name: "Not enough referrals",
			prepareMock: func() {
				repo.EXPECT().FindByID(gomock.Any(), 2).Return(task, nil)
				repo.EXPECT().HasCompletion(gomock.Any(), int64(10), 2).Return(false, nil)
				userRepo.EXPECT().FindByID(gomock.Any(), int64(10)).Return(&domain.User{ID: 10, ReferralCount: 4}, nil)
			},
			expectedError: ErrNotCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.prepareMock != nil {
				tt.prepareMock()
			}

			_, _, err := service.Check(context.Background(), 10, 2)
			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
