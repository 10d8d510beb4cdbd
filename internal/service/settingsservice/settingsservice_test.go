package settingsservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	gomock "go.uber.org/mock/gomock"
)

func NewMock(t *testing.T) (*Service, *MockRepo) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepo(ctrl)
	service := New(repo)
	defer ctrl.Finish()
	return service, repo
}

func TestFloat(t *testing.T) {
	service, repo := NewMock(t)

	tests := []struct {
		name        string
		prepareMock func()
		expected    float64
	}{
		{
			name: "Stored value parsed",
			prepareMock: func() {
				repo.EXPECT().Get(gomock.Any(), "bonus_min").Return("0.75", true, nil)
			},
			expected: 0.75,
		},
		{
			name: "Absent key falls back to default",
			prepareMock: func() {
				repo.EXPECT().Get(gomock.Any(), "bonus_min").Return("", false, nil)
			},
			expected: 0.5,
		},
		{
			name: "Unparsable value falls back to default",
			prepareMock: func() {
				repo.EXPECT().Get(gomock.Any(), "bonus_min").Return("oops", true, nil)
			},
			expected: 0.5,
		},
		{
			name: "Repo error falls back to default",
			prepareMock: func() {
				repo.EXPECT().Get(gomock.Any(), "bonus_min").Return("", false, errors.New("db error"))
			},
			expected: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.prepareMock()
			assert.Equal(t, tt.expected, service.Float(context.Background(), "bonus_min", 0.5))
		})
	}
}

func TestInt(t *testing.T) {
	service, repo := NewMock(t)

	repo.EXPECT().Get(gomock.Any(), "bonus_cooldown_hours").Return("12", true, nil)
	assert.Equal(t, 12, service.Int(context.Background(), "bonus_cooldown_hours", 24))

	repo.EXPECT().Get(gomock.Any(), "bonus_cooldown_hours").Return("twelve", true, nil)
	assert.Equal(t, 24, service.Int(context.Background(), "bonus_cooldown_hours", 24))
}

func TestBool(t *testing.T) {
	service, repo := NewMock(t)

	repo.EXPECT().Get(gomock.Any(), "game_dice_enabled").Return("0", true, nil)
	assert.False(t, service.Bool(context.Background(), "game_dice_enabled", true))

	repo.EXPECT().Get(gomock.Any(), "game_dice_enabled").Return("1", true, nil)
	assert.True(t, service.Bool(context.Background(), "game_dice_enabled", false))

	repo.EXPECT().Get(gomock.Any(), "game_dice_enabled").Return("yes", true, nil)
	assert.True(t, service.Bool(context.Background(), "game_dice_enabled", true))
}

func TestString(t *testing.T) {
	service, repo := NewMock(t)

	repo.EXPECT().Get(gomock.Any(), KeyPaymentsChannelID).Return("-100200", true, nil)
	assert.Equal(t, "-100200", service.String(context.Background(), KeyPaymentsChannelID, ""))
}

func TestSet(t *testing.T) {
	service, repo := NewMock(t)

	repo.EXPECT().Set(gomock.Any(), "bonus_max", "2.0").Return(nil)
	assert.NoError(t, service.Set(context.Background(), "bonus_max", "2.0"))

	repo.EXPECT().Set(gomock.Any(), "bonus_max", "2.0").Return(errors.New("db error"))
	assert.Error(t, service.Set(context.Background(), "bonus_max", "2.0"))
}

func TestGameKey(t *testing.T) {
	assert.Equal(t, "game_football_coeff", GameKey("football", "coeff"))
}
