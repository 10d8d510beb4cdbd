package membership

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
)

type fakeAPI struct {
	gotConfig tgbotapi.GetChatMemberConfig
	member    tgbotapi.ChatMember
	err       error
}

func (f *fakeAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.gotConfig = config
	return f.member, f.err
}

func TestIsMember(t *testing.T) {
	tests := []struct {
		name           string
		channel        string
		member         tgbotapi.ChatMember
		apiErr         error
		expectedMember bool
		expectedError  error
	}{
		{
			name:           "Member status",
			channel:        "@news",
			member:         tgbotapi.ChatMember{Status: "member"},
			expectedMember: true,
		},
		{
			name:           "Administrator status",
			channel:        "@news",
			member:         tgbotapi.ChatMember{Status: "administrator"},
			expectedMember: true,
		},
		{
			name:           "Restricted member still counts",
			channel:        "@news",
			member:         tgbotapi.ChatMember{Status: "restricted"},
			expectedMember: true,
		},
		{
			name:           "Left status",
			channel:        "@news",
			member:         tgbotapi.ChatMember{Status: "left"},
			expectedMember: false,
		},
		{
			name:           "Kicked status",
			channel:        "@news",
			member:         tgbotapi.ChatMember{Status: "kicked"},
			expectedMember: false,
		},
		{
			name:          "Chat not found is permanent",
			channel:       "@gone",
			apiErr:        errors.New("Bad Request: chat not found"),
			expectedError: ErrChannelInaccessible,
		},
		{
			name:          "Bot kicked is permanent",
			channel:       "@gone",
			apiErr:        errors.New("Forbidden: bot was kicked from the channel chat"),
			expectedError: ErrChannelInaccessible,
		},
		{
			name:          "Transient error passes through",
			channel:       "@news",
			apiErr:        errors.New("Too Many Requests: retry after 5"),
			expectedError: errors.New("Too Many Requests: retry after 5"),
		},
		{
			name:          "Malformed channel id",
			channel:       "not-a-chat",
			expectedError: ErrChannelInaccessible,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{member: tt.member, err: tt.apiErr}
			checker := New(api)

			ok, err := checker.IsMember(context.Background(), tt.channel, 42)
			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError.Error(), err.Error())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expectedMember, ok)
			}
		})
	}
}

func TestIsMemberNumericChannel(t *testing.T) {
	api := &fakeAPI{member: tgbotapi.ChatMember{Status: "member"}}
	checker := New(api)

	ok, err := checker.IsMember(context.Background(), "-1001234567890", 42)
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(-1001234567890), api.gotConfig.ChatID)
	assert.Equal(t, int64(42), api.gotConfig.UserID)
}

func TestIsMemberCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	checker := New(&fakeAPI{})
	_, err := checker.IsMember(ctx, "@news", 42)
	assert.ErrorIs(t, err, context.Canceled)
}
