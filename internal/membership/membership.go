// Package membership answers whether a user belongs to a Telegram channel.
package membership

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrChannelInaccessible reports that the bot can no longer query the
// channel at all: the chat is gone, or the bot was removed from it. This is
// distinct from a transient API failure.
var ErrChannelInaccessible = errors.New("channel inaccessible")

type ChatMemberGetter interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

type Checker struct {
	api ChatMemberGetter
}

func New(api ChatMemberGetter) *Checker {
	return &Checker{api: api}
}

// IsMember reports whether userID is a member of the channel. The channel is
// either a public @username or a numeric chat id.
func (c *Checker) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	chat := tgbotapi.ChatConfigWithUser{UserID: userID}
	if strings.HasPrefix(channel, "@") {
		chat.SuperGroupUsername = channel
	} else {
		id, err := strconv.ParseInt(channel, 10, 64)
		if err != nil {
			zap.L().Warn("invalid channel id", zap.String("channel", channel))
			return false, ErrChannelInaccessible
		}
		chat.ChatID = id
	}

	member, err := c.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chat})
	if err != nil {
		if isPermanent(err) {
			return false, ErrChannelInaccessible
		}
		return false, err
	}

	// A restricted user is still in the channel, only muted.
	switch member.Status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	default:
		return false, nil
	}
}

// isPermanent distinguishes "the channel is gone for good" from transient
// API errors worth retrying later.
func isPermanent(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"chat not found",
		"bot is not a member",
		"bot was kicked",
		"channel_private",
		"member list is inaccessible",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
