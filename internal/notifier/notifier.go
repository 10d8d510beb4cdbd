// Package notifier delivers withdrawal messages to the moderation channel,
// the public payments channel and users.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
)

type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Settings interface {
	String(ctx context.Context, key, def string) string
}

var ErrChannelNotConfigured = errors.New("channel not configured")

type Notifier struct {
	api              BotAPI
	settings         Settings
	moderationChatID int64
}

func New(api BotAPI, settings Settings, cfg *config.Config) *Notifier {
	return &Notifier{
		api:              api,
		settings:         settings,
		moderationChatID: cfg.AdminChannelID,
	}
}

func (n *Notifier) paymentsChatID() (int64, error) {
	raw := n.settings.String(context.Background(), settingsservice.KeyPaymentsChannelID, "")
	if raw == "" {
		return 0, ErrChannelNotConfigured
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		zap.L().Warn("invalid payments channel id", zap.String("value", raw))
		return 0, ErrChannelNotConfigured
	}
	return id, nil
}

// SendModeration posts a new request with approve/reject controls.
func (n *Notifier) SendModeration(withdrawal *domain.Withdrawal, user *domain.User) (int, error) {
	if n.moderationChatID == 0 {
		return 0, ErrChannelNotConfigured
	}
	msg := tgbotapi.NewMessage(n.moderationChatID, moderationText(withdrawal, user))
	msg.ReplyMarkup = moderationKeyboard(withdrawal.ID)
	sent, err := n.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// SendPublic posts the status message to the payments channel.
func (n *Notifier) SendPublic(withdrawal *domain.Withdrawal, user *domain.User) (int, error) {
	chatID, err := n.paymentsChatID()
	if err != nil {
		return 0, err
	}
	sent, err := n.api.Send(tgbotapi.NewMessage(chatID, publicText(withdrawal, user)))
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditModeration re-renders the moderation message without action controls.
func (n *Notifier) EditModeration(messageID int, withdrawal *domain.Withdrawal, user *domain.User) error {
	if n.moderationChatID == 0 {
		return ErrChannelNotConfigured
	}
	_, err := n.api.Send(tgbotapi.NewEditMessageText(n.moderationChatID, messageID, moderationText(withdrawal, user)))
	return err
}

// EditPublic re-renders the payments channel message with the new status.
func (n *Notifier) EditPublic(messageID int, withdrawal *domain.Withdrawal, user *domain.User) error {
	chatID, err := n.paymentsChatID()
	if err != nil {
		return err
	}
	_, err = n.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, publicText(withdrawal, user)))
	return err
}

// NotifyUser tells the requester how their withdrawal was resolved.
func (n *Notifier) NotifyUser(userID int64, withdrawal *domain.Withdrawal) error {
	var text string
	switch withdrawal.Status {
	case domain.ApprovedWithdrawalStatus:
		text = fmt.Sprintf("✅ Your withdrawal of %s stars was approved.", formatAmount(withdrawal.Amount))
	case domain.RejectedWithdrawalStatus:
		text = fmt.Sprintf("❌ Your withdrawal of %s stars was rejected. The stars were returned to your balance.", formatAmount(withdrawal.Amount))
	default:
		text = fmt.Sprintf("⏳ Your withdrawal of %s stars is pending review.", formatAmount(withdrawal.Amount))
	}
	_, err := n.api.Send(tgbotapi.NewMessage(userID, text))
	return err
}
