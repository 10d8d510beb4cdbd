package notifier

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/srvnk/starsbot/internal/domain"
)

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func displayName(user *domain.User) string {
	if user == nil {
		return "unknown"
	}
	if user.Username != "" {
		return "@" + user.Username
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return strconv.FormatInt(user.ID, 10)
}

func statusLine(status string) string {
	switch status {
	case domain.ApprovedWithdrawalStatus:
		return "✅ Paid"
	case domain.RejectedWithdrawalStatus:
		return "❌ Rejected"
	default:
		return "⏳ Pending"
	}
}

func moderationText(withdrawal *domain.Withdrawal, user *domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Withdrawal #%d\n", withdrawal.ID)
	fmt.Fprintf(&b, "User: %s (%d)\n", displayName(user), withdrawal.UserID)
	fmt.Fprintf(&b, "Amount: %s ⭐\n", formatAmount(withdrawal.Amount))
	fmt.Fprintf(&b, "Status: %s", statusLine(withdrawal.Status))
	return b.String()
}

func publicText(withdrawal *domain.Withdrawal, user *domain.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ⭐ → %s\n", formatAmount(withdrawal.Amount), displayName(user))
	fmt.Fprintf(&b, "%s", statusLine(withdrawal.Status))
	return b.String()
}

func moderationKeyboard(withdrawalID int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("wd_approve:%d", withdrawalID)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("wd_reject:%d", withdrawalID)),
		),
	)
}
