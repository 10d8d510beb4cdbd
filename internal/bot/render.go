package bot

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/gameservice"
	"github.com/srvnk/starsbot/internal/service/withdrawservice"
)

func formatStars(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

func statusEmoji(status string) string {
	switch status {
	case domain.ApprovedWithdrawalStatus:
		return "✅ paid"
	case domain.RejectedWithdrawalStatus:
		return "❌ rejected"
	default:
		return "⏳ pending"
	}
}

func resultText(gameType string, bet float64, result *gameservice.Result) string {
	header := fmt.Sprintf("%s Rolled %d", gameEmoji[gameType], result.Draw)
	if result.Outcome == domain.WinOutcome {
		return fmt.Sprintf("%s — you win! 🎉\n💵 Payout: %s ⭐\n💰 Balance: %s ⭐",
			header, formatStars(result.Payout), formatStars(result.Balance))
	}
	if bet > 0 {
		return fmt.Sprintf("%s — you lose %s ⭐.\n💰 Balance: %s ⭐",
			header, formatStars(bet), formatStars(result.Balance))
	}
	return fmt.Sprintf("%s — you lose.\n💰 Balance: %s ⭐", header, formatStars(result.Balance))
}

func gameErrorText(err error) string {
	switch {
	case errors.Is(err, gameservice.ErrGameDisabled):
		return "🚫 This game is temporarily disabled."
	case errors.Is(err, gameservice.ErrBetTooLow):
		return "❌ Bet is below the minimum for this game."
	case errors.Is(err, gameservice.ErrDailyLimitReached):
		return "⏳ Daily limit for this game reached, come back tomorrow."
	case errors.Is(err, gameservice.ErrInsufficientFunds):
		return "❌ Not enough stars on your balance."
	case errors.Is(err, gameservice.ErrRoundAborted):
		return "⚠️ The round could not be settled, your bet was refunded."
	case errors.Is(err, gameservice.ErrRoundInProgress):
		return "⏳ Finish your current dice round first."
	case errors.Is(err, gameservice.ErrNoPendingRound):
		return "❌ No active dice round, start a new one."
	default:
		return "Something went wrong, please try again later."
	}
}

func withdrawalActionError(err error) string {
	switch {
	case errors.Is(err, withdrawservice.ErrNotFound):
		return "Withdrawal not found."
	case errors.Is(err, withdrawservice.ErrAlreadyProcessed):
		return "Already processed."
	default:
		return "Something went wrong, try again."
	}
}
