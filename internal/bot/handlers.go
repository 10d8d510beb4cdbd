package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/service/bonusservice"
	"github.com/srvnk/starsbot/internal/service/gameservice"
	"github.com/srvnk/starsbot/internal/service/promoservice"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/internal/service/taskservice"
	"github.com/srvnk/starsbot/internal/service/withdrawservice"
)

const helpText = `⭐ Stars bot

Earn stars with referrals, the daily bonus, promo codes, tasks
and mini-games, then withdraw them once an admin approves.

/start — main menu
/help — this message`

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	var referrerID int64
	if payload := strings.TrimSpace(msg.CommandArguments()); payload != "" {
		if id, err := strconv.ParseInt(payload, 10, 64); err == nil {
			referrerID = id
		}
	}

	user, isNew, reward, err := b.deps.Users.Register(ctx, userID, msg.From.UserName, msg.From.FirstName, referrerID)
	if err != nil {
		zap.L().Error("failed to register user", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}

	if isNew && reward > 0 && user.ReferredBy != nil {
		b.send(*user.ReferredBy, fmt.Sprintf("🎉 New referral! You earned %s ⭐", formatStars(reward)))
	}

	greeting := "⭐ Welcome back!"
	if isNew {
		greeting = "⭐ Welcome! Earn stars and withdraw them for real rewards."
	}
	b.sendMenu(userID, greeting)
}

// handleInput dispatches free-form text according to the session state.
func (b *Bot) handleInput(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	sess := b.sessions.get(userID)

	switch sess.state {
	case stateAwaitPromoCode:
		b.redeemPromo(ctx, userID, text)
	case stateAwaitBet:
		b.placeBet(ctx, userID, sess.game, text)
	case stateAwaitWithdrawAmount:
		b.startWithdraw(ctx, userID, text)
	case stateAwaitChallenge:
		b.answerChallenge(ctx, userID, sess.amount, text)
	case stateAwaitBroadcast:
		b.sessions.clear(userID)
		b.runBroadcast(ctx, userID, msg.Text)
	default:
		b.sendMenu(userID, "⭐ Main menu")
	}
}

func (b *Bot) showProfile(ctx context.Context, userID int64) {
	user, err := b.deps.Users.GetByID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to load profile", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%d", b.cfg.BotUsername, userID)
	text := fmt.Sprintf(`👤 Your profile

💰 Balance: %s ⭐
👥 Referrals: %d

🔗 Your referral link:
%s`, formatStars(user.Balance), user.ReferralCount, link)
	b.sendKeyboard(userID, text, backKeyboard())
}

func (b *Bot) claimBonus(ctx context.Context, userID int64) {
	amount, balance, retryIn, err := b.deps.Bonus.Claim(ctx, userID)
	switch {
	case errors.Is(err, bonusservice.ErrCooldownActive):
		b.sendKeyboard(userID, fmt.Sprintf("⏳ Bonus already claimed. Come back in %s.", formatDuration(retryIn)), backKeyboard())
	case err != nil:
		zap.L().Error("failed to claim bonus", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
	default:
		b.sendKeyboard(userID, fmt.Sprintf("🎁 You got %s ⭐!\n💰 Balance: %s ⭐", formatStars(amount), formatStars(balance)), backKeyboard())
	}
}

func (b *Bot) showGames(userID int64) {
	b.sendKeyboard(userID, "🎮 Pick a game:", gamesMenuKeyboard())
}

func (b *Bot) askBet(ctx context.Context, userID int64, gameType string) {
	cfg, err := b.deps.Games.GameConfig(ctx, gameType)
	if err != nil {
		b.send(userID, "Unknown game.")
		return
	}
	if !cfg.Enabled {
		b.sendKeyboard(userID, "🚫 This game is temporarily disabled.", backKeyboard())
		return
	}

	b.sessions.set(userID, session{state: stateAwaitBet, game: gameType})
	b.send(userID, fmt.Sprintf("%s %s\nSend your bet (min %s ⭐):",
		gameEmoji[gameType], gameTitle[gameType], formatStars(cfg.MinBet)))
}

func (b *Bot) placeBet(ctx context.Context, userID int64, gameType, text string) {
	bet, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64)
	if err != nil || bet <= 0 {
		b.send(userID, "Send a positive number, e.g. 10")
		return
	}

	if gameType == gameservice.GameDice {
		if err := b.deps.Games.StartRound(ctx, userID, bet); err != nil {
			b.sessions.clear(userID)
			b.sendKeyboard(userID, gameErrorText(err), backKeyboard())
			return
		}
		b.sessions.clear(userID)
		b.sendKeyboard(userID, fmt.Sprintf("🎲 Bet %s ⭐ accepted. High or low?", formatStars(bet)), diceSideKeyboard())
		return
	}

	result, err := b.deps.Games.Play(ctx, userID, gameType, bet)
	b.sessions.clear(userID)
	if err != nil {
		b.sendKeyboard(userID, gameErrorText(err), backKeyboard())
		return
	}
	b.sendKeyboard(userID, resultText(gameType, bet, result), backKeyboard())
}

func (b *Bot) resolveDice(ctx context.Context, userID int64, action string) {
	if action == "cancel" {
		if err := b.deps.Games.CancelRound(ctx, userID); err != nil {
			b.sendKeyboard(userID, gameErrorText(err), backKeyboard())
			return
		}
		b.sendKeyboard(userID, "✖️ Round cancelled, bet refunded.", backKeyboard())
		return
	}

	result, err := b.deps.Games.ChooseSide(ctx, userID, action)
	if err != nil {
		b.sendKeyboard(userID, gameErrorText(err), backKeyboard())
		return
	}
	b.sendKeyboard(userID, resultText(gameservice.GameDice, 0, result), backKeyboard())
}

func (b *Bot) showTasks(ctx context.Context, userID int64) {
	tasks, err := b.deps.Tasks.ListAvailable(ctx, userID)
	if err != nil {
		zap.L().Error("failed to list tasks", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}
	if len(tasks) == 0 {
		b.sendKeyboard(userID, "📋 No tasks available right now, check back later.", backKeyboard())
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Available tasks:\n")
	for _, task := range tasks {
		sb.WriteString(fmt.Sprintf("\n• %s — %s ⭐\n%s\n", task.Title, formatStars(task.Reward), task.Description))
	}
	sb.WriteString("\nTap a task to check completion:")
	b.sendKeyboard(userID, sb.String(), tasksKeyboard(tasks))
}

func (b *Bot) checkTask(ctx context.Context, userID int64, idStr string) {
	taskID, err := strconv.Atoi(idStr)
	if err != nil {
		return
	}

	reward, balance, err := b.deps.Tasks.Check(ctx, userID, taskID)
	switch {
	case errors.Is(err, taskservice.ErrTaskNotFound):
		b.sendKeyboard(userID, "🚫 Task not found.", backKeyboard())
	case errors.Is(err, taskservice.ErrTaskInactive), errors.Is(err, taskservice.ErrTaskUnavailable):
		b.sendKeyboard(userID, "🚫 This task is no longer available.", backKeyboard())
	case errors.Is(err, taskservice.ErrAlreadyCompleted):
		b.sendKeyboard(userID, "✅ You have already completed this task.", backKeyboard())
	case errors.Is(err, taskservice.ErrNotCompleted):
		b.sendKeyboard(userID, "❌ Not completed yet. Finish the task and tap again.", backKeyboard())
	case errors.Is(err, taskservice.ErrCheckFailed):
		b.sendKeyboard(userID, "⏳ Could not verify right now, try again in a minute.", backKeyboard())
	case err != nil:
		zap.L().Error("failed to check task", zap.Int64("userID", userID), zap.Int("taskID", taskID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
	default:
		b.sendKeyboard(userID, fmt.Sprintf("🎉 Task completed! +%s ⭐\n💰 Balance: %s ⭐", formatStars(reward), formatStars(balance)), backKeyboard())
	}
}

func (b *Bot) redeemPromo(ctx context.Context, userID int64, code string) {
	b.sessions.clear(userID)

	reward, balance, err := b.deps.Promos.Redeem(ctx, userID, code)
	switch {
	case errors.Is(err, promoservice.ErrPromoNotFound):
		b.sendKeyboard(userID, "❌ No such promo code.", backKeyboard())
	case errors.Is(err, promoservice.ErrAlreadyRedeemed):
		b.sendKeyboard(userID, "❌ You have already used this code.", backKeyboard())
	case errors.Is(err, promoservice.ErrPromoExhausted):
		b.sendKeyboard(userID, "❌ This code has run out of uses.", backKeyboard())
	case err != nil:
		zap.L().Error("failed to redeem promo", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
	default:
		b.sendKeyboard(userID, fmt.Sprintf("🎟 Code accepted! +%s ⭐\n💰 Balance: %s ⭐", formatStars(reward), formatStars(balance)), backKeyboard())
	}
}

func (b *Bot) askWithdrawAmount(ctx context.Context, userID int64) {
	user, err := b.deps.Users.GetByID(ctx, userID)
	if err != nil {
		zap.L().Error("failed to load user", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}

	b.sessions.set(userID, session{state: stateAwaitWithdrawAmount})
	b.send(userID, fmt.Sprintf("💸 Your balance: %s ⭐\nHow much do you want to withdraw?", formatStars(user.Balance)))
}

func (b *Bot) startWithdraw(ctx context.Context, userID int64, text string) {
	amount, err := strconv.ParseFloat(strings.Replace(text, ",", ".", 1), 64)
	if err != nil || amount <= 0 {
		b.send(userID, "Send a positive number, e.g. 50")
		return
	}

	question, err := b.deps.Withdrawals.NewChallenge(userID)
	if errors.Is(err, withdrawservice.ErrLockedOut) {
		b.sessions.clear(userID)
		b.sendKeyboard(userID, "🔒 Too many wrong answers. Try again in 10 minutes.", backKeyboard())
		return
	}
	if err != nil {
		zap.L().Error("failed to create challenge", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}

	b.sessions.set(userID, session{state: stateAwaitChallenge, amount: amount})
	b.send(userID, fmt.Sprintf("🤖 Quick check that you're human: how much is %s?", question))
}

func (b *Bot) answerChallenge(ctx context.Context, userID int64, amount float64, text string) {
	answer, convErr := strconv.Atoi(text)
	if convErr != nil {
		b.send(userID, "Send the answer as a number.")
		return
	}

	err := b.deps.Withdrawals.SubmitAnswer(userID, answer)
	switch {
	case errors.Is(err, withdrawservice.ErrWrongAnswer):
		b.send(userID, "❌ Wrong, try again.")
		return
	case errors.Is(err, withdrawservice.ErrLockedOut):
		b.sessions.clear(userID)
		b.sendKeyboard(userID, "🔒 Too many wrong answers. Try again in 10 minutes.", backKeyboard())
		return
	case err != nil:
		b.sessions.clear(userID)
		b.sendKeyboard(userID, "Something went wrong, start the withdrawal again.", backKeyboard())
		return
	}

	b.sessions.clear(userID)
	withdrawal, err := b.deps.Withdrawals.Request(ctx, userID, amount)
	switch {
	case errors.Is(err, withdrawservice.ErrInsufficientFunds):
		b.sendKeyboard(userID, "❌ Not enough stars on your balance.", backKeyboard())
	case errors.Is(err, withdrawservice.ErrLockedOut):
		b.sendKeyboard(userID, "🔒 Too many wrong answers. Try again in 10 minutes.", backKeyboard())
	case err != nil:
		zap.L().Error("failed to request withdrawal", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
	default:
		text := fmt.Sprintf("✅ Withdrawal #%d for %s ⭐ submitted, waiting for review.", withdrawal.ID, formatStars(withdrawal.Amount))
		if url := b.deps.Settings.String(ctx, settingsservice.KeyPaymentsChannelURL, ""); url != "" {
			text += "\n📣 Follow payouts: " + url
		}
		b.sendKeyboard(userID, text, backKeyboard())
	}
}

func (b *Bot) showHistory(ctx context.Context, userID int64) {
	withdrawals, err := b.deps.Withdrawals.History(ctx, userID)
	if err != nil {
		zap.L().Error("failed to load history", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}
	if len(withdrawals) == 0 {
		b.sendKeyboard(userID, "📜 No withdrawals yet.", backKeyboard())
		return
	}

	var sb strings.Builder
	sb.WriteString("📜 Your withdrawals:\n\n")
	for _, w := range withdrawals {
		sb.WriteString(fmt.Sprintf("#%d — %s ⭐ — %s — %s\n",
			w.ID, formatStars(w.Amount), statusEmoji(w.Status), w.CreatedAt.Format("02.01.2006")))
	}
	b.sendKeyboard(userID, sb.String(), backKeyboard())
}

func (b *Bot) showLeaderboard(ctx context.Context, userID int64) {
	top, err := b.deps.Users.TopReferrers(ctx, 10)
	if err != nil {
		zap.L().Error("failed to load leaderboard", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}
	if len(top) == 0 {
		b.sendKeyboard(userID, "🏆 No referrers yet — be the first!", backKeyboard())
		return
	}

	var sb strings.Builder
	sb.WriteString("🏆 Top referrers:\n\n")
	for i, u := range top {
		name := u.FirstName
		if u.Username != "" {
			name = "@" + u.Username
		}
		sb.WriteString(fmt.Sprintf("%d. %s — %d referrals\n", i+1, name, u.ReferralCount))
	}
	b.sendKeyboard(userID, sb.String(), backKeyboard())
}
