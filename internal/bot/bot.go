package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/gameservice"
)

// API is the subset of tgbotapi.BotAPI the bot layer uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type UserService interface {
	Register(ctx context.Context, userID int64, username, firstName string, referrerID int64) (*domain.User, bool, float64, error)
	GetByID(ctx context.Context, userID int64) (*domain.User, error)
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
	TopReferrers(ctx context.Context, limit int) ([]domain.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

type BonusService interface {
	Claim(ctx context.Context, userID int64) (amount, balance float64, retryIn time.Duration, err error)
}

type PromoService interface {
	Redeem(ctx context.Context, userID int64, code string) (reward, balance float64, err error)
	Create(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error)
	List(ctx context.Context) ([]domain.PromoCode, error)
	SetActive(ctx context.Context, promoID int, active bool) error
	Delete(ctx context.Context, promoID int) error
}

type TaskService interface {
	ListAvailable(ctx context.Context, userID int64) ([]domain.Task, error)
	Check(ctx context.Context, userID int64, taskID int) (reward, balance float64, err error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	List(ctx context.Context) ([]domain.Task, error)
	SetActive(ctx context.Context, taskID int, active bool) error
	Delete(ctx context.Context, taskID int) error
}

type GameService interface {
	GameConfig(ctx context.Context, gameType string) (gameservice.Config, error)
	Play(ctx context.Context, userID int64, gameType string, bet float64) (*gameservice.Result, error)
	StartRound(ctx context.Context, userID int64, bet float64) error
	ChooseSide(ctx context.Context, userID int64, side string) (*gameservice.Result, error)
	CancelRound(ctx context.Context, userID int64) error
}

type WithdrawService interface {
	NewChallenge(userID int64) (string, error)
	SubmitAnswer(userID int64, answer int) error
	Request(ctx context.Context, userID int64, amount float64) (*domain.Withdrawal, error)
	Approve(ctx context.Context, id int) (*domain.Withdrawal, error)
	Reject(ctx context.Context, id int) (*domain.Withdrawal, error)
	History(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

type SettingsService interface {
	String(ctx context.Context, key, def string) string
	Set(ctx context.Context, key, value string) error
}

type Gate interface {
	IsSubscribed(ctx context.Context, userID int64, locale string) bool
}

// Deps bundles the services the bot layer drives.
type Deps struct {
	Users       UserService
	Bonus       BonusService
	Promos      PromoService
	Tasks       TaskService
	Games       GameService
	Withdrawals WithdrawService
	Settings    SettingsService
	Gate        Gate
}

type Bot struct {
	api      API
	cfg      *config.Config
	deps     Deps
	sessions *sessionStore
}

func New(cfg *config.Config, api API, deps Deps) *Bot {
	return &Bot{
		api:      api,
		cfg:      cfg,
		deps:     deps,
		sessions: newSessionStore(),
	}
}

// Run consumes the long-poll update channel until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() && msg.Command() == "start" {
		b.handleStart(ctx, msg)
		return
	}

	if _, _, _, err := b.deps.Users.Register(ctx, userID, msg.From.UserName, msg.From.FirstName, 0); err != nil {
		zap.L().Error("failed to register user", zap.Int64("userID", userID), zap.Error(err))
		b.send(userID, "Something went wrong, please try again later.")
		return
	}

	if !b.cfg.IsAdmin(userID) && !b.deps.Gate.IsSubscribed(ctx, userID, msg.From.LanguageCode) {
		b.send(userID, "Please subscribe to our channel to use the bot, then try again.")
		return
	}

	if msg.IsCommand() {
		b.sessions.clear(userID)
		b.handleCommand(ctx, msg)
		return
	}

	b.handleInput(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch command {
	case "help":
		b.sendMenu(userID, helpText)
	case "menu":
		b.sendMenu(userID, "⭐ Main menu")
	default:
		if b.cfg.IsAdmin(userID) {
			b.handleAdminCommand(ctx, userID, command, args)
			return
		}
		b.send(userID, "Unknown command. Use /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	userID := query.From.ID
	data := query.Data

	// Moderation channel buttons work outside the private-chat flow.
	if strings.HasPrefix(data, "wd_approve:") || strings.HasPrefix(data, "wd_reject:") {
		b.handleModerationCallback(ctx, query)
		return
	}

	if _, _, _, err := b.deps.Users.Register(ctx, userID, query.From.UserName, query.From.FirstName, 0); err != nil {
		zap.L().Error("failed to register user", zap.Int64("userID", userID), zap.Error(err))
		b.answerCallback(query.ID, "")
		return
	}

	if !b.cfg.IsAdmin(userID) && !b.deps.Gate.IsSubscribed(ctx, userID, query.From.LanguageCode) {
		b.answerAlert(query.ID, "Please subscribe to our channel first.")
		return
	}

	switch {
	case data == "menu":
		b.sessions.clear(userID)
		b.sendMenu(userID, "⭐ Main menu")
	case data == "profile":
		b.showProfile(ctx, userID)
	case data == "bonus":
		b.claimBonus(ctx, userID)
	case data == "games":
		b.sessions.clear(userID)
		b.showGames(userID)
	case strings.HasPrefix(data, "game:"):
		b.askBet(ctx, userID, strings.TrimPrefix(data, "game:"))
	case strings.HasPrefix(data, "dice:"):
		b.resolveDice(ctx, userID, strings.TrimPrefix(data, "dice:"))
	case data == "tasks":
		b.showTasks(ctx, userID)
	case strings.HasPrefix(data, "task_check:"):
		b.checkTask(ctx, userID, strings.TrimPrefix(data, "task_check:"))
	case data == "promo":
		b.sessions.set(userID, session{state: stateAwaitPromoCode})
		b.send(userID, "🎟 Send me the promo code.")
	case data == "withdraw":
		b.askWithdrawAmount(ctx, userID)
	case data == "history":
		b.showHistory(ctx, userID)
	case data == "leaderboard":
		b.showLeaderboard(ctx, userID)
	default:
		zap.L().Warn("unknown callback", zap.String("data", data))
	}

	b.answerCallback(query.ID, "")
}

func (b *Bot) handleModerationCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if !b.cfg.IsAdmin(query.From.ID) {
		b.answerAlert(query.ID, "Admins only.")
		return
	}

	data := query.Data
	approve := strings.HasPrefix(data, "wd_approve:")
	idStr := data[strings.Index(data, ":")+1:]
	id, err := strconv.Atoi(idStr)
	if err != nil {
		b.answerAlert(query.ID, "Bad withdrawal id.")
		return
	}

	var withdrawal *domain.Withdrawal
	if approve {
		withdrawal, err = b.deps.Withdrawals.Approve(ctx, id)
	} else {
		withdrawal, err = b.deps.Withdrawals.Reject(ctx, id)
	}
	if err != nil {
		b.answerAlert(query.ID, withdrawalActionError(err))
		return
	}

	verb := "rejected"
	if withdrawal.Status == domain.ApprovedWithdrawalStatus {
		verb = "approved"
	}
	b.answerAlert(query.ID, "Withdrawal #"+strconv.Itoa(withdrawal.ID)+" "+verb+".")
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		zap.L().Warn("failed to send message", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := b.api.Send(msg); err != nil {
		zap.L().Warn("failed to send message", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (b *Bot) sendMenu(chatID int64, text string) {
	b.sendKeyboard(chatID, text, mainMenuKeyboard())
}

func (b *Bot) answerCallback(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		zap.L().Warn("failed to answer callback", zap.Error(err))
	}
}

func (b *Bot) answerAlert(queryID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(queryID, text)); err != nil {
		zap.L().Warn("failed to answer callback", zap.Error(err))
	}
}
