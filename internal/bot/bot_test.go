package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	"github.com/srvnk/starsbot/internal/config"
	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/bonusservice"
	"github.com/srvnk/starsbot/internal/service/gameservice"
	"github.com/srvnk/starsbot/internal/service/promoservice"
	"github.com/srvnk/starsbot/internal/service/taskservice"
	"github.com/srvnk/starsbot/internal/service/withdrawservice"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	ch := make(chan tgbotapi.Update)
	close(ch)
	return ch
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	texts := f.texts()
	if len(texts) == 0 {
		t.Fatal("no messages sent")
	}
	return texts[len(texts)-1]
}

type Mock struct {
	api         *fakeAPI
	users       *MockUserService
	bonus       *MockBonusService
	promos      *MockPromoService
	tasks       *MockTaskService
	games       *MockGameService
	withdrawals *MockWithdrawService
	settings    *MockSettingsService
	gate        *MockGate
	bot         *Bot
}

func NewMock(t *testing.T, admins ...int64) *Mock {
	ctrl := gomock.NewController(t)
	m := &Mock{
		api:         &fakeAPI{},
		users:       NewMockUserService(ctrl),
		bonus:       NewMockBonusService(ctrl),
		promos:      NewMockPromoService(ctrl),
		tasks:       NewMockTaskService(ctrl),
		games:       NewMockGameService(ctrl),
		withdrawals: NewMockWithdrawService(ctrl),
		settings:    NewMockSettingsService(ctrl),
		gate:        NewMockGate(ctrl),
	}
	cfg := &config.Config{AdminIDs: admins, BotUsername: "starsbot"}
	m.bot = New(cfg, m.api, Deps{
		Users:       m.users,
		Bonus:       m.bonus,
		Promos:      m.promos,
		Tasks:       m.tasks,
		Games:       m.games,
		Withdrawals: m.withdrawals,
		Settings:    m.settings,
		Gate:        m.gate,
	})
	return m
}

func textMessage(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		From: &tgbotapi.User{ID: userID, UserName: "u123", FirstName: "Test"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(strings.Fields(text)[0])
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return tgbotapi.Update{Message: msg}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:   "cb1",
		From: &tgbotapi.User{ID: userID, UserName: "u123", FirstName: "Test"},
		Data: data,
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		},
	}}
}

func (m *Mock) expectRegistered(userID int64) {
	m.users.EXPECT().Register(gomock.Any(), userID, "u123", "Test", int64(0)).
		Return(&domain.User{ID: userID}, false, 0.0, nil).AnyTimes()
	m.gate.EXPECT().IsSubscribed(gomock.Any(), userID, gomock.Any()).Return(true).AnyTimes()
}

func TestStart(t *testing.T) {
	t.Run("new user with referrer notifies the referrer", func(t *testing.T) {
		m := NewMock(t)
		referrerID := int64(42)
		m.users.EXPECT().Register(gomock.Any(), int64(1), "u123", "Test", referrerID).
			Return(&domain.User{ID: 1, ReferredBy: &referrerID}, true, 5.0, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(1, "/start 42"))

		texts := m.api.texts()
		assert.Len(t, texts, 2)
		assert.Contains(t, texts[0], "New referral")
		assert.Contains(t, texts[0], "5 ⭐")
		assert.Contains(t, texts[1], "Welcome!")
	})

	t.Run("returning user gets the menu only", func(t *testing.T) {
		m := NewMock(t)
		m.users.EXPECT().Register(gomock.Any(), int64(1), "u123", "Test", int64(0)).
			Return(&domain.User{ID: 1}, false, 0.0, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(1, "/start"))

		texts := m.api.texts()
		assert.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Welcome back")
	})

	t.Run("garbage payload is ignored", func(t *testing.T) {
		m := NewMock(t)
		m.users.EXPECT().Register(gomock.Any(), int64(1), "u123", "Test", int64(0)).
			Return(&domain.User{ID: 1}, true, 0.0, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(1, "/start not-a-number"))

		assert.Len(t, m.api.texts(), 1)
	})
}

func TestSubscriptionGate(t *testing.T) {
	m := NewMock(t)
	m.users.EXPECT().Register(gomock.Any(), int64(1), "u123", "Test", int64(0)).
		Return(&domain.User{ID: 1}, false, 0.0, nil)
	m.gate.EXPECT().IsSubscribed(gomock.Any(), int64(1), gomock.Any()).Return(false)

	m.bot.HandleUpdate(context.Background(), textMessage(1, "hello"))

	assert.Contains(t, m.api.lastText(t), "subscribe")
}

func TestBonusCallback(t *testing.T) {
	t.Run("claimed", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.bonus.EXPECT().Claim(gomock.Any(), int64(1)).Return(0.8, 10.8, time.Duration(0), nil)

		m.bot.HandleUpdate(context.Background(), callback(1, "bonus"))

		assert.Contains(t, m.api.lastText(t), "You got 0.8 ⭐")
		assert.Contains(t, m.api.lastText(t), "Balance: 10.8")
	})

	t.Run("cooldown", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.bonus.EXPECT().Claim(gomock.Any(), int64(1)).
			Return(0.0, 0.0, 3*time.Hour+30*time.Minute, bonusservice.ErrCooldownActive)

		m.bot.HandleUpdate(context.Background(), callback(1, "bonus"))

		assert.Contains(t, m.api.lastText(t), "Come back in 3h 30m")
	})
}

func TestPromoFlow(t *testing.T) {
	m := NewMock(t)
	m.expectRegistered(1)

	m.bot.HandleUpdate(context.Background(), callback(1, "promo"))
	assert.Contains(t, m.api.lastText(t), "promo code")

	m.promos.EXPECT().Redeem(gomock.Any(), int64(1), "SUMMER").Return(5.0, 15.0, nil)
	m.bot.HandleUpdate(context.Background(), textMessage(1, "SUMMER"))
	assert.Contains(t, m.api.lastText(t), "+5 ⭐")
	assert.Contains(t, m.api.lastText(t), "Balance: 15")

	// State was cleared, plain text now just shows the menu.
	m.bot.HandleUpdate(context.Background(), textMessage(1, "SUMMER"))
	assert.Contains(t, m.api.lastText(t), "Main menu")
}

func TestPromoErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unknown code", promoservice.ErrPromoNotFound, "No such promo code"},
		{"already redeemed", promoservice.ErrAlreadyRedeemed, "already used"},
		{"exhausted", promoservice.ErrPromoExhausted, "run out of uses"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMock(t)
			m.expectRegistered(1)
			m.bot.HandleUpdate(context.Background(), callback(1, "promo"))
			m.promos.EXPECT().Redeem(gomock.Any(), int64(1), "X").Return(0.0, 0.0, tt.err)

			m.bot.HandleUpdate(context.Background(), textMessage(1, "X"))

			assert.Contains(t, m.api.lastText(t), tt.want)
		})
	}
}

func TestGameFlow(t *testing.T) {
	t.Run("football bet resolves in one step", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.games.EXPECT().GameConfig(gomock.Any(), gameservice.GameFootball).
			Return(gameservice.Config{Enabled: true, MinBet: 1}, nil)

		m.bot.HandleUpdate(context.Background(), callback(1, "game:football"))
		assert.Contains(t, m.api.lastText(t), "Send your bet")

		m.games.EXPECT().Play(gomock.Any(), int64(1), gameservice.GameFootball, 10.0).
			Return(&gameservice.Result{Draw: 5, Outcome: domain.WinOutcome, Payout: 30, Balance: 40}, nil)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "10"))
		assert.Contains(t, m.api.lastText(t), "Rolled 5")
		assert.Contains(t, m.api.lastText(t), "you win")
		assert.Contains(t, m.api.lastText(t), "Payout: 30")
	})

	t.Run("disabled game never asks for a bet", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.games.EXPECT().GameConfig(gomock.Any(), gameservice.GameSlots).
			Return(gameservice.Config{Enabled: false}, nil)

		m.bot.HandleUpdate(context.Background(), callback(1, "game:slots"))

		assert.Contains(t, m.api.lastText(t), "disabled")
	})

	t.Run("dice holds the bet until a side is chosen", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.games.EXPECT().GameConfig(gomock.Any(), gameservice.GameDice).
			Return(gameservice.Config{Enabled: true, MinBet: 1}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "game:dice"))

		m.games.EXPECT().StartRound(gomock.Any(), int64(1), 10.0).Return(nil)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "10"))
		assert.Contains(t, m.api.lastText(t), "High or low?")

		m.games.EXPECT().ChooseSide(gomock.Any(), int64(1), "high").
			Return(&gameservice.Result{Draw: 6, Outcome: domain.WinOutcome, Payout: 19, Balance: 19}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "dice:high"))
		assert.Contains(t, m.api.lastText(t), "Rolled 6")
	})

	t.Run("dice cancel refunds", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.games.EXPECT().CancelRound(gomock.Any(), int64(1)).Return(nil)

		m.bot.HandleUpdate(context.Background(), callback(1, "dice:cancel"))

		assert.Contains(t, m.api.lastText(t), "refunded")
	})

	t.Run("insufficient funds message", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.games.EXPECT().GameConfig(gomock.Any(), gameservice.GameBowling).
			Return(gameservice.Config{Enabled: true, MinBet: 1}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "game:bowling"))

		m.games.EXPECT().Play(gomock.Any(), int64(1), gameservice.GameBowling, 100.0).
			Return(nil, gameservice.ErrInsufficientFunds)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "100"))

		assert.Contains(t, m.api.lastText(t), "Not enough stars")
	})
}

func TestWithdrawFlow(t *testing.T) {
	t.Run("amount, challenge, request", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)

		m.users.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, Balance: 100}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "withdraw"))
		assert.Contains(t, m.api.lastText(t), "How much")

		m.withdrawals.EXPECT().NewChallenge(int64(1)).Return("3 + 4", nil)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "50"))
		assert.Contains(t, m.api.lastText(t), "3 + 4")

		m.withdrawals.EXPECT().SubmitAnswer(int64(1), 7).Return(nil)
		m.withdrawals.EXPECT().Request(gomock.Any(), int64(1), 50.0).
			Return(&domain.Withdrawal{ID: 9, UserID: 1, Amount: 50, Status: domain.PendingWithdrawalStatus}, nil)
		m.settings.EXPECT().String(gomock.Any(), "payments_channel_url", "").Return("https://t.me/payouts")
		m.bot.HandleUpdate(context.Background(), textMessage(1, "7"))
		assert.Contains(t, m.api.lastText(t), "Withdrawal #9")
		assert.Contains(t, m.api.lastText(t), "https://t.me/payouts")
	})

	t.Run("wrong answer keeps the challenge open", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.users.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, Balance: 100}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "withdraw"))
		m.withdrawals.EXPECT().NewChallenge(int64(1)).Return("3 + 4", nil)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "50"))

		m.withdrawals.EXPECT().SubmitAnswer(int64(1), 8).Return(withdrawservice.ErrWrongAnswer)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "8"))
		assert.Contains(t, m.api.lastText(t), "Wrong")

		// Session still waits for the answer.
		m.withdrawals.EXPECT().SubmitAnswer(int64(1), 7).Return(nil)
		m.withdrawals.EXPECT().Request(gomock.Any(), int64(1), 50.0).
			Return(&domain.Withdrawal{ID: 9, Amount: 50}, nil)
		m.settings.EXPECT().String(gomock.Any(), "payments_channel_url", "").Return("")
		m.bot.HandleUpdate(context.Background(), textMessage(1, "7"))
		assert.Contains(t, m.api.lastText(t), "Withdrawal #9")
	})

	t.Run("lockout aborts the flow", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.users.EXPECT().GetByID(gomock.Any(), int64(1)).Return(&domain.User{ID: 1, Balance: 100}, nil)
		m.bot.HandleUpdate(context.Background(), callback(1, "withdraw"))

		m.withdrawals.EXPECT().NewChallenge(int64(1)).Return("", withdrawservice.ErrLockedOut)
		m.bot.HandleUpdate(context.Background(), textMessage(1, "50"))
		assert.Contains(t, m.api.lastText(t), "Too many wrong answers")

		// Back to idle, next text shows the menu.
		m.bot.HandleUpdate(context.Background(), textMessage(1, "50"))
		assert.Contains(t, m.api.lastText(t), "Main menu")
	})
}

func TestModerationCallback(t *testing.T) {
	t.Run("admin approves", func(t *testing.T) {
		m := NewMock(t, 99)
		m.withdrawals.EXPECT().Approve(gomock.Any(), 7).
			Return(&domain.Withdrawal{ID: 7, Status: domain.ApprovedWithdrawalStatus}, nil)

		m.bot.HandleUpdate(context.Background(), callback(99, "wd_approve:7"))

		assert.Len(t, m.api.requests, 1)
		cb, ok := m.api.requests[0].(tgbotapi.CallbackConfig)
		assert.True(t, ok)
		assert.Contains(t, cb.Text, "approved")
	})

	t.Run("admin rejects", func(t *testing.T) {
		m := NewMock(t, 99)
		m.withdrawals.EXPECT().Reject(gomock.Any(), 7).
			Return(&domain.Withdrawal{ID: 7, Status: domain.RejectedWithdrawalStatus}, nil)

		m.bot.HandleUpdate(context.Background(), callback(99, "wd_reject:7"))

		cb := m.api.requests[0].(tgbotapi.CallbackConfig)
		assert.Contains(t, cb.Text, "rejected")
	})

	t.Run("already processed", func(t *testing.T) {
		m := NewMock(t, 99)
		m.withdrawals.EXPECT().Approve(gomock.Any(), 7).
			Return(nil, withdrawservice.ErrAlreadyProcessed)

		m.bot.HandleUpdate(context.Background(), callback(99, "wd_approve:7"))

		cb := m.api.requests[0].(tgbotapi.CallbackConfig)
		assert.Contains(t, cb.Text, "Already processed")
	})

	t.Run("non-admin is refused", func(t *testing.T) {
		m := NewMock(t, 99)

		m.bot.HandleUpdate(context.Background(), callback(1, "wd_approve:7"))

		cb := m.api.requests[0].(tgbotapi.CallbackConfig)
		assert.Contains(t, cb.Text, "Admins only")
	})
}

func TestTaskCallback(t *testing.T) {
	t.Run("completed task pays out", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.tasks.EXPECT().Check(gomock.Any(), int64(1), 3).Return(2.0, 12.0, nil)

		m.bot.HandleUpdate(context.Background(), callback(1, "task_check:3"))

		assert.Contains(t, m.api.lastText(t), "Task completed")
		assert.Contains(t, m.api.lastText(t), "+2 ⭐")
	})

	t.Run("missing task", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.tasks.EXPECT().Check(gomock.Any(), int64(1), 3).Return(0.0, 0.0, taskservice.ErrTaskNotFound)

		m.bot.HandleUpdate(context.Background(), callback(1, "task_check:3"))

		assert.Contains(t, m.api.lastText(t), "Task not found")
	})

	t.Run("deactivated task", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)
		m.tasks.EXPECT().Check(gomock.Any(), int64(1), 3).Return(0.0, 0.0, taskservice.ErrTaskInactive)

		m.bot.HandleUpdate(context.Background(), callback(1, "task_check:3"))

		assert.Contains(t, m.api.lastText(t), "no longer available")
	})
}

func TestAdminCommands(t *testing.T) {
	t.Run("stats", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.withdrawals.EXPECT().Stats(gomock.Any()).
			Return(&domain.Stats{UserCount: 10, PendingCount: 2, ApprovedTotal: 150}, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/stats"))

		last := m.api.lastText(t)
		assert.Contains(t, last, "Users: 10")
		assert.Contains(t, last, "Pending withdrawals: 2")
		assert.Contains(t, last, "150 ⭐")
	})

	t.Run("credit", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.users.EXPECT().Credit(gomock.Any(), int64(5), 25.0).Return(30.0, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/credit 5 25"))

		assert.Contains(t, m.api.lastText(t), "Credited 25 ⭐ to 5")
	})

	t.Run("promo_add with range and limit", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.promos.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p *domain.PromoCode) (*domain.PromoCode, error) {
				assert.Equal(t, "SUMMER", p.Code)
				assert.True(t, p.IsRandom)
				assert.Equal(t, 2.0, *p.RewardMin)
				assert.Equal(t, 8.0, *p.RewardMax)
				assert.Equal(t, 100, *p.UsageLimit)
				p.ID = 4
				return p, nil
			})

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/promo_add SUMMER 2-8 100"))

		assert.Contains(t, m.api.lastText(t), `Promo #4 "SUMMER" created`)
	})

	t.Run("game_set writes the setting key", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.games.EXPECT().GameConfig(gomock.Any(), "dice").Return(gameservice.Config{}, nil)
		m.settings.EXPECT().Set(gomock.Any(), "game_dice_coeff", "2.1").Return(nil)

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/game_set dice coeff 2.1"))

		assert.Contains(t, m.api.lastText(t), "game_dice_coeff = 2.1")
	})

	t.Run("game_set stores enabled in the form the reader parses", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.games.EXPECT().GameConfig(gomock.Any(), "dice").Return(gameservice.Config{}, nil).Times(2)
		m.settings.EXPECT().Set(gomock.Any(), "game_dice_enabled", "0").Return(nil)
		m.settings.EXPECT().Set(gomock.Any(), "game_dice_enabled", "1").Return(nil)

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/game_set dice enabled false"))
		m.bot.HandleUpdate(context.Background(), textMessage(99, "/game_set dice enabled true"))

		assert.Contains(t, m.api.texts()[len(m.api.texts())-2], "game_dice_enabled = 0")
		assert.Contains(t, m.api.lastText(t), "game_dice_enabled = 1")
	})

	t.Run("game_set rejects a bad field", func(t *testing.T) {
		m := NewMock(t, 99)
		m.expectRegistered(99)
		m.games.EXPECT().GameConfig(gomock.Any(), "dice").Return(gameservice.Config{}, nil)

		m.bot.HandleUpdate(context.Background(), textMessage(99, "/game_set dice payout 2.1"))

		assert.Contains(t, m.api.lastText(t), "Field must be one of")
	})

	t.Run("admin commands are hidden from users", func(t *testing.T) {
		m := NewMock(t)
		m.expectRegistered(1)

		m.bot.HandleUpdate(context.Background(), textMessage(1, "/stats"))

		assert.Contains(t, m.api.lastText(t), "Unknown command")
	})
}

func TestBroadcast(t *testing.T) {
	m := NewMock(t, 99)
	m.expectRegistered(99)

	m.bot.HandleUpdate(context.Background(), textMessage(99, "/broadcast"))
	assert.Contains(t, m.api.lastText(t), "Send the broadcast text")

	m.users.EXPECT().ListIDs(gomock.Any()).Return([]int64{1, 2, 3}, nil)
	m.bot.HandleUpdate(context.Background(), textMessage(99, "big news"))

	texts := m.api.texts()
	assert.Contains(t, texts[len(texts)-1], "3 sent, 0 failed")
	// prompt + 3 deliveries + summary
	assert.Len(t, texts, 5)
}
