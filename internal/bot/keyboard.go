package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/gameservice"
)

var gameEmoji = map[string]string{
	gameservice.GameFootball:   "⚽",
	gameservice.GameBasketball: "🏀",
	gameservice.GameBowling:    "🎳",
	gameservice.GameDice:       "🎲",
	gameservice.GameSlots:      "🎰",
}

var gameTitle = map[string]string{
	gameservice.GameFootball:   "Football",
	gameservice.GameBasketball: "Basketball",
	gameservice.GameBowling:    "Bowling",
	gameservice.GameDice:       "Dice",
	gameservice.GameSlots:      "Slots",
}

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Profile", "profile"),
			tgbotapi.NewInlineKeyboardButtonData("🎁 Daily bonus", "bonus"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎮 Games", "games"),
			tgbotapi.NewInlineKeyboardButtonData("📋 Tasks", "tasks"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎟 Promo code", "promo"),
			tgbotapi.NewInlineKeyboardButtonData("💸 Withdraw", "withdraw"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 History", "history"),
			tgbotapi.NewInlineKeyboardButtonData("🏆 Top referrers", "leaderboard"),
		),
	)
}

func gamesMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, gameType := range gameservice.Types() {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s", gameEmoji[gameType], gameTitle[gameType]),
				"game:"+gameType,
			),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func diceSideKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬆️ High (4-6)", "dice:high"),
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Low (1-3)", "dice:low"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", "dice:cancel"),
		),
	)
}

func tasksKeyboard(tasks []domain.Task) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ %s (+%s ⭐)", task.Title, formatStars(task.Reward)),
				fmt.Sprintf("task_check:%d", task.ID),
			),
		))
	}
	rows = append(rows, backRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Menu", "menu"),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow())
}
