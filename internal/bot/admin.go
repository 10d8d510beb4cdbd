package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srvnk/starsbot/internal/domain"
	"github.com/srvnk/starsbot/internal/service/settingsservice"
	"github.com/srvnk/starsbot/internal/service/userservice"
)

const adminHelpText = `🛠 Admin commands

/stats — aggregate stats
/credit <user_id> <amount> — credit stars
/broadcast — send a text to every user

/promo_add <code> <reward|min-max> [limit]
/promo_list
/promo_toggle <id> <on|off>
/promo_del <id>

/task_add subscribe <channel> <reward> <title>
/task_add referrals <target> <reward> <title>
/task_list
/task_toggle <id> <on|off>
/task_del <id>

/game_set <type> <enabled|coeff|coeff1|coeff2|min_bet|daily_limit> <value>
/set <key> <value> — raw setting`

const broadcastConcurrency = 8

func (b *Bot) handleAdminCommand(ctx context.Context, userID int64, command, args string) {
	switch command {
	case "admin":
		b.send(userID, adminHelpText)
	case "stats":
		b.adminStats(ctx, userID)
	case "credit":
		b.adminCredit(ctx, userID, args)
	case "broadcast":
		b.sessions.set(userID, session{state: stateAwaitBroadcast})
		b.send(userID, "📣 Send the broadcast text.")
	case "promo_add":
		b.adminPromoAdd(ctx, userID, args)
	case "promo_list":
		b.adminPromoList(ctx, userID)
	case "promo_toggle":
		b.adminPromoToggle(ctx, userID, args)
	case "promo_del":
		b.adminPromoDelete(ctx, userID, args)
	case "task_add":
		b.adminTaskAdd(ctx, userID, args)
	case "task_list":
		b.adminTaskList(ctx, userID)
	case "task_toggle":
		b.adminTaskToggle(ctx, userID, args)
	case "task_del":
		b.adminTaskDelete(ctx, userID, args)
	case "game_set":
		b.adminGameSet(ctx, userID, args)
	case "set":
		b.adminSet(ctx, userID, args)
	default:
		b.send(userID, "Unknown command. Use /admin.")
	}
}

func (b *Bot) adminStats(ctx context.Context, userID int64) {
	stats, err := b.deps.Withdrawals.Stats(ctx)
	if err != nil {
		zap.L().Error("failed to load stats", zap.Error(err))
		b.send(userID, "Failed to load stats.")
		return
	}
	b.send(userID, fmt.Sprintf(`📊 Stats

👥 Users: %d
⏳ Pending withdrawals: %d
✅ Approved total: %s ⭐`,
		stats.UserCount, stats.PendingCount, formatStars(stats.ApprovedTotal)))
}

func (b *Bot) adminCredit(ctx context.Context, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.send(userID, "Usage: /credit <user_id> <amount>")
		return
	}
	targetID, err1 := strconv.ParseInt(fields[0], 10, 64)
	amount, err2 := strconv.ParseFloat(fields[1], 64)
	if err1 != nil || err2 != nil {
		b.send(userID, "Usage: /credit <user_id> <amount>")
		return
	}

	balance, err := b.deps.Users.Credit(ctx, targetID, amount)
	if errors.Is(err, userservice.ErrUserNotFound) {
		b.send(userID, "No such user.")
		return
	}
	if err != nil {
		zap.L().Error("failed to credit user", zap.Int64("targetID", targetID), zap.Error(err))
		b.send(userID, "Failed to credit.")
		return
	}
	b.send(userID, fmt.Sprintf("Credited %s ⭐ to %d, balance now %s ⭐.", formatStars(amount), targetID, formatStars(balance)))
}

func (b *Bot) adminPromoAdd(ctx context.Context, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.send(userID, "Usage: /promo_add <code> <reward|min-max> [limit]")
		return
	}

	promo := &domain.PromoCode{Code: fields[0], IsActive: true}
	if min, max, ok := parseRange(fields[1]); ok {
		promo.IsRandom = true
		promo.RewardMin = &min
		promo.RewardMax = &max
	} else {
		reward, err := strconv.ParseFloat(fields[1], 64)
		if err != nil || reward <= 0 {
			b.send(userID, "Reward must be a positive number or a min-max range.")
			return
		}
		promo.Reward = reward
	}
	if len(fields) > 2 {
		limit, err := strconv.Atoi(fields[2])
		if err != nil || limit <= 0 {
			b.send(userID, "Limit must be a positive integer.")
			return
		}
		promo.UsageLimit = &limit
	}

	created, err := b.deps.Promos.Create(ctx, promo)
	if err != nil {
		zap.L().Error("failed to create promo", zap.Error(err))
		b.send(userID, "Failed to create promo code.")
		return
	}
	b.send(userID, fmt.Sprintf("Promo #%d %q created.", created.ID, created.Code))
}

func (b *Bot) adminPromoList(ctx context.Context, userID int64) {
	promos, err := b.deps.Promos.List(ctx)
	if err != nil {
		zap.L().Error("failed to list promos", zap.Error(err))
		b.send(userID, "Failed to list promo codes.")
		return
	}
	if len(promos) == 0 {
		b.send(userID, "No promo codes.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🎟 Promo codes:\n\n")
	for _, p := range promos {
		reward := formatStars(p.Reward)
		if p.IsRandom && p.RewardMin != nil && p.RewardMax != nil {
			reward = formatStars(*p.RewardMin) + "-" + formatStars(*p.RewardMax)
		}
		usage := strconv.Itoa(p.UsageCount)
		if p.UsageLimit != nil {
			usage += "/" + strconv.Itoa(*p.UsageLimit)
		}
		state := "on"
		if !p.IsActive {
			state = "off"
		}
		sb.WriteString(fmt.Sprintf("#%d %s — %s ⭐ — used %s — %s\n", p.ID, p.Code, reward, usage, state))
	}
	b.send(userID, sb.String())
}

func (b *Bot) adminPromoToggle(ctx context.Context, userID int64, args string) {
	id, active, ok := parseToggle(args)
	if !ok {
		b.send(userID, "Usage: /promo_toggle <id> <on|off>")
		return
	}
	if err := b.deps.Promos.SetActive(ctx, id, active); err != nil {
		zap.L().Error("failed to toggle promo", zap.Int("id", id), zap.Error(err))
		b.send(userID, "Failed to update promo code.")
		return
	}
	b.send(userID, fmt.Sprintf("Promo #%d updated.", id))
}

func (b *Bot) adminPromoDelete(ctx context.Context, userID int64, args string) {
	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		b.send(userID, "Usage: /promo_del <id>")
		return
	}
	if err := b.deps.Promos.Delete(ctx, id); err != nil {
		zap.L().Error("failed to delete promo", zap.Int("id", id), zap.Error(err))
		b.send(userID, "Failed to delete promo code.")
		return
	}
	b.send(userID, fmt.Sprintf("Promo #%d deleted.", id))
}

func (b *Bot) adminTaskAdd(ctx context.Context, userID int64, args string) {
	const usage = "Usage: /task_add subscribe <channel> <reward> <title>\n" +
		"       /task_add referrals <target> <reward> <title>"

	fields := strings.Fields(args)
	if len(fields) < 4 {
		b.send(userID, usage)
		return
	}

	reward, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || reward <= 0 {
		b.send(userID, usage)
		return
	}
	task := &domain.Task{
		Type:     fields[0],
		Reward:   reward,
		Title:    strings.Join(fields[3:], " "),
		IsActive: true,
	}

	switch task.Type {
	case domain.TaskTypeSubscribe:
		task.ChannelID = fields[1]
		task.Description = "Subscribe to " + fields[1]
	case domain.TaskTypeReferrals:
		target, err := strconv.Atoi(fields[1])
		if err != nil || target <= 0 {
			b.send(userID, usage)
			return
		}
		task.TargetValue = target
		task.Description = fmt.Sprintf("Invite %d friends", target)
	default:
		b.send(userID, usage)
		return
	}

	created, err := b.deps.Tasks.Create(ctx, task)
	if err != nil {
		zap.L().Error("failed to create task", zap.Error(err))
		b.send(userID, "Failed to create task.")
		return
	}
	b.send(userID, fmt.Sprintf("Task #%d %q created.", created.ID, created.Title))
}

func (b *Bot) adminTaskList(ctx context.Context, userID int64) {
	tasks, err := b.deps.Tasks.List(ctx)
	if err != nil {
		zap.L().Error("failed to list tasks", zap.Error(err))
		b.send(userID, "Failed to list tasks.")
		return
	}
	if len(tasks) == 0 {
		b.send(userID, "No tasks.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📋 Tasks:\n\n")
	for _, t := range tasks {
		state := "on"
		if !t.IsActive {
			state = "off"
		}
		sb.WriteString(fmt.Sprintf("#%d [%s] %s — %s ⭐ — %s\n", t.ID, t.Type, t.Title, formatStars(t.Reward), state))
	}
	b.send(userID, sb.String())
}

func (b *Bot) adminTaskToggle(ctx context.Context, userID int64, args string) {
	id, active, ok := parseToggle(args)
	if !ok {
		b.send(userID, "Usage: /task_toggle <id> <on|off>")
		return
	}
	if err := b.deps.Tasks.SetActive(ctx, id, active); err != nil {
		zap.L().Error("failed to toggle task", zap.Int("id", id), zap.Error(err))
		b.send(userID, "Failed to update task.")
		return
	}
	b.send(userID, fmt.Sprintf("Task #%d updated.", id))
}

func (b *Bot) adminTaskDelete(ctx context.Context, userID int64, args string) {
	id, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		b.send(userID, "Usage: /task_del <id>")
		return
	}
	if err := b.deps.Tasks.Delete(ctx, id); err != nil {
		zap.L().Error("failed to delete task", zap.Int("id", id), zap.Error(err))
		b.send(userID, "Failed to delete task.")
		return
	}
	b.send(userID, fmt.Sprintf("Task #%d deleted.", id))
}

var gameSettingFields = map[string]string{
	"enabled":     "bool",
	"coeff":       "float",
	"coeff1":      "float",
	"coeff2":      "float",
	"min_bet":     "float",
	"daily_limit": "int",
}

func (b *Bot) adminGameSet(ctx context.Context, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		b.send(userID, "Usage: /game_set <type> <field> <value>")
		return
	}
	gameType, field, value := fields[0], fields[1], fields[2]

	if _, err := b.deps.Games.GameConfig(ctx, gameType); err != nil {
		b.send(userID, "Unknown game type.")
		return
	}

	kind, ok := gameSettingFields[field]
	if !ok {
		b.send(userID, "Field must be one of: enabled, coeff, coeff1, coeff2, min_bet, daily_limit.")
		return
	}
	var valid bool
	switch kind {
	case "bool":
		// Stored as "1"/"0", the form settings.Bool reads back.
		switch value {
		case "true", "1":
			value, valid = "1", true
		case "false", "0":
			value, valid = "0", true
		}
	case "int":
		_, err := strconv.Atoi(value)
		valid = err == nil
	case "float":
		v, err := strconv.ParseFloat(value, 64)
		valid = err == nil && v >= 0
	}
	if !valid {
		b.send(userID, fmt.Sprintf("Bad value for %s.", field))
		return
	}

	key := settingsservice.GameKey(gameType, field)
	if err := b.deps.Settings.Set(ctx, key, value); err != nil {
		zap.L().Error("failed to set game setting", zap.String("key", key), zap.Error(err))
		b.send(userID, "Failed to save setting.")
		return
	}
	b.send(userID, fmt.Sprintf("Set %s = %s.", key, value))
}

func (b *Bot) adminSet(ctx context.Context, userID int64, args string) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		b.send(userID, "Usage: /set <key> <value>")
		return
	}
	if err := b.deps.Settings.Set(ctx, fields[0], fields[1]); err != nil {
		zap.L().Error("failed to set setting", zap.String("key", fields[0]), zap.Error(err))
		b.send(userID, "Failed to save setting.")
		return
	}
	b.send(userID, fmt.Sprintf("Set %s = %s.", fields[0], fields[1]))
}

// runBroadcast fans the text out to every known user with bounded parallelism.
func (b *Bot) runBroadcast(ctx context.Context, adminID int64, text string) {
	ids, err := b.deps.Users.ListIDs(ctx)
	if err != nil {
		zap.L().Error("failed to list users for broadcast", zap.Error(err))
		b.send(adminID, "Failed to load the user list.")
		return
	}

	var sent, failed atomic.Int64
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(broadcastConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
				failed.Add(1)
			} else {
				sent.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	b.send(adminID, fmt.Sprintf("📣 Broadcast done: %d sent, %d failed.", sent.Load(), failed.Load()))
}

func parseToggle(args string) (id int, active, ok bool) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, false, false
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false, false
	}
	switch fields[1] {
	case "on":
		return id, true, true
	case "off":
		return id, false, true
	}
	return 0, false, false
}

func parseRange(s string) (min, max float64, ok bool) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	min, err1 := strconv.ParseFloat(parts[0], 64)
	max, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || min <= 0 || max < min {
		return 0, 0, false
	}
	return min, max, true
}
