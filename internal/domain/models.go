package domain

import "time"

type User struct {
	ID            int64      `db:"user_id"`
	Username      string     `db:"username"`
	FirstName     string     `db:"first_name"`
	Balance       float64    `db:"balance"`
	ReferralCount int        `db:"referral_count"`
	ReferredBy    *int64     `db:"referred_by"`
	LastBonusAt   *time.Time `db:"last_bonus_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

const (
	// TaskTypeSubscribe requires membership in a channel.
	TaskTypeSubscribe string = "subscribe"
	// TaskTypeReferrals requires a minimum referral count.
	TaskTypeReferrals string = "referrals"
)

type Task struct {
	ID          int       `db:"id"`
	Type        string    `db:"task_type"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Reward      float64   `db:"reward"`
	ChannelID   string    `db:"channel_id"`
	TargetValue int       `db:"target_value"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
}

type PromoCode struct {
	ID         int       `db:"id"`
	Code       string    `db:"code"`
	Reward     float64   `db:"reward"`
	IsRandom   bool      `db:"is_random"`
	RewardMin  *float64  `db:"reward_min"`
	RewardMax  *float64  `db:"reward_max"`
	UsageLimit *int      `db:"usage_limit"`
	UsageCount int       `db:"usage_count"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
}

const (
	PendingWithdrawalStatus  string = "pending"
	ApprovedWithdrawalStatus string = "approved"
	RejectedWithdrawalStatus string = "rejected"
)

type Withdrawal struct {
	ID                  int        `db:"id"`
	UserID              int64      `db:"user_id"`
	Amount              float64    `db:"amount"`
	Status              string     `db:"status"`
	CreatedAt           time.Time  `db:"created_at"`
	ProcessedAt         *time.Time `db:"processed_at"`
	ModerationMessageID *int       `db:"moderation_message_id"`
	PublicMessageID     *int       `db:"public_message_id"`
}

const (
	WinOutcome  string = "win"
	LoseOutcome string = "lose"
)

type GameRound struct {
	ID       int       `db:"id"`
	UserID   int64     `db:"user_id"`
	GameType string    `db:"game_type"`
	Bet      float64   `db:"bet"`
	Outcome  string    `db:"outcome"`
	Payout   float64   `db:"payout"`
	PlayedAt time.Time `db:"played_at"`
}

// Stats is the aggregate snapshot shown on the admin panel.
type Stats struct {
	UserCount     int
	PendingCount  int
	ApprovedTotal float64
}
