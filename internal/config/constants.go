package config

import "time"

const (
	// Session payloads older than this are rejected.
	InitDataMaxAge = 20 * time.Minute

	// Tolerated clock drift for auth_date values ahead of the server.
	InitDataClockSkew = 30 * time.Second

	// Action tokens are single-use and live this long.
	ActionTokenTTL = 60 * time.Second

	// Expired action token purge interval
	ActionTokenCleanup = 60 * time.Second

	// Daily quotas
	DailyMaxAds   = 100
	DailyMaxSpins = 15

	// Counters reset this long after the quota was hit.
	QuotaResetInterval = 6 * time.Hour

	// Minimum gap between two reward actions of one user
	MinTimeBetweenActions = 3 * time.Second

	// Minimum gap between two task completions of one user, any task
	MinTaskCompletionInterval = 5 * time.Second

	// Outbound Telegram API timeout
	TelegramTimeout = 10 * time.Second

	// HTTP server timeouts
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 30 * time.Second
	ShutdownTimeout = 10 * time.Second

	// Maximum accepted request body
	MaxRequestBody = 64 << 10

	// In-process commission queue depth
	CommissionQueueSize = 256
)

// RewardPerAd is the fixed reward for one watched ad.
const RewardPerAd = 3

// SpinSectors is the prize table of the wheel. Duplicate values are legal
// and weight the odds.
var SpinSectors = []int64{5, 10, 15, 20, 5}
