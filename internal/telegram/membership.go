package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
)

// MembershipChecker asks the Bot API for a user's status in a channel. The
// bot must be an administrator of the channel for the lookup to succeed.
type MembershipChecker struct {
	bot     ChatMemberGetter
	timeout time.Duration
}

func NewMembershipChecker(b ChatMemberGetter) *MembershipChecker {
	return &MembershipChecker{bot: b, timeout: config.TelegramTimeout}
}

// MemberStatus returns the status of userID in channel ("@handle").
func (c *MembershipChecker) MemberStatus(ctx context.Context, userID int64, channel string) (domain.MemberStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	member, err := c.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: channel,
		UserID: userID,
	})
	if err != nil {
		return "", fmt.Errorf("get chat member %s: %w", channel, err)
	}
	return domain.MemberStatus(member.Type), nil
}
