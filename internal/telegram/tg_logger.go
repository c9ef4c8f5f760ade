package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/rewardhub/internal/config"
	"github.com/set-night/rewardhub/internal/domain"
)

// TelegramLogger posts operator events into topics of a Telegram log chat.
// It implements service.Notifier.
type TelegramLogger struct {
	sender MessageSender
	cfg    *config.Config
	async  bool
}

func NewTelegramLogger(sender MessageSender, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{sender: sender, cfg: cfg, async: true}
}

type LogType string

const (
	LogTypeError        LogType = "error"
	LogTypeRegistration LogType = "registration"
	LogTypeWithdrawal   LogType = "withdrawal"
	LogTypeSettlement   LogType = "settlement"
)

// Log sends message to the topic configured for logType. Nothing is sent
// when either the chat or the topic is unset. Sends do not block the caller.
func (l *TelegramLogger) Log(logType LogType, message string) {
	if l.sender == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	if l.async {
		go l.send(logType, topicID, message)
		return
	}
	l.send(logType, topicID, message)
}

func (l *TelegramLogger) send(logType LogType, topicID int, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), config.TelegramTimeout)
	defer cancel()

	_, err := l.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            truncate(message),
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: topicID,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "type", logType, "error", err)
	}
}

func (l *TelegramLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ *Error*\n\n*Context:* %s\n*Error:* `%s`\n*Time:* %s",
		context, err.Error(), time.Now().Format("2006-01-02 15:04:05"))
	l.Log(LogTypeError, msg)
}

func (l *TelegramLogger) LogRegistration(userID int64, name, username string, refBy *int64) {
	msg := fmt.Sprintf("👤 *New Registration*\n\n*ID:* `%d`\n*Name:* %s", userID, name)
	if username != "" {
		msg += fmt.Sprintf("\n*Username:* @%s", username)
	}
	if refBy != nil {
		msg += fmt.Sprintf("\n*Referred by:* `%d`", *refBy)
	}
	l.Log(LogTypeRegistration, msg)
}

func (l *TelegramLogger) LogWithdrawalRequest(w *domain.Withdrawal) {
	msg := fmt.Sprintf("💸 *Withdrawal Request*\n\n*ID:* `%d`\n*User:* `%d`\n*Amount:* %s\n*Method:* %s\n*Destination:* `%s`",
		w.ID, w.UserID, w.Amount.String(), w.Rail, w.Destination)
	l.Log(LogTypeWithdrawal, msg)
}

func (l *TelegramLogger) LogSettlement(w *domain.Withdrawal, decision domain.Decision) {
	icon := "✅"
	if decision == domain.DecisionReject {
		icon = "↩️"
	}
	msg := fmt.Sprintf("%s *Withdrawal %s*\n\n*ID:* `%d`\n*User:* `%d`\n*Amount:* %s\n*Method:* %s\n*Status:* %s",
		icon, decision, w.ID, w.UserID, w.Amount.String(), w.Rail, w.Status)
	l.Log(LogTypeSettlement, msg)
}

func (l *TelegramLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeRegistration:
		return l.cfg.LogTopicRegistration
	case LogTypeWithdrawal:
		return l.cfg.LogTopicWithdrawal
	case LogTypeSettlement:
		return l.cfg.LogTopicSettlement
	default:
		return 0
	}
}
