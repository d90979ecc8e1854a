package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/semmidev/s3cleaner/internal/config"
	"github.com/semmidev/s3cleaner/internal/domain"
)

type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a summary of every clean run to one chat.
type TelegramNotifier struct {
	bot    Sender
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id %q: %w", cfg.ChatID, err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) NotifyClean(ctx context.Context, result domain.CleanResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, formatClean(result))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func formatClean(result domain.CleanResult) string {
	status := "✅ Bucket Cleaned"
	if result.FailedBatches > 0 || result.ListingAborted {
		status = "⚠️ Bucket Cleaned With Errors"
	}

	var b strings.Builder
	b.WriteString(status + "\n\n")
	fmt.Fprintf(&b, "🪣 Bucket: %s\n", result.Bucket)
	if result.Prefix != "" {
		fmt.Fprintf(&b, "📁 Prefix: %s\n", result.Prefix)
	}
	fmt.Fprintf(&b, "🗑 Deleted: %d of %d matched (%d scanned)\n", result.Deleted, result.Matched, result.Scanned)
	if result.FailedBatches > 0 {
		fmt.Fprintf(&b, "❌ Failed batches: %d of %d\n", result.FailedBatches, result.Batches)
	}
	if result.ListingAborted {
		b.WriteString("❌ Listing stopped early\n")
	}
	fmt.Fprintf(&b, "⏱ Duration: %s\n", result.Duration.Round(time.Second))
	fmt.Fprintf(&b, "🔖 Run: %s", result.RunID)
	return b.String()
}
