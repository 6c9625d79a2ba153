// Package telegram sends feed digests via the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/skyfeed/internal/feed"
	"github.com/rewired-gh/skyfeed/internal/logger"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Client handles Telegram notifications.
type Client struct {
	bot            sender
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	return newClient(bot, chatIDInt, maxRetries, retryDelayBase), nil
}

func newClient(bot sender, chatID int64, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}
	return &Client{
		bot:            bot,
		chatID:         chatID,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		logger.Warn("Telegram send attempt %d/%d failed: %v", i+1, c.maxRetries, err)

		if i == c.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelayBase * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a run failure notification.
func (c *Client) SendError(ctx context.Context, runErr error) error {
	text := fmt.Sprintf("⚠️ *Feed run failed*\n`%s`", escapeCode(runErr.Error()))
	return c.sendMarkdownV2(ctx, text)
}

// SendDigest sends the feed as one or more messages.
func (c *Client) SendDigest(ctx context.Context, env feed.Envelope) error {
	for i, text := range formatDigest(env) {
		if err := c.sendMarkdownV2(ctx, text); err != nil {
			return fmt.Errorf("digest part %d: %w", i+1, err)
		}
	}
	return nil
}

// formatDigest renders the envelope as MarkdownV2 messages, splitting between
// records when a message would grow past maxMessageLen.
func formatDigest(env feed.Envelope) []string {
	header := fmt.Sprintf("🔭 *Sky feed* %s → %s\nRun: `%s`\n\n",
		escapeMarkdownV2(shortDateTime(env.Start)),
		escapeMarkdownV2(shortDateTime(env.End)),
		escapeCode(env.RunID))

	if len(env.Events) == 0 {
		return []string{header + "No events\\."}
	}

	var messages []string
	var b strings.Builder
	b.WriteString(header)
	for _, r := range env.Events {
		line := formatRecord(r)
		if b.Len()+len(line) > maxMessageLen && b.Len() > 0 {
			messages = append(messages, b.String())
			b.Reset()
		}
		b.WriteString(line)
	}
	messages = append(messages, b.String())
	return messages
}

func formatRecord(r feed.Record) string {
	if r.Type == feed.TypePeriod {
		end := "…"
		if r.DateTimeEnd != "" {
			end = shortDateTime(r.DateTimeEnd)
		}
		return fmt.Sprintf("• `%s → %s` %s\n",
			escapeCode(shortDateTime(r.DateTimeStart)), escapeCode(end), escapeMarkdownV2(r.Description))
	}
	return fmt.Sprintf("• `%s` %s\n", escapeCode(shortDateTime(r.DateTime)), escapeMarkdownV2(r.Description))
}

// shortDateTime drops seconds and the UTC offset from a feed datetime.
func shortDateTime(s string) string {
	t, err := feed.ParseDateTime(s)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02 15:04")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}

// escapeCode escapes text inside a MarkdownV2 code span.
func escapeCode(text string) string {
	return strings.NewReplacer("\\", "\\\\", "`", "\\`").Replace(text)
}
