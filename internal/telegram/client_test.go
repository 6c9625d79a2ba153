package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rewired-gh/skyfeed/internal/feed"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Test*bold*", "Test\\*bold\\*"},
		{"Price: $100.50", "Price: $100\\.50"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"~strikethrough~", "\\~strikethrough\\~"},
		{"`code`", "\\`code\\`"},
		{">blockquote", "\\>blockquote"},
		{"#header", "\\#header"},
		{"+plus-minus", "\\+plus\\-minus"},
		{"=equal|pipe", "\\=equal\\|pipe"},
		{"{brace}", "\\{brace\\}"},
		{"end!", "end\\!"},
		{`back\slash`, `back\\slash`},
		{"", ""},
		{"_*[]()~`>#+-=|{}.!", "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeMarkdownV2(tt.input)
			if result != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNewClient_InvalidChatID(t *testing.T) {
	// Chat ID parsing happens before any network call
	_, err := NewClient("", "not-a-number", 3, time.Second)
	if err == nil {
		t.Error("Expected error for invalid chat ID, got nil")
	}
}

type fakeBot struct {
	fail int
	sent []tgbotapi.MessageConfig
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.fail > 0 {
		f.fail--
		return tgbotapi.Message{}, errors.New("bad gateway")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func testEnvelope(records ...feed.Record) feed.Envelope {
	return feed.Envelope{
		RunID:  "3f1c",
		Start:  "2024-01-01 00:00:00+00:00",
		End:    "2024-02-01 00:00:00+00:00",
		Events: records,
	}
}

func TestSendDigest(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 42, 3, time.Millisecond)

	env := testEnvelope(
		feed.Record{Type: feed.TypePeriod, DateTime: "2024-01-01 00:00:00+00:00", DateTimeStart: "2024-01-01 00:00:00+00:00", DateTimeEnd: "2024-01-02 03:10:00+00:00", Description: "20 Moon day"},
		feed.Record{Type: feed.TypePoint, DateTime: "2024-01-04 14:57:00+00:00", Description: "Mars enters Capricorn"},
	)
	if err := c.SendDigest(context.Background(), env); err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}
	if len(bot.sent) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(bot.sent))
	}

	msg := bot.sent[0]
	if msg.ChatID != 42 || msg.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Errorf("Unexpected message config: chat=%d mode=%s", msg.ChatID, msg.ParseMode)
	}
	for _, want := range []string{
		"2024\\-01\\-01 00:00 → 2024\\-02\\-01 00:00",
		"Run: `3f1c`",
		"• `2024-01-01 00:00 → 2024-01-02 03:10` 20 Moon day\n",
		"• `2024-01-04 14:57` Mars enters Capricorn\n",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Errorf("Message missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestSendDigestRetries(t *testing.T) {
	bot := &fakeBot{fail: 2}
	c := newClient(bot, 1, 3, time.Millisecond)
	if err := c.SendDigest(context.Background(), testEnvelope()); err != nil {
		t.Fatalf("SendDigest failed: %v", err)
	}
	if len(bot.sent) != 1 || !strings.Contains(bot.sent[0].Text, "No events\\.") {
		t.Errorf("Unexpected messages: %+v", bot.sent)
	}

	bot = &fakeBot{fail: 5}
	c = newClient(bot, 1, 2, time.Millisecond)
	if err := c.SendError(context.Background(), errors.New("oracle down")); err == nil {
		t.Error("Expected error after exhausting retries")
	}
}

func TestFormatDigestSplitsLongFeeds(t *testing.T) {
	var records []feed.Record
	for i := 0; i < 300; i++ {
		records = append(records, feed.Record{Type: feed.TypePoint, DateTime: "2024-01-04 14:57:00+00:00", Description: "Mercury in Conjunction with Venus"})
	}
	messages := formatDigest(testEnvelope(records...))
	if len(messages) < 2 {
		t.Fatalf("Expected split digest, got %d messages", len(messages))
	}

	total := 0
	for _, m := range messages {
		if len(m) > maxMessageLen {
			t.Errorf("Message too long: %d", len(m))
		}
		total += strings.Count(m, "• ")
	}
	if total != len(records) {
		t.Errorf("Expected %d lines across messages, got %d", len(records), total)
	}
}

func TestFormatRecordOpenPeriod(t *testing.T) {
	got := formatRecord(feed.Record{Type: feed.TypePeriod, DateTime: "2024-01-31 00:00:00+00:00", DateTimeStart: "2024-01-31 00:00:00+00:00", Description: "20 Moon day"})
	want := "• `2024-01-31 00:00 → …` 20 Moon day\n"
	if got != want {
		t.Errorf("formatRecord() = %q, want %q", got, want)
	}
}
