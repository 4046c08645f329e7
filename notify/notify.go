package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MessageSender sends messages to Telegram.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, html bool) (int64, error)
}

// TelegramSender sends messages through the Bot API.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramSender authenticates token against the Bot API.
func NewTelegramSender(token string) (*TelegramSender, error) {
	return NewTelegramSenderWithClient(token, tgbotapi.APIEndpoint, &http.Client{})
}

// NewTelegramSenderWithClient is NewTelegramSender with a custom endpoint
// format (see tgbotapi.APIEndpoint) and HTTP client.
func NewTelegramSenderWithClient(token, endpoint string, client *http.Client) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

// SendMessage sends text to chatID and returns the message ID.
func (s *TelegramSender) SendMessage(ctx context.Context, chatID int64, text string, asHTML bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if asHTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	msg.DisableWebPagePreview = true

	sent, err := s.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send telegram message: %w", err)
	}
	return int64(sent.MessageID), nil
}

// Notifier reports run outcomes to the owner's chat. Delivery failures are
// logged and never returned.
type Notifier struct {
	sender MessageSender
	chatID int64
	logger *slog.Logger
}

// NewNotifier creates a notifier for chatID.
func NewNotifier(sender MessageSender, chatID int64, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, chatID: chatID, logger: logger}
}

// Published announces a successful post.
func (n *Notifier) Published(ctx context.Context, title, post, url string) {
	n.send(ctx, FormatPublished(title, post, url))
}

// Failed announces an aborted run.
func (n *Notifier) Failed(ctx context.Context, runID string, err error) {
	n.send(ctx, FormatFailed(runID, err))
}

func (n *Notifier) send(ctx context.Context, text string) {
	if _, err := n.sender.SendMessage(ctx, n.chatID, text, true); err != nil {
		n.logger.Warn("failed to send notification", "chat_id", n.chatID, "error", err)
	}
}

// FormatPublished formats the success message.
func FormatPublished(title, post, url string) string {
	return fmt.Sprintf(
		"✅ <b>Posted from %s</b>\n\n"+
			"%s\n\n"+
			"<a href=\"%s\">View post</a>",
		html.EscapeString(title), html.EscapeString(post), html.EscapeString(url),
	)
}

// FormatFailed formats the failure message.
func FormatFailed(runID string, err error) string {
	return fmt.Sprintf(
		"⚠️ <b>Post run failed</b>\n\n"+
			"<code>%s</code>\n"+
			"run %s",
		html.EscapeString(err.Error()), html.EscapeString(runID),
	)
}
