// Package telegram is the messaging gateway: a thin, context-bounded wrapper
// over the Bot API that the renderer, the delivery pipeline and the command
// registry consume.
package telegram

import (
	"context"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/farid/maktaba/internal/config"
	"github.com/farid/maktaba/internal/metrics"
	"github.com/farid/maktaba/internal/ui"
)

// API is the slice of the Bot API client the gateway uses. *tgbotapi.BotAPI
// satisfies it; tests substitute a fake.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot wraps the Telegram Bot API behind the gateway operations
type Bot struct {
	api     API
	config  config.TelegramConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New authenticates against the Bot API and returns the gateway
func New(cfg config.TelegramConfig, m *metrics.Metrics, logger zerolog.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot := NewWithAPI(api, cfg, m, logger)
	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")
	return bot, nil
}

// NewWithAPI wires the gateway onto an existing API client
func NewWithAPI(api API, cfg config.TelegramConfig, m *metrics.Metrics, logger zerolog.Logger) *Bot {
	return &Bot{
		api:     api,
		config:  cfg,
		metrics: m,
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Updates opens the long-poll update channel
func (b *Bot) Updates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.UpdateTimeout
	if u.Timeout <= 0 {
		u.Timeout = 60
	}
	return b.api.GetUpdatesChan(u)
}

// StopReceiving closes the update channel
func (b *Bot) StopReceiving() {
	b.api.StopReceivingUpdates()
}

// SendMessage sends a text message, optionally with an inline keyboard, and
// returns the new message's id.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, kb *ui.Keyboard) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup := toMarkup(kb); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := b.send(ctx, msg)
	if err != nil {
		b.countError()
		return 0, fmt.Errorf("failed to send message: %w", err)
	}

	b.countSent()
	b.logger.Debug().Int64("chat_id", chatID).Int("message_id", sent.MessageID).Msg("Message sent")
	return sent.MessageID, nil
}

// SendText sends a plain text message
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	return b.SendMessage(ctx, chatID, text, nil)
}

// EditMessage replaces a message's text and keyboard in place. An edit that
// changes nothing is reported as success.
func (b *Bot) EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *ui.Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markup := toMarkup(kb); markup != nil {
		edit.ReplyMarkup = markup
	}

	if _, err := b.send(ctx, edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		b.countError()
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// EditText replaces a message's text, dropping any keyboard it carried
func (b *Bot) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	return b.EditMessage(ctx, chatID, messageID, text, nil)
}

// DeleteMessage removes a message. A message that is already gone is not an
// error.
func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := b.request(ctx, tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		if isNotFound(err) {
			b.logger.Debug().Int64("chat_id", chatID).Int("message_id", messageID).Msg("Message already deleted")
			return nil
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// SendDocument uploads a catalog file as a document attachment, preserving
// its original filename.
func (b *Bot) SendDocument(ctx context.Context, chatID int64, path, filename string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: filename, Reader: f})
	if _, err := b.send(ctx, doc); err != nil {
		b.countError()
		return fmt.Errorf("failed to send document: %w", err)
	}

	b.countSent()
	b.logger.Debug().Int64("chat_id", chatID).Str("filename", filename).Msg("Document sent")
	return nil
}

// SendTyping shows the typing indicator. Failures are logged only.
func (b *Bot) SendTyping(ctx context.Context, chatID int64) {
	if _, err := b.request(ctx, tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("Failed to send typing indicator")
	}
}

// AnswerCallback acknowledges a callback query so the client stops showing
// its spinner. Failures are logged only.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID string) {
	if _, err := b.request(ctx, tgbotapi.NewCallback(callbackID, "")); err != nil {
		b.logger.Debug().Err(err).Msg("Failed to answer callback")
	}
}

// send runs a Send call bounded by the context. The underlying client has no
// context support, so a late result is simply discarded.
func (b *Bot) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}

	type result struct {
		msg tgbotapi.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := b.api.Send(c)
		done <- result{msg: msg, err: err}
	}()

	select {
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case r := <-done:
		return r.msg, r.err
	}
}

// request is send for calls that return no message
func (b *Bot) request(ctx context.Context, c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		resp *tgbotapi.APIResponse
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := b.api.Request(c)
		done <- result{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.resp, r.err
	}
}

func (b *Bot) countSent() {
	if b.metrics != nil {
		b.metrics.MessagesSentTotal.Inc()
	}
}

func (b *Bot) countError() {
	if b.metrics != nil {
		b.metrics.SendErrorsTotal.Inc()
	}
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "message to delete not found") ||
		strings.Contains(msg, "message not found")
}
