package daemon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/farid/maktaba/internal/telegram"
	"github.com/farid/maktaba/pkg/commandqueue"
)

// laneFor names the serialization lane of one chat
func laneFor(chatID int64) string {
	return fmt.Sprintf("chat:%d", chatID)
}

// dispatchLoop consumes updates and hands each to a bounded worker. Events
// for the same chat serialize on its lane; different chats run in parallel.
func (d *Daemon) dispatchLoop() {
	updates := d.bot.Updates()

	poolSize := d.config.Telegram.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	workers := make(chan struct{}, poolSize)

	d.logger.Info().Int("workers", poolSize).Msg("Update dispatch started")

	for update := range updates {
		select {
		case <-d.ctx.Done():
			d.logger.Info().Msg("Update dispatch stopping")
			return
		default:
		}

		if d.dedup.Seen(fmt.Sprintf("update:%d", update.UpdateID)) {
			d.logger.Debug().Int("update_id", update.UpdateID).Msg("Duplicate update dropped")
			continue
		}

		workers <- struct{}{}
		d.wg.Add(1)
		go func(update tgbotapi.Update) {
			defer d.wg.Done()
			defer func() { <-workers }()
			defer func() {
				// One chat's failure must never take the loop down.
				if r := recover(); r != nil {
					d.logger.Error().
						Interface("panic", r).
						Int("update_id", update.UpdateID).
						Msg("Recovered from update handler panic")
				}
			}()

			d.handleUpdate(update)
		}(update)
	}
}

func (d *Daemon) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		d.handleCallback(update.CallbackQuery)

	case update.Message != nil && update.Message.IsCommand():
		if err := d.commands.Handle(d.ctx, update); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", update.Message.Chat.ID).Msg("Command failed")
		}

	case update.Message != nil:
		// Free-text messages get a gentle pointer at the menu.
		chatID := update.Message.Chat.ID
		if d.metrics != nil {
			d.metrics.MessagesReceivedTotal.Inc()
		}
		if _, err := d.bot.SendText(d.ctx, chatID, "Use /start to browse the catalog."); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send hint")
		}
	}
}

func (d *Daemon) handleCallback(cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID

	if d.metrics != nil {
		d.metrics.CallbacksTotal.Inc()
	}

	// Acknowledge right away so the client drops its spinner even when the
	// selection has to wait behind a running delivery.
	d.bot.AnswerCallback(d.ctx, cq.ID)

	err := d.queue.Enqueue(d.ctx, laneFor(chatID), func(ctx context.Context) error {
		return d.nav.HandleCallback(ctx, chatID, cq.Data)
	})
	switch {
	case errors.Is(err, commandqueue.ErrLaneReset):
		d.logger.Debug().Int64("chat_id", chatID).Msg("Selection discarded by reset")
	case err != nil:
		d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Selection handling failed")
	}
}

// resetChat clears everything queued or running for the chat: the session
// reset cancels an in-flight delivery, the lane reset rejects queued events.
func (d *Daemon) resetChat(chatID int64) {
	d.queue.ResetLane(laneFor(chatID))
	d.sessions.Reset(chatID)
}

func (d *Daemon) registerCommands() {
	d.commands.Register("start", "Browse the catalog", func(ctx context.Context, cmd telegram.Command) error {
		d.resetChat(cmd.ChatID)
		return d.queue.Enqueue(ctx, laneFor(cmd.ChatID), func(ctx context.Context) error {
			return d.nav.Start(ctx, cmd.ChatID)
		})
	})

	d.commands.Register("menu", "Back to the main menu", func(ctx context.Context, cmd telegram.Command) error {
		return d.queue.Enqueue(ctx, laneFor(cmd.ChatID), func(ctx context.Context) error {
			return d.nav.Menu(ctx, cmd.ChatID)
		})
	})

	d.commands.Register("reset", "Clear your session", func(ctx context.Context, cmd telegram.Command) error {
		d.resetChat(cmd.ChatID)
		_, err := d.bot.SendText(ctx, cmd.ChatID, "🧹 Session cleared. Send /start to browse.")
		return err
	})

	d.commands.Register("history", "Your recent deliveries", func(ctx context.Context, cmd telegram.Command) error {
		_, err := d.bot.SendText(ctx, cmd.ChatID, d.historyText(ctx, cmd.ChatID))
		return err
	})
}

// historyText formats the chat's recent delivery runs
func (d *Daemon) historyText(ctx context.Context, chatID int64) string {
	if d.history == nil {
		return "History is not available."
	}

	entries, err := d.history.Recent(ctx, chatID, 5)
	if err != nil {
		d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to load delivery history")
		return "History is not available right now."
	}
	if len(entries) == 0 {
		return "No deliveries yet. Send /start to browse."
	}

	var b strings.Builder
	b.WriteString("Your recent deliveries:\n")
	for _, e := range entries {
		status := fmt.Sprintf("%d of %d", e.Sent, e.Total)
		if e.Cancelled {
			status += ", cancelled"
		}
		fmt.Fprintf(&b, "• %s (%s) %s\n", e.Path, status, e.At.Local().Format(time.DateOnly))
	}
	return strings.TrimRight(b.String(), "\n")
}
