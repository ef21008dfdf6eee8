package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Messenger is the slice of the messaging gateway the renderer needs
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, kb *Keyboard) (messageID int, err error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, kb *Keyboard) error
}

// Renderer renders menus. Animation is a presentation choice only: either
// way exactly one final message carries the full text and keyboard, and its
// id is handed to the recorder.
type Renderer struct {
	gw      Messenger
	animate bool
	delay   time.Duration
	logger  zerolog.Logger
}

// NewRenderer creates a renderer
func NewRenderer(gw Messenger, animate bool, delay time.Duration, logger zerolog.Logger) *Renderer {
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	return &Renderer{
		gw:      gw,
		animate: animate,
		delay:   delay,
		logger:  logger.With().Str("component", "ui").Logger(),
	}
}

// Menu renders a titled menu with the given keyboard. record receives the id
// of the final message so the caller can append it to the session's history.
func (r *Renderer) Menu(ctx context.Context, chatID int64, title string, kb Keyboard, record func(messageID int)) error {
	var messageID int
	var err error

	if r.animate && len(kb.Rows) > 1 {
		messageID, err = r.animateMenu(ctx, chatID, title, kb)
	} else {
		messageID, err = r.gw.SendMessage(ctx, chatID, title, &kb)
	}
	if err != nil {
		return fmt.Errorf("failed to render menu: %w", err)
	}

	if record != nil {
		record(messageID)
	}
	return nil
}

// Notice sends a plain informational message without a keyboard
func (r *Renderer) Notice(ctx context.Context, chatID int64, text string, record func(messageID int)) error {
	messageID, err := r.gw.SendMessage(ctx, chatID, text, nil)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	if record != nil {
		record(messageID)
	}
	return nil
}

// animateMenu reveals the item labels one edit at a time, then attaches the
// keyboard with the final edit. Edits are paced by the configured delay and
// abandoned (skipping straight to the final edit) when the context ends.
func (r *Renderer) animateMenu(ctx context.Context, chatID int64, title string, kb Keyboard) (int, error) {
	messageID, err := r.gw.SendMessage(ctx, chatID, title, nil)
	if err != nil {
		return 0, err
	}

	labels := make([]string, 0, len(kb.Rows))
	for _, row := range kb.Rows {
		if len(row) == 1 {
			labels = append(labels, row[0].Label)
		}
	}

	ticker := time.NewTicker(r.delay)
	defer ticker.Stop()

	var shown []string
reveal:
	for _, label := range labels {
		select {
		case <-ctx.Done():
			break reveal
		case <-ticker.C:
		}

		shown = append(shown, label)
		text := title + "\n\n" + strings.Join(shown, "\n")
		if err := r.gw.EditMessage(ctx, chatID, messageID, text, nil); err != nil {
			r.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("Menu animation edit failed")
			break reveal
		}
	}

	// The final edit always carries the complete menu.
	if err := r.gw.EditMessage(ctx, chatID, messageID, title, &kb); err != nil {
		return 0, err
	}
	return messageID, nil
}
