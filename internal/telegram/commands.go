package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Command carries one parsed slash command
type Command struct {
	ChatID    int64
	MessageID int
	Name      string
	Args      []string
}

// CommandFunc handles one command invocation
type CommandFunc func(ctx context.Context, cmd Command) error

type registration struct {
	description string
	fn          CommandFunc
}

// Commands routes slash commands to registered handlers and publishes the
// command list to the client's command menu.
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	handlers map[string]registration
	order    []string
}

// NewCommands creates an empty command registry
func NewCommands(bot *Bot) *Commands {
	return &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]registration),
	}
}

// Register adds a command handler. The description is what the client shows
// in its command menu.
func (c *Commands) Register(name, description string, fn CommandFunc) {
	if _, exists := c.handlers[name]; !exists {
		c.order = append(c.order, name)
	}
	c.handlers[name] = registration{description: description, fn: fn}
	c.logger.Debug().Str("command", name).Msg("Command registered")
}

// Handle dispatches one command update
func (c *Commands) Handle(ctx context.Context, update tgbotapi.Update) error {
	if update.Message == nil || !update.Message.IsCommand() {
		return nil
	}

	msg := update.Message
	cmd := Command{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Name:      msg.Command(),
		Args:      strings.Fields(msg.CommandArguments()),
	}

	c.logger.Debug().
		Int64("chat_id", cmd.ChatID).
		Str("command", cmd.Name).
		Strs("args", cmd.Args).
		Msg("Command received")

	reg, exists := c.handlers[cmd.Name]
	if !exists {
		_, err := c.bot.SendText(ctx, cmd.ChatID, fmt.Sprintf("Unknown command: /%s", cmd.Name))
		return err
	}
	return reg.fn(ctx, cmd)
}

// Publish sets the registered commands as the bot's command menu
func (c *Commands) Publish(ctx context.Context) error {
	commands := make([]tgbotapi.BotCommand, 0, len(c.order))
	for _, name := range c.order {
		commands = append(commands, tgbotapi.BotCommand{
			Command:     name,
			Description: c.handlers[name].description,
		})
	}

	if _, err := c.bot.request(ctx, tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(commands)).Msg("Bot commands published")
	return nil
}
