package telegram

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: len(firstWord(text))},
			},
		},
	}
}

func firstWord(text string) string {
	for i, r := range text {
		if r == ' ' {
			return text[:i]
		}
	}
	return text
}

func TestCommandDispatch(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)
	commands := NewCommands(bot)

	var got Command
	commands.Register("start", "Start over", func(ctx context.Context, cmd Command) error {
		got = cmd
		return nil
	})

	require.NoError(t, commands.Handle(context.Background(), commandUpdate(42, "/start now please")))

	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "start", got.Name)
	assert.Equal(t, []string{"now", "please"}, got.Args)
}

func TestUnknownCommandReplies(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)
	commands := NewCommands(bot)

	require.NoError(t, commands.Handle(context.Background(), commandUpdate(42, "/bogus")))

	require.Len(t, api.sent, 1)
	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Unknown command: /bogus")
}

func TestNonCommandUpdateIgnored(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)
	commands := NewCommands(bot)

	update := tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}, Text: "hello"}}
	require.NoError(t, commands.Handle(context.Background(), update))
	assert.Empty(t, api.sent)
}

func TestPublishSendsRegistrationOrder(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)
	commands := NewCommands(bot)

	commands.Register("start", "Start over", func(context.Context, Command) error { return nil })
	commands.Register("menu", "Show the menu", func(context.Context, Command) error { return nil })
	commands.Register("history", "Recent deliveries", func(context.Context, Command) error { return nil })

	require.NoError(t, commands.Publish(context.Background()))

	require.Len(t, api.requests, 1)
	set, ok := api.requests[0].(tgbotapi.SetMyCommandsConfig)
	require.True(t, ok)
	require.Len(t, set.Commands, 3)
	assert.Equal(t, "start", set.Commands[0].Command)
	assert.Equal(t, "menu", set.Commands[1].Command)
	assert.Equal(t, "history", set.Commands[2].Command)
}
