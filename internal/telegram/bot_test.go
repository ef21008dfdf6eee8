package telegram

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farid/maktaba/internal/config"
	"github.com/farid/maktaba/internal/ui"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	reqErr   error
	nextID   int
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(tgbotapi.UpdatesChannel)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func newBot(api *fakeAPI) *Bot {
	return NewWithAPI(api, config.TelegramConfig{UpdateTimeout: 1}, nil, zerolog.Nop())
}

func TestSendMessageWithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)

	kb := ui.Keyboard{Rows: [][]ui.Button{{{Label: "2023", Data: "y|abc"}}}}
	id, err := bot.SendMessage(context.Background(), 42, "Choose a year", &kb)
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	require.Len(t, api.sent, 1)
	msg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "Choose a year", msg.Text)

	markup, ok := msg.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	assert.Equal(t, "2023", markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "y|abc", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestSendTextWithoutKeyboard(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)

	_, err := bot.SendText(context.Background(), 42, "hello")
	require.NoError(t, err)

	msg := api.sent[0].(tgbotapi.MessageConfig)
	assert.Nil(t, msg.ReplyMarkup)
}

func TestEditMessageToleratesNotModified(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("Bad Request: message is not modified")}
	bot := newBot(api)

	err := bot.EditText(context.Background(), 42, 7, "same text")
	assert.NoError(t, err)
}

func TestEditMessagePropagatesOtherErrors(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("Bad Request: chat not found")}
	bot := newBot(api)

	err := bot.EditText(context.Background(), 42, 7, "text")
	assert.Error(t, err)
}

func TestDeleteMessageToleratesNotFound(t *testing.T) {
	api := &fakeAPI{reqErr: errors.New("Bad Request: message to delete not found")}
	bot := newBot(api)

	err := bot.DeleteMessage(context.Background(), 42, 7)
	assert.NoError(t, err)
}

func TestSendDocumentPreservesFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	api := &fakeAPI{}
	bot := newBot(api)

	require.NoError(t, bot.SendDocument(context.Background(), 42, path, "a.pdf"))

	require.Len(t, api.sent, 1)
	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	reader, ok := doc.File.(tgbotapi.FileReader)
	require.True(t, ok)
	assert.Equal(t, "a.pdf", reader.Name)
}

func TestSendDocumentMissingFile(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)

	err := bot.SendDocument(context.Background(), 42, filepath.Join(t.TempDir(), "nope.pdf"), "nope.pdf")
	assert.Error(t, err)
	assert.Empty(t, api.sent)
}

func TestSendRespectsCancelledContext(t *testing.T) {
	api := &fakeAPI{}
	bot := newBot(api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bot.SendText(ctx, 42, "late")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, api.sent)
}

func TestSendTypingFailureIsSwallowed(t *testing.T) {
	api := &fakeAPI{reqErr: errors.New("Too Many Requests")}
	bot := newBot(api)

	// Must not panic or surface the error.
	bot.SendTyping(context.Background(), 42)
	bot.AnswerCallback(context.Background(), "cb-1")
}
