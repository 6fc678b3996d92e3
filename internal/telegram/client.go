package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Button is one inline-keyboard button. Exactly one of Data and URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is rendered as rows of inline buttons under a message.
type Keyboard [][]Button

// Messenger is the outbound messaging surface the bot handlers depend on.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string, keyboard Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// Update is the inbound shape handlers consume, decoupled from the
// transport library. Exactly one of Message and Callback is set.
type Update struct {
	Message  *Message
	Callback *Callback
}

type Message struct {
	ChatID   int64
	UserID   int64
	Username string
	Text     string
}

type Callback struct {
	ID       string
	ChatID   int64
	UserID   int64
	Username string
	Data     string
}

// BotClient adapts the Telegram Bot API to the Messenger interface and
// exposes the long-poll update stream.
type BotClient struct {
	api *tgbotapi.BotAPI
}

func NewBotClient(token string) (*BotClient, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return &BotClient{api: api}, nil
}

func (c *BotClient) Username() string {
	return c.api.Self.UserName
}

func (c *BotClient) SendText(_ context.Context, chatID int64, text string, keyboard Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if keyboard != nil {
		msg.ReplyMarkup = buildMarkup(keyboard)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return nil
}

func (c *BotClient) SendPhoto(_ context.Context, chatID int64, photoURL, caption string, keyboard Keyboard) error {
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURL))
	msg.Caption = caption
	if keyboard != nil {
		msg.ReplyMarkup = buildMarkup(keyboard)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send photo to chat %d: %w", chatID, err)
	}
	return nil
}

func (c *BotClient) AnswerCallback(_ context.Context, callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

// Updates starts long polling and converts raw updates to the neutral
// shape. The channel closes when ctx is cancelled.
func (c *BotClient) Updates(ctx context.Context) <-chan Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30

	raw := c.api.GetUpdatesChan(cfg)
	out := make(chan Update)

	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-raw:
				if !ok {
					return
				}
				converted, ok := convert(upd)
				if !ok {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func convert(upd tgbotapi.Update) (Update, bool) {
	switch {
	case upd.Message != nil && upd.Message.From != nil:
		return Update{Message: &Message{
			ChatID:   upd.Message.Chat.ID,
			UserID:   upd.Message.From.ID,
			Username: upd.Message.From.UserName,
			Text:     upd.Message.Text,
		}}, true
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		return Update{Callback: &Callback{
			ID:       upd.CallbackQuery.ID,
			ChatID:   upd.CallbackQuery.Message.Chat.ID,
			UserID:   upd.CallbackQuery.From.ID,
			Username: upd.CallbackQuery.From.UserName,
			Data:     upd.CallbackQuery.Data,
		}}, true
	default:
		return Update{}, false
	}
}

func buildMarkup(keyboard Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
