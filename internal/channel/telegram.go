package channel

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/stellarlinkco/socbot/internal/bus"
	"github.com/stellarlinkco/socbot/internal/config"
)

const telegramChannelName = "telegram"

// Telegram caps messages at 4096 chars; stay under it so formatting
// survives.
const telegramMaxMessage = 3500

// TelegramBot is the slice of the bot API the channel uses, extracted
// for mocking.
type TelegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetSelf() tgbotapi.User
}

type tgBotWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *tgBotWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *tgBotWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *tgBotWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *tgBotWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates TelegramBot instances (allows mocking)
type BotFactory func(token, apiEndpoint string, client *http.Client) (TelegramBot, error)

var defaultBotFactory BotFactory = func(token, apiEndpoint string, client *http.Client) (TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &tgBotWrapper{bot: bot}, nil
}

type TelegramChannel struct {
	BaseChannel
	token      string
	proxy      string
	bot        TelegramBot
	botFactory BotFactory
	cancel     context.CancelFunc
}

func NewTelegramChannel(cfg config.TelegramConfig, subscribers []string, b *bus.MessageBus) (*TelegramChannel, error) {
	return NewTelegramChannelWithFactory(cfg, subscribers, b, defaultBotFactory)
}

// NewTelegramChannelWithFactory creates a TelegramChannel with a custom
// bot factory (for testing).
func NewTelegramChannelWithFactory(cfg config.TelegramConfig, subscribers []string, b *bus.MessageBus, factory BotFactory) (*TelegramChannel, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if len(subscribers) == 0 {
		return nil, fmt.Errorf("telegram channel requires a non-empty subscriber list")
	}

	return &TelegramChannel{
		BaseChannel: NewBaseChannel(telegramChannelName, b, subscribers),
		token:       cfg.Token,
		proxy:       cfg.Proxy,
		botFactory:  factory,
	}, nil
}

func (t *TelegramChannel) initBot() error {
	client := http.DefaultClient
	if t.proxy != "" {
		proxyURL, err := url.Parse(t.proxy)
		if err != nil {
			return fmt.Errorf("parse proxy url: %w", err)
		}
		client = &http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}
	}

	bot, err := t.botFactory(t.token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	t.bot = bot
	log.Printf("[telegram] authorized as @%s", bot.GetSelf().UserName)
	return nil
}

func (t *TelegramChannel) Start(ctx context.Context) error {
	if err := t.initBot(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update := <-updates:
				if update.Message == nil {
					continue
				}
				t.handleMessage(update.Message)
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Printf("[telegram] polling started")
	return nil
}

func (t *TelegramChannel) handleMessage(msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	senderID := strconv.FormatInt(msg.From.ID, 10)

	if !t.IsAllowed(senderID) {
		// Unknown senders get a terse rejection and never any query
		// data.
		log.Printf("[telegram] rejected message from %s (%s)", senderID, msg.From.UserName)
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Unauthorized user.")
		if _, err := t.bot.Send(reply); err != nil {
			log.Printf("[telegram] send rejection failed: %v", err)
		}
		return
	}

	content := strings.TrimSpace(msg.Text)
	if content == "" {
		return
	}

	t.bus.Inbound <- bus.InboundMessage{
		Channel:   telegramChannelName,
		SenderID:  senderID,
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		Content:   content,
		Timestamp: time.Unix(int64(msg.Date), 0),
		Metadata: map[string]any{
			"username":   msg.From.UserName,
			"message_id": msg.MessageID,
		},
	}
}

func (t *TelegramChannel) Send(msg bus.OutboundMessage) error {
	if t.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", msg.ChatID, err)
	}

	for _, chunk := range chunkMessage(msg.Content, telegramMaxMessage) {
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, chunk)); err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
	}
	return nil
}

func (t *TelegramChannel) Stop() error {
	if t.cancel != nil {
		t.cancel()
	}
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	log.Printf("[telegram] stopped")
	return nil
}

// SetBot sets the bot (for testing)
func (t *TelegramChannel) SetBot(bot TelegramBot) {
	t.bot = bot
}

// chunkMessage splits text into pieces no longer than maxLen,
// preferring newline boundaries so rows stay intact.
func chunkMessage(text string, maxLen int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}

	var chunks []string
	for len(clean) > maxLen {
		splitAt := strings.LastIndex(clean[:maxLen], "\n")
		if splitAt < maxLen/2 {
			splitAt = maxLen
		}
		chunks = append(chunks, strings.TrimRight(clean[:splitAt], "\n "))
		clean = strings.TrimLeft(clean[splitAt:], "\n ")
	}
	if clean != "" {
		chunks = append(chunks, clean)
	}
	return chunks
}
