package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"replique/internal/domain"
)

const telegramInlineLimit = 4096

// Telegram implements domain.Transport over the Bot API long-poll loop.
// Bot accounts never receive their own messages, so the configured owner's
// messages are the ones flagged FromSelf for the command surface.
type Telegram struct {
	token   string
	ownerID int64
	bot     *tgbotapi.BotAPI
	logger  *slog.Logger
}

type TelegramConfig struct {
	Token   string
	OwnerID string // numeric user ID whose messages count as owner commands
	Logger  *slog.Logger
}

func NewTelegram(cfg TelegramConfig) *Telegram {
	owner, _ := strconv.ParseInt(cfg.OwnerID, 10, 64)
	return &Telegram{
		token:   cfg.Token,
		ownerID: owner,
		logger:  cfg.Logger,
	}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) InlineLimit() int { return telegramInlineLimit }

// Run starts long polling and blocks until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context, handler domain.MessageHandler) error {
	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram connected", "username", bot.Self.UserName, "id", bot.Self.ID)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram stopping")
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
				continue
			}
			handler(ctx, t.toIncoming(update.Message))
		}
	}
}

func (t *Telegram) toIncoming(m *tgbotapi.Message) domain.IncomingMessage {
	kind := domain.KindGroup
	if m.Chat.IsPrivate() {
		kind = domain.KindDirect
	}

	content := m.Text
	if content == "" {
		content = m.Caption
	}

	msg := domain.IncomingMessage{
		Transport:      t.Name(),
		ConversationID: strconv.FormatInt(m.Chat.ID, 10),
		Kind:           kind,
		AuthorID:       strconv.FormatInt(m.From.ID, 10),
		AuthorName:     authorName(m.From),
		AuthorIsBot:    m.From.IsBot && m.From.ID != t.bot.Self.ID,
		FromSelf:       m.From.ID == t.bot.Self.ID || (t.ownerID != 0 && m.From.ID == t.ownerID),
		Content:        content,
		Timestamp:      time.Unix(int64(m.Date), 0),
	}

	msg.Attachment = t.attachmentRef(m)

	for _, ent := range m.Entities {
		if ent.Type == "text_mention" && ent.User != nil {
			msg.Mentions = append(msg.Mentions, strconv.FormatInt(ent.User.ID, 10))
		}
	}

	return msg
}

// attachmentRef resolves a document or the largest photo size to a direct
// download URL. Resolution failures are logged and the message proceeds
// without an attachment.
func (t *Telegram) attachmentRef(m *tgbotapi.Message) *domain.AttachmentRef {
	switch {
	case m.Document != nil:
		url, err := t.bot.GetFileDirectURL(m.Document.FileID)
		if err != nil {
			t.logger.Warn("telegram document URL lookup failed", "err", err)
			return nil
		}
		return &domain.AttachmentRef{URL: url, Name: m.Document.FileName}
	case len(m.Photo) > 0:
		largest := m.Photo[len(m.Photo)-1]
		url, err := t.bot.GetFileDirectURL(largest.FileID)
		if err != nil {
			t.logger.Warn("telegram photo URL lookup failed", "err", err)
			return nil
		}
		return &domain.AttachmentRef{URL: url, Name: "photo.jpg"}
	}
	return nil
}

func (t *Telegram) SendMessage(ctx context.Context, conversationID, content string) (domain.MessageRef, error) {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("telegram chat ID %q: %w", conversationID, err)
	}
	sent, err := t.bot.Send(tgbotapi.NewMessage(chatID, content))
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("telegram send: %w", err)
	}
	return domain.MessageRef{
		ConversationID: conversationID,
		MessageID:      strconv.Itoa(sent.MessageID),
	}, nil
}

func (t *Telegram) EditMessage(ctx context.Context, ref domain.MessageRef, content string) error {
	chatID, messageID, err := t.refIDs(ref)
	if err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, content)); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// EditMessageWithFile edits the placeholder to the note and delivers the
// full text as a separate document; the Bot API cannot attach files in an
// edit.
func (t *Telegram) EditMessageWithFile(ctx context.Context, ref domain.MessageRef, note, filename string, data []byte) error {
	chatID, messageID, err := t.refIDs(ref)
	if err != nil {
		return err
	}
	if _, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, messageID, note)); err != nil {
		return fmt.Errorf("telegram edit: %w", err)
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	if _, err := t.bot.Send(doc); err != nil {
		return fmt.Errorf("telegram document send: %w", err)
	}
	return nil
}

func (t *Telegram) refIDs(ref domain.MessageRef) (int64, int, error) {
	chatID, err := strconv.ParseInt(ref.ConversationID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram chat ID %q: %w", ref.ConversationID, err)
	}
	messageID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram message ID %q: %w", ref.MessageID, err)
	}
	return chatID, messageID, nil
}

func authorName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}
