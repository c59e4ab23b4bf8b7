// Package transport bridges messaging platforms to the engine. Each
// implementation maps platform events onto domain.IncomingMessage and
// exposes the send/edit primitives replies need.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"replique/internal/domain"
)

const (
	discordInlineLimit        = 2000
	discordInlineLimitPremium = 4000
)

// Discord implements domain.Transport over a Discord gateway session.
type Discord struct {
	token   string
	premium bool
	session *discordgo.Session
	logger  *slog.Logger
}

type DiscordConfig struct {
	Token   string
	Premium bool // raises the inline character limit to the Nitro tier
	Logger  *slog.Logger
}

func NewDiscord(cfg DiscordConfig) *Discord {
	return &Discord{
		token:   cfg.Token,
		premium: cfg.Premium,
		logger:  cfg.Logger,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) InlineLimit() int {
	if d.premium {
		return discordInlineLimitPremium
	}
	return discordInlineLimit
}

// Run connects to the gateway and blocks until ctx is cancelled. Own
// messages are delivered too, flagged FromSelf, so the command surface can
// see them.
func (d *Discord) Run(ctx context.Context, handler domain.MessageHandler) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	d.session = session

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}

		msg := domain.IncomingMessage{
			Transport:      d.Name(),
			ConversationID: m.ChannelID,
			Kind:           conversationKind(m.GuildID),
			AuthorID:       m.Author.ID,
			AuthorName:     displayName(m.Author),
			AuthorIsBot:    m.Author.Bot,
			FromSelf:       m.Author.ID == s.State.User.ID,
			Content:        m.Content,
			Timestamp:      m.Timestamp,
		}
		if len(m.Attachments) > 0 {
			msg.Attachment = &domain.AttachmentRef{
				URL:  m.Attachments[0].URL,
				Name: m.Attachments[0].Filename,
			}
		}
		for _, u := range m.Mentions {
			msg.Mentions = append(msg.Mentions, u.ID)
		}

		d.logger.Debug("discord message received",
			"author", m.Author.Username,
			"channel", m.ChannelID,
			"content_len", len(m.Content),
		)
		handler(ctx, msg)
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	d.logger.Info("discord connected", "user", session.State.User.Username)

	<-ctx.Done()
	d.logger.Info("discord disconnecting")
	return session.Close()
}

func (d *Discord) SendMessage(ctx context.Context, conversationID, content string) (domain.MessageRef, error) {
	m, err := d.session.ChannelMessageSend(conversationID, content)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("discord send: %w", err)
	}
	return domain.MessageRef{ConversationID: conversationID, MessageID: m.ID}, nil
}

func (d *Discord) EditMessage(ctx context.Context, ref domain.MessageRef, content string) error {
	if _, err := d.session.ChannelMessageEdit(ref.ConversationID, ref.MessageID, content); err != nil {
		return fmt.Errorf("discord edit: %w", err)
	}
	return nil
}

func (d *Discord) EditMessageWithFile(ctx context.Context, ref domain.MessageRef, note, filename string, data []byte) error {
	edit := &discordgo.MessageEdit{
		Channel: ref.ConversationID,
		ID:      ref.MessageID,
		Content: &note,
		Files: []*discordgo.File{
			{Name: filename, Reader: bytes.NewReader(data)},
		},
	}
	if _, err := d.session.ChannelMessageEditComplex(edit); err != nil {
		return fmt.Errorf("discord edit with file: %w", err)
	}
	return nil
}

// conversationKind maps gateway metadata to a conversation kind: messages
// outside a guild are direct.
func conversationKind(guildID string) domain.ConversationKind {
	if guildID == "" {
		return domain.KindDirect
	}
	return domain.KindGroup
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
