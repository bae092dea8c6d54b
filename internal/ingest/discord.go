// Package ingest holds the live ingestion listeners. Only Discord is wired
// today; other channels arrive through the HTTP API.
package ingest

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/signalboard/signalboard/internal/logging"
)

// Sink receives one raw feedback message and returns the stored item's id.
type Sink func(source, author, text string) (string, error)

// DiscordListener turns messages from a Discord channel into feedback items.
type DiscordListener struct {
	session   *discordgo.Session
	channelID string
	botID     string
	sink      Sink
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// NewDiscordListener creates a listener. An empty ChannelID accepts messages
// from every channel the bot can read.
func NewDiscordListener(cfg DiscordConfig, sink Sink) (*DiscordListener, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	l := &DiscordListener{
		session:   session,
		channelID: cfg.ChannelID,
		sink:      sink,
	}
	session.AddHandler(l.handleMessage)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	return l, nil
}

// Start connects to Discord and begins listening.
func (l *DiscordListener) Start() error {
	if err := l.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	l.botID = l.session.State.User.ID
	logging.Info("discord", "connected as %s", l.session.State.User.Username)
	return nil
}

// Stop disconnects from Discord.
func (l *DiscordListener) Stop() error {
	return l.session.Close()
}

func (l *DiscordListener) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == l.botID {
		return
	}
	if l.channelID != "" && m.ChannelID != l.channelID {
		return
	}
	if m.Content == "" {
		return
	}

	id, err := l.sink("discord", m.Author.Username, m.Content)
	if err != nil {
		logging.Error("discord", "ingest failed: %v", err)
		return
	}
	logging.Debug("discord", "ingested %s: %s", id, logging.Truncate(m.Content, 50))
}
