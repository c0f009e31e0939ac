// Package discord adapts a Discord bot session to the platform contract.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/valueadders/papito/internal/platform"
)

// Adapter drives one Discord bot session. Events arrive through gateway
// handlers; actions go out as channel messages.
type Adapter struct {
	token string
	log   zerolog.Logger

	mu        sync.Mutex
	dg        *discordgo.Session
	connected bool
	listening bool
	handlers  []platform.EventHandler
	removers  []func()

	eventsIn    int
	actionsOut  int
	lastEventAt time.Time
}

// New creates a Discord adapter for the given bot token.
func New(token string, log zerolog.Logger) *Adapter {
	return &Adapter{token: token, log: log}
}

func (a *Adapter) Destination() platform.Destination { return platform.DestDiscord }

// Connect opens the gateway session with message intents.
func (a *Adapter) Connect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected {
		return nil
	}

	dg, err := discordgo.New("Bot " + a.token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsGuildMessageReactions

	remove := dg.AddHandler(a.onMessageCreate)
	a.removers = append(a.removers, remove)
	remove = dg.AddHandler(a.onMessageReactionAdd)
	a.removers = append(a.removers, remove)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	a.dg = dg
	a.connected = true
	a.log.Info().Msg("discord session open")
	return nil
}

// Disconnect closes the gateway session.
func (a *Adapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil
	}
	a.connected = false
	a.listening = false
	for _, remove := range a.removers {
		remove()
	}
	a.removers = nil
	err := a.dg.Close()
	a.dg = nil
	return err
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// Listen starts forwarding gateway events to the handler.
func (a *Adapter) Listen(handler platform.EventHandler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, handler)
	a.listening = true
}

// StopListening drops all handlers; the session stays open.
func (a *Adapter) StopListening() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = nil
	a.listening = false
}

func (a *Adapter) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	category := platform.EventMessage
	for _, user := range m.Mentions {
		if user.ID == s.State.User.ID {
			category = platform.EventMention
			break
		}
	}
	if m.MessageReference != nil {
		category = platform.EventReply
	}

	ev := platform.Event{
		ID:             "discord_" + m.ID,
		Destination:    platform.DestDiscord,
		Category:       category,
		UserID:         m.Author.ID,
		UserName:       m.Author.Username,
		Content:        m.Content,
		ContentType:    "text",
		SourceID:       m.ID,
		ConversationID: m.ChannelID,
		CreatedAt:      m.Timestamp,
		ReceivedAt:     time.Now().UTC(),
		Metadata:       map[string]any{"guild_id": m.GuildID, "channel_id": m.ChannelID},
	}
	if m.MessageReference != nil {
		ev.ReplyToID = m.MessageReference.MessageID
	}
	a.deliver(ev)
}

func (a *Adapter) onMessageReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.UserID == s.State.User.ID {
		return
	}
	a.deliver(platform.Event{
		ID:             "discord_react_" + r.MessageID + "_" + r.UserID,
		Destination:    platform.DestDiscord,
		Category:       platform.EventReaction,
		UserID:         r.UserID,
		Content:        r.Emoji.Name,
		SourceID:       r.MessageID,
		ConversationID: r.ChannelID,
		ReceivedAt:     time.Now().UTC(),
	})
}

func (a *Adapter) deliver(ev platform.Event) {
	a.mu.Lock()
	a.eventsIn++
	a.lastEventAt = time.Now().UTC()
	handlers := append([]platform.EventHandler(nil), a.handlers...)
	a.mu.Unlock()
	for _, h := range handlers {
		h(ev)
	}
}

// Execute sends the action as a message. Replies reference the original
// message so Discord renders a proper reply; DMs open a user channel.
func (a *Adapter) Execute(_ context.Context, action platform.Action) (platform.ActionResult, error) {
	a.mu.Lock()
	dg := a.dg
	a.mu.Unlock()
	if dg == nil {
		return platform.ActionResult{}, fmt.Errorf("discord: not connected")
	}

	channelID, _ := action.Options["channel_id"].(string)
	if channelID == "" {
		channelID = action.ConversationID
	}
	var msg *discordgo.Message
	var err error

	switch action.Kind {
	case "dm":
		var ch *discordgo.Channel
		ch, err = dg.UserChannelCreate(action.TargetUserID)
		if err == nil {
			msg, err = dg.ChannelMessageSend(ch.ID, action.Content)
		}
	case "reply":
		if channelID == "" || action.ReplyToID == "" {
			err = fmt.Errorf("discord: reply needs channel_id and reply_to_id")
			break
		}
		msg, err = dg.ChannelMessageSendReply(channelID, action.Content, &discordgo.MessageReference{
			MessageID: action.ReplyToID,
			ChannelID: channelID,
		})
	default:
		if channelID == "" {
			err = fmt.Errorf("discord: action needs channel_id")
			break
		}
		msg, err = dg.ChannelMessageSend(channelID, action.Content)
	}
	if err != nil {
		return platform.ActionResult{}, err
	}

	a.mu.Lock()
	a.actionsOut++
	a.mu.Unlock()

	return platform.ActionResult{
		Success:     true,
		ActionID:    action.ID,
		Destination: platform.DestDiscord,
		ResultID:    msg.ID,
		ExecutedAt:  time.Now().UTC(),
	}, nil
}

// GetUser fetches a Discord user profile.
func (a *Adapter) GetUser(_ context.Context, userID string) (map[string]any, error) {
	a.mu.Lock()
	dg := a.dg
	a.mu.Unlock()
	if dg == nil {
		return nil, fmt.Errorf("discord: not connected")
	}
	u, err := dg.User(userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"bot":      u.Bot,
		"verified": u.Verified,
	}, nil
}

// GetContent fetches a message by "channelID:messageID".
func (a *Adapter) GetContent(_ context.Context, contentID string) (map[string]any, error) {
	a.mu.Lock()
	dg := a.dg
	a.mu.Unlock()
	if dg == nil {
		return nil, fmt.Errorf("discord: not connected")
	}

	channelID, messageID, ok := splitContentID(contentID)
	if !ok {
		return nil, fmt.Errorf("discord: content id must be channelID:messageID")
	}
	m, err := dg.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"id":         m.ID,
		"content":    m.Content,
		"channel_id": m.ChannelID,
	}
	if m.Author != nil {
		out["author_id"] = m.Author.ID
	}
	return out, nil
}

func (a *Adapter) HealthCheck(_ context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := "healthy"
	if !a.connected {
		status = "disconnected"
	}
	out := map[string]any{
		"status":          status,
		"destination":     string(platform.DestDiscord),
		"listening":       a.listening,
		"events_received": a.eventsIn,
		"actions_sent":    a.actionsOut,
	}
	if !a.lastEventAt.IsZero() {
		out["last_event_at"] = a.lastEventAt.Format(time.RFC3339)
	}
	return out
}

func splitContentID(id string) (channelID, messageID string, ok bool) {
	for i := 0; i < len(id); i++ {
		if id[i] == ':' {
			return id[:i], id[i+1:], i > 0 && i < len(id)-1
		}
	}
	return "", "", false
}
