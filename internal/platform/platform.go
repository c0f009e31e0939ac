package platform

import (
	"context"
	"time"
)

// Destination identifies a concrete platform/channel reachable through an Adapter.
type Destination string

const (
	DestX        Destination = "x"
	DestDiscord  Destination = "discord"
	DestYouTube  Destination = "youtube"
	DestTelegram Destination = "telegram"
	DestRelay    Destination = "relay"
	DestMock     Destination = "mock"
)

// EventCategory classifies normalized inbound events.
type EventCategory string

const (
	EventMention  EventCategory = "mention"
	EventReply    EventCategory = "reply"
	EventMessage  EventCategory = "message"
	EventFollow   EventCategory = "follow"
	EventLike     EventCategory = "like"
	EventRepost   EventCategory = "repost"
	EventComment  EventCategory = "comment"
	EventReaction EventCategory = "reaction"
	EventTrend    EventCategory = "trend"
	EventSystem   EventCategory = "system"
	EventCustom   EventCategory = "custom"
)

// Event is a destination-agnostic inbound event. Adapters convert native
// payloads to this form; events are immutable once routed.
type Event struct {
	ID          string        `json:"event_id"`
	Destination Destination   `json:"destination"`
	Category    EventCategory `json:"category"`

	UserID          string `json:"user_id,omitempty"`
	UserName        string `json:"user_name,omitempty"`
	UserDisplayName string `json:"user_display_name,omitempty"`

	Content     string `json:"content,omitempty"`
	ContentType string `json:"content_type,omitempty"` // text, image, video

	SourceID       string `json:"source_id,omitempty"`       // native content id
	ReplyToID      string `json:"reply_to_id,omitempty"`     // content being replied to
	ConversationID string `json:"conversation_id,omitempty"` // thread id

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ReceivedAt time.Time `json:"received_at"`
}

// IsDM reports whether the event is a private message.
func (e Event) IsDM() bool { return e.Category == EventMessage }

// Action is a destination-agnostic outbound action. Adapters translate it
// to native API calls.
type Action struct {
	ID          string      `json:"action_id"`
	Destination Destination `json:"destination"`
	Kind        string      `json:"action_type"` // post, reply, like, follow, dm

	Content   string   `json:"content,omitempty"`
	MediaURLs []string `json:"media_urls,omitempty"`

	TargetUserID    string `json:"target_user_id,omitempty"`
	TargetContentID string `json:"target_content_id,omitempty"`
	ReplyToID       string `json:"reply_to_id,omitempty"`
	ConversationID  string `json:"conversation_id,omitempty"`

	Options map[string]any `json:"options,omitempty"`

	TriggeredBy string    `json:"triggered_by_event,omitempty"`
	ValueScore  float64   `json:"value_score,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ActionResult is the outcome of executing one Action on one destination.
type ActionResult struct {
	Success     bool        `json:"success"`
	ActionID    string      `json:"action_id"`
	Destination Destination `json:"destination"`

	ResultID  string `json:"result_id,omitempty"`
	ResultURL string `json:"result_url,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	ExecutedAt time.Time `json:"executed_at"`
}

// EventHandler receives normalized events from an adapter.
type EventHandler func(Event)

// Adapter is the single contract every destination implements. The
// coordinator never branches on a concrete destination type.
type Adapter interface {
	Destination() Destination
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Listen(handler EventHandler)
	StopListening()
	Execute(ctx context.Context, action Action) (ActionResult, error)
	GetUser(ctx context.Context, userID string) (map[string]any, error)
	GetContent(ctx context.Context, contentID string) (map[string]any, error)
	HealthCheck(ctx context.Context) map[string]any
}
