package notification

import "errors"

// Domain errors
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoPushToken     = errors.New("no push token for user")
)

// SkipReason explains why an event correctly produced no push.
type SkipReason string

// Preference gate reasons
const (
	ReasonNoRecipients          SkipReason = "no_recipients"
	ReasonAllMuted              SkipReason = "all_muted"
	ReasonAllPreferenceDisabled SkipReason = "all_preference_disabled"
	ReasonNoPushTokens          SkipReason = "no_push_tokens"
)

// Handler-level reasons
const (
	ReasonNoUserID                 SkipReason = "no user_id"
	ReasonNoPushToken              SkipReason = "no_push_token"
	ReasonUserPreferenceDisabled   SkipReason = "user_preference_disabled"
	ReasonMissingFields            SkipReason = "missing fields"
	ReasonAllDirectMessageDisabled SkipReason = "all_dm_disabled"
	ReasonNoUnread                 SkipReason = "no_unread"
	ReasonInvalidPayload           SkipReason = "invalid payload"
)

// DirectMessageColumn is the profile flag consulted for conversation pushes.
const DirectMessageColumn = "notify_direct_message"

// Profile is the read-only view of a user relevant to push delivery.
// Preferences holds only the flags present on the stored row; a missing
// key means the user never chose and the push is allowed.
type Profile struct {
	UserID      string          `json:"userId"`
	PushToken   string          `json:"pushToken,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	Preferences map[string]bool `json:"preferences,omitempty"`
}

// HasPushToken reports whether the profile can receive pushes at all.
func (p *Profile) HasPushToken() bool {
	return p != nil && p.PushToken != ""
}

// Allows reports whether the preference column permits a push.
// Only an explicit false disables; an empty column always allows.
func (p *Profile) Allows(column string) bool {
	if column == "" || p == nil {
		return true
	}
	enabled, ok := p.Preferences[column]
	return !ok || enabled
}

// Participant is one member of a conversation.
type Participant struct {
	UserID  string `json:"userId"`
	IsMuted bool   `json:"isMuted"`
}

// Recipient pairs a candidate with the profile loaded for it.
// Profile is nil when the store had no token-bearing profile.
type Recipient struct {
	UserID  string
	Muted   bool
	Profile *Profile
}

// NotificationCreated is the inserted notification row. Columns the
// pipeline never reads (is_read, created_at) are left undecoded.
type NotificationCreated struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Type       string `json:"type"`
	ActorID    string `json:"actor_id"`
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
}

// MessageCreated is the inserted message row.
type MessageCreated struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type"`
}

// Kind returns the message type, defaulting to text.
func (m MessageCreated) Kind() string {
	if m.MessageType == "" {
		return MessageTypeText
	}
	return m.MessageType
}

// DispatchResult counts per-token delivery outcomes of one push.
type DispatchResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Outcome is the terminal result of handling one event: either a skip
// with its reason or the dispatch counts.
type Outcome struct {
	Skipped bool
	Reason  SkipReason
	Result  DispatchResult
}

func Skip(reason SkipReason) Outcome {
	return Outcome{Skipped: true, Reason: reason}
}

func Dispatched(result DispatchResult) Outcome {
	return Outcome{Result: result}
}

// DigestOutcome is the result of a digest request that found a token.
type DigestOutcome struct {
	Sent         bool
	Reason       SkipReason
	Result       DispatchResult
	UnreadCount  int
	NewPostCount int
}

// PushMessage is the provider-independent content of one push.
type PushMessage struct {
	Title     string
	Body      string
	Data      map[string]string
	ChannelID string
	Badge     *int
}
