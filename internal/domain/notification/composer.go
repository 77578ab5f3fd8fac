package notification

import (
	"fmt"
	"strings"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"

	defaultActorName = "Someone"
	maxPreviewLength = 100
	ellipsis         = "..."
	digestTitle      = "Your daily digest"
)

// ActorEventContent builds the body and channel for a notification row.
// An empty actor name is rendered as "Someone".
func ActorEventContent(eventType EventType, actorName string) (body, channel string) {
	spec := eventType.Spec()
	return fmt.Sprintf("%s %s", displayName(actorName), spec.Label), spec.Channel
}

// MessagePreview renders the body of a conversation push. Non-text messages
// are described instead of quoted.
func MessagePreview(messageType, content string) string {
	var preview string
	switch messageType {
	case MessageTypeText, "":
		preview = content
	case MessageTypeImage:
		preview = "Sent a photo"
	default:
		preview = "Shared " + strings.ReplaceAll(messageType, "_", " ")
	}
	return truncate(preview, maxPreviewLength)
}

// DigestBody joins the non-zero counts into one sentence, e.g.
// "3 new notifications and 1 new post from people you follow".
func DigestBody(unreadCount, newPostCount int) string {
	var parts []string
	if unreadCount > 0 {
		parts = append(parts, countPhrase(unreadCount, "new notification", "new notifications"))
	}
	if newPostCount > 0 {
		parts = append(parts, countPhrase(newPostCount, "new post from people you follow", "new posts from people you follow"))
	}
	return joinSentence(parts)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return defaultActorName
	}
	return name
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

func countPhrase(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func joinSentence(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
	}
}
