package relay

import (
	"context"
	"strings"
	"time"
)

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

func (k ChatKind) IsGroup() bool {
	return k == ChatGroup || k == ChatSupergroup
}

// Message is the platform-independent view of one inbound chat message.
// The platform adapter fills MentionsSelf from structured mention entities
// when it has them; the classifier additionally falls back to a plain
// "@handle" scan.
type Message struct {
	ConversationID int64
	Kind           ChatKind
	MessageID      int64
	SenderID       int64
	SenderName     string
	Text           string
	SentAt         time.Time
	// ReplyToSenderID is the sender of the quoted message, 0 when the
	// message is not a reply.
	ReplyToSenderID int64
	MentionsSelf    bool
}

// Messenger is the outbound side of the platform layer.
type Messenger interface {
	Reply(ctx context.Context, msg Message, text string) error
	Send(ctx context.Context, conversationID int64, text string) error
	ShowTyping(ctx context.Context, conversationID int64) error
}

// IsCommand reports whether text is a control command (reserved "/" prefix).
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// ContainsMention reports whether text mentions "@handle", case-insensitive.
func ContainsMention(text, handle string) bool {
	if handle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(handle))
}

// StripMentions removes every "@handle" token from text and collapses the
// surrounding whitespace.
func StripMentions(text, handle string) string {
	text = strings.TrimSpace(text)
	if text == "" || handle == "" {
		return text
	}
	mention := "@" + strings.ToLower(handle)
	for {
		idx := strings.Index(strings.ToLower(text), mention)
		if idx < 0 {
			break
		}
		text = text[:idx] + text[idx+len(mention):]
	}
	return strings.Join(strings.Fields(text), " ")
}
