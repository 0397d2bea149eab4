package relay

import (
	"time"
)

type TriggerClass int

const (
	// TriggerForced: explicit addressing (reply-to-self or mention).
	// Always wins over pending random triggers.
	TriggerForced TriggerClass = iota
	// TriggerRandom: probabilistic draw against the threshold.
	TriggerRandom
)

func (c TriggerClass) String() string {
	switch c {
	case TriggerForced:
		return "forced"
	case TriggerRandom:
		return "random"
	default:
		return "unknown"
	}
}

// TriggerEvent is one scheduled generation turn. Ephemeral; never persisted.
type TriggerEvent struct {
	ID             string
	ConversationID int64
	Message        Message
	Class          TriggerClass
	// SpeakerLabel is the resolved display label of the sender, used when a
	// forced turn has to synthesize a prompt from the triggering message.
	SpeakerLabel string
	// RecordedText is the normalized text that went into the transcript
	// (empty when nothing was recorded, e.g. a bare mention).
	RecordedText string
	EnqueuedAt   time.Time

	seq uint64
}

const DefaultStaleness = 120 * time.Second

// Classifier decides, per eligible inbound message, whether a generation
// turn should run and with which class. Deterministic apart from the single
// uniform draw, which is injectable for tests.
type Classifier struct {
	BotID        int64
	BotHandle    string
	Staleness    time.Duration
	AllowedChats map[int64]bool

	Threshold func() float64
	Busy      func() bool
	Rand      func() float64
	Now       func() time.Time
}

// Classify returns the trigger class and a reason tag. ok is false when the
// message must not trigger a generation.
func (c *Classifier) Classify(msg Message) (class TriggerClass, reason string, ok bool) {
	if len(c.AllowedChats) > 0 && !c.AllowedChats[msg.ConversationID] {
		return 0, "chat_not_allowed", false
	}
	if IsCommand(msg.Text) {
		return 0, "command", false
	}
	staleness := c.Staleness
	if staleness <= 0 {
		staleness = DefaultStaleness
	}
	// Backlog replayed after a restart must not cause replies to messages
	// nobody is waiting on anymore.
	if c.Now().Sub(msg.SentAt) > staleness {
		return 0, "stale", false
	}

	mentioned := msg.MentionsSelf || ContainsMention(msg.Text, c.BotHandle)
	if msg.ReplyToSenderID != 0 && msg.ReplyToSenderID == c.BotID {
		return TriggerForced, "reply_to_self", true
	}
	if mentioned {
		return TriggerForced, "mention", true
	}
	// A reply to somebody else without a mention is addressed elsewhere.
	if msg.ReplyToSenderID != 0 {
		return 0, "reply_to_other", false
	}

	// Skip the draw entirely while a turn is in flight; forced triggers are
	// never suppressed this way.
	if c.Busy != nil && c.Busy() {
		return 0, "gateway_busy", false
	}
	if c.Rand() < c.Threshold() {
		return TriggerRandom, "random_draw", true
	}
	return 0, "draw_above_threshold", false
}
