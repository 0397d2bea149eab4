package relay

import (
	"testing"
	"time"
)

func testClassifier(threshold, draw float64, busy bool) *Classifier {
	return &Classifier{
		BotID:     99,
		BotHandle: "relaybot",
		Staleness: 120 * time.Second,
		Threshold: func() float64 { return threshold },
		Busy:      func() bool { return busy },
		Rand:      func() float64 { return draw },
		Now:       time.Now,
	}
}

func freshMessage(text string) Message {
	return Message{
		ConversationID: 1,
		Kind:           ChatGroup,
		MessageID:      10,
		SenderID:       5,
		SenderName:     "Alice",
		Text:           text,
		SentAt:         time.Now(),
	}
}

func TestClassifyRandomBelowThreshold(t *testing.T) {
	c := testClassifier(0.5, 0.49, false)
	class, _, ok := c.Classify(freshMessage("hello all"))
	if !ok || class != TriggerRandom {
		t.Errorf("expected random trigger, got class=%v ok=%v", class, ok)
	}
}

func TestClassifyRandomAtThreshold(t *testing.T) {
	c := testClassifier(0.5, 0.5, false)
	if _, _, ok := c.Classify(freshMessage("hello all")); ok {
		t.Error("draw equal to threshold must not trigger")
	}
}

func TestClassifyThresholdZeroNeverTriggers(t *testing.T) {
	c := testClassifier(0, 0, false)
	if _, _, ok := c.Classify(freshMessage("hello all")); ok {
		t.Error("threshold 0 must never trigger")
	}
}

func TestClassifyThresholdOneAlwaysTriggers(t *testing.T) {
	// Uniform draws live in [0,1), so 1.0 is never reached.
	c := testClassifier(1, 0.999999, false)
	class, _, ok := c.Classify(freshMessage("hello all"))
	if !ok || class != TriggerRandom {
		t.Error("threshold 1 must always trigger for eligible fresh messages")
	}
}

func TestClassifyStaleMessage(t *testing.T) {
	c := testClassifier(1, 0, false)
	msg := freshMessage("@relaybot hello")
	msg.SentAt = time.Now().Add(-121 * time.Second)
	if _, _, ok := c.Classify(msg); ok {
		t.Error("stale message must never trigger, even with a mention")
	}
}

func TestClassifyMentionForced(t *testing.T) {
	c := testClassifier(0, 0.9, false)
	class, reason, ok := c.Classify(freshMessage("hey @relaybot what do you think"))
	if !ok || class != TriggerForced {
		t.Fatalf("expected forced trigger, got class=%v ok=%v", class, ok)
	}
	if reason != "mention" {
		t.Errorf("reason = %q", reason)
	}
}

func TestClassifyEntityMentionForced(t *testing.T) {
	c := testClassifier(0, 0.9, false)
	msg := freshMessage("what do you think")
	msg.MentionsSelf = true
	if class, _, ok := c.Classify(msg); !ok || class != TriggerForced {
		t.Error("entity-detected mention must force a trigger")
	}
}

func TestClassifyReplyToSelfForced(t *testing.T) {
	c := testClassifier(0, 0.9, false)
	msg := freshMessage("tell me more")
	msg.ReplyToSenderID = 99
	class, reason, ok := c.Classify(msg)
	if !ok || class != TriggerForced {
		t.Fatalf("expected forced trigger, got class=%v ok=%v", class, ok)
	}
	if reason != "reply_to_self" {
		t.Errorf("reason = %q", reason)
	}
}

func TestClassifyReplyToOtherIgnored(t *testing.T) {
	c := testClassifier(1, 0, false)
	msg := freshMessage("yes exactly")
	msg.ReplyToSenderID = 7
	if _, _, ok := c.Classify(msg); ok {
		t.Error("reply to another user without a mention must not trigger")
	}
}

func TestClassifyReplyToOtherWithMentionForced(t *testing.T) {
	c := testClassifier(0, 0.9, false)
	msg := freshMessage("@relaybot settle this")
	msg.ReplyToSenderID = 7
	if class, _, ok := c.Classify(msg); !ok || class != TriggerForced {
		t.Error("reply to another user that mentions the bot must force a trigger")
	}
}

func TestClassifyBusySuppressesRandom(t *testing.T) {
	drawn := false
	c := testClassifier(1, 0, true)
	c.Rand = func() float64 { drawn = true; return 0 }

	if _, _, ok := c.Classify(freshMessage("hello all")); ok {
		t.Error("random trigger must be suppressed while the gateway is busy")
	}
	if drawn {
		t.Error("busy suppression must happen before the draw")
	}
}

func TestClassifyBusyNeverSuppressesForced(t *testing.T) {
	c := testClassifier(0, 0.9, true)
	if class, _, ok := c.Classify(freshMessage("@relaybot hi")); !ok || class != TriggerForced {
		t.Error("forced trigger must proceed while the gateway is busy")
	}
}

func TestClassifyChatAllowList(t *testing.T) {
	c := testClassifier(1, 0, false)
	c.AllowedChats = map[int64]bool{2: true}
	if _, _, ok := c.Classify(freshMessage("@relaybot hi")); ok {
		t.Error("chat outside the allow-list must not trigger")
	}

	msg := freshMessage("@relaybot hi")
	msg.ConversationID = 2
	if _, _, ok := c.Classify(msg); !ok {
		t.Error("allow-listed chat must trigger")
	}
}

func TestClassifyCommandIgnored(t *testing.T) {
	c := testClassifier(1, 0, false)
	if _, _, ok := c.Classify(freshMessage("/help")); ok {
		t.Error("commands must never trigger")
	}
}

func TestStripMentions(t *testing.T) {
	got := StripMentions("hey @RelayBot how are you @relaybot today", "relaybot")
	if got != "hey how are you today" {
		t.Errorf("StripMentions = %q", got)
	}
	if got := StripMentions("@relaybot", "relaybot"); got != "" {
		t.Errorf("bare mention should strip to empty, got %q", got)
	}
}

func TestContainsMentionCaseInsensitive(t *testing.T) {
	if !ContainsMention("ping @RelayBot please", "relaybot") {
		t.Error("expected case-insensitive mention match")
	}
	if ContainsMention("no mention here", "relaybot") {
		t.Error("unexpected mention match")
	}
}
