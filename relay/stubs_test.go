package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/puhovm04-code/BusinessGPT/gen"
)

type sentMessage struct {
	ConversationID int64
	ReplyToID      int64
	Text           string
}

type stubMessenger struct {
	mu       sync.Mutex
	replies  []sentMessage
	sends    []sentMessage
	typing   []int64
	replyErr error
	sendErr  error
}

func (m *stubMessenger) Reply(_ context.Context, msg Message, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replyErr != nil {
		return m.replyErr
	}
	m.replies = append(m.replies, sentMessage{
		ConversationID: msg.ConversationID,
		ReplyToID:      msg.MessageID,
		Text:           text,
	})
	return nil
}

func (m *stubMessenger) Send(_ context.Context, conversationID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sends = append(m.sends, sentMessage{ConversationID: conversationID, Text: text})
	return nil
}

func (m *stubMessenger) ShowTyping(_ context.Context, conversationID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typing = append(m.typing, conversationID)
	return nil
}

func (m *stubMessenger) sentTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.sends {
		out = append(out, s.Text)
	}
	return out
}

type genCall struct {
	Prompt string
	Start  time.Time
	End    time.Time
}

type stubGenClient struct {
	mu    sync.Mutex
	calls []genCall
	delay time.Duration
	// respond builds the raw output from the prompt; nil echoes the prompt
	// plus a fixed continuation.
	respond func(prompt string) (string, error)
}

func (c *stubGenClient) Generate(ctx context.Context, prompt string) (gen.Result, error) {
	start := time.Now()
	if c.delay > 0 {
		select {
		case <-ctx.Done():
			return gen.Result{}, ctx.Err()
		case <-time.After(c.delay):
		}
	}
	raw := prompt + "[Bot]: generated reply"
	var err error
	if c.respond != nil {
		raw, err = c.respond(prompt)
	}
	c.mu.Lock()
	c.calls = append(c.calls, genCall{Prompt: prompt, Start: start, End: time.Now()})
	c.mu.Unlock()
	if err != nil {
		return gen.Result{}, err
	}
	return gen.Result{Text: raw, Duration: time.Since(start)}, nil
}

func (c *stubGenClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *stubGenClient) snapshotCalls() []genCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]genCall(nil), c.calls...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
