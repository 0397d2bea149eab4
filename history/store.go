package history

import (
	"fmt"
	"strings"
	"sync"
)

const (
	DefaultCapacity  = 10
	DefaultTextClamp = 800
)

// Line is one recorded utterance in a conversation transcript.
type Line struct {
	Speaker string
	Text    string
}

// Render returns the canonical transcript form "[speaker]: text".
func (l Line) Render() string {
	return fmt.Sprintf("[%s]: %s", l.Speaker, l.Text)
}

// Store keeps a bounded rolling transcript per conversation. Buffers are
// created lazily and live for the process lifetime; nothing is persisted.
type Store struct {
	mu        sync.Mutex
	lines     map[int64][]Line
	capacity  int
	textClamp int
}

func NewStore(capacity, textClamp int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if textClamp <= 0 {
		textClamp = DefaultTextClamp
	}
	return &Store{
		lines:     make(map[int64][]Line),
		capacity:  capacity,
		textClamp: textClamp,
	}
}

// Record appends a line to the conversation's buffer, evicting the oldest
// line once capacity is exceeded. The text is normalized first: whitespace
// runs (including newlines) collapse to single spaces and the result is
// clamped to the configured rune limit. Empty text after normalization is
// not recorded.
func (s *Store) Record(conversationID int64, speaker, text string) {
	text = Normalize(text, s.textClamp)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := append(s.lines[conversationID], Line{Speaker: speaker, Text: text})
	if len(cur) > s.capacity {
		cur = cur[len(cur)-s.capacity:]
	}
	s.lines[conversationID] = cur
}

// Snapshot returns a copy of the conversation's lines in order. Unknown
// conversations yield an empty slice, not an error.
func (s *Store) Snapshot(conversationID int64) []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines[conversationID]...)
}

func (s *Store) HasHistory(conversationID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines[conversationID]) > 0
}

// Prompt renders the conversation's transcript as a generation prompt: each
// line in canonical form followed by a newline.
func (s *Store) Prompt(conversationID int64) string {
	var b strings.Builder
	for _, l := range s.Snapshot(conversationID) {
		b.WriteString(l.Render())
		b.WriteByte('\n')
	}
	return b.String()
}

// Reset drops the buffer for one conversation.
func (s *Store) Reset(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lines, conversationID)
}

// Normalize collapses all whitespace runs to single spaces, trims the
// result, and clamps it to at most clamp runes.
func Normalize(text string, clamp int) string {
	text = strings.Join(strings.Fields(text), " ")
	if clamp > 0 {
		if r := []rune(text); len(r) > clamp {
			text = string(r[:clamp])
		}
	}
	return text
}
