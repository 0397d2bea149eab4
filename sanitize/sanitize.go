// Package sanitize turns raw generation output into exactly one usable
// reply. The endpoint echoes the prompt and then continues the transcript,
// usually with further speaker-tagged turns it invented for other
// participants; only the first generated block is kept.
package sanitize

import (
	"regexp"
	"strings"
)

// Reply is the sanitized result: Text is delivered to the chat, while
// TranscriptLine keeps the "[speaker]:" tagging convention the endpoint is
// prompted with.
type Reply struct {
	Speaker string
	Text    string
}

func (r Reply) TranscriptLine() string {
	return "[" + r.Speaker + "]: " + r.Text
}

var (
	nextSpeakerTag = regexp.MustCompile(`\n\[[^\[\]\n]+\]:`)
	leadingTag     = regexp.MustCompile(`(?s)^\[([^\[\]\n]+)\]:[ \t]*(.*)$`)
)

// Extract isolates the first generated turn from raw endpoint output.
//
// The prompt prefix is stripped when present (when absent the continuation
// boundary is unknown and the whole raw text is used). The remainder is cut
// at the first newline followed by a speaker tag, discarding turns the model
// hallucinated for other participants. A leading "[name]: " tag names the
// speaker; without one the configured fallback speaker is used so later
// prompts keep a consistent tag structure. Literal '@' characters are
// removed from the reply body to avoid accidental re-mentions.
//
// ok is false when nothing usable remains; the caller must then deliver and
// record nothing.
func Extract(raw, prompt, fallbackSpeaker string) (Reply, bool) {
	if prompt != "" && strings.HasPrefix(raw, prompt) {
		raw = raw[len(prompt):]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Reply{}, false
	}

	if loc := nextSpeakerTag.FindStringIndex(raw); loc != nil {
		raw = strings.TrimSpace(raw[:loc[0]])
	}

	speaker := fallbackSpeaker
	body := raw
	if m := leadingTag.FindStringSubmatch(raw); m != nil {
		speaker = strings.TrimSpace(m[1])
		body = m[2]
	}

	body = strings.TrimSpace(strings.ReplaceAll(body, "@", ""))
	if body == "" {
		return Reply{}, false
	}
	return Reply{Speaker: speaker, Text: body}, true
}
