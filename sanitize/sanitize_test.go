package sanitize

import (
	"strings"
	"testing"
)

func TestExtractPromptEchoWithHallucinatedTurns(t *testing.T) {
	prompt := "[Alice]: hi\n[Bob]: hello\n"
	raw := prompt + "[Alice]: hello\n[Bob]: ignored"

	rep, ok := Extract(raw, prompt, "Bot")
	if !ok {
		t.Fatal("expected usable output")
	}
	if rep.Text != "hello" {
		t.Errorf("reply text = %q, want %q", rep.Text, "hello")
	}
	if got := rep.TranscriptLine(); got != "[Alice]: hello" {
		t.Errorf("transcript line = %q, want %q", got, "[Alice]: hello")
	}
	if strings.Contains(rep.Text, "Bob") || strings.Contains(rep.TranscriptLine(), "Bob") {
		t.Error("hallucinated second turn leaked into the output")
	}
}

func TestExtractNoSpeakerTag(t *testing.T) {
	rep, ok := Extract("just text", "", "Bot")
	if !ok {
		t.Fatal("expected usable output")
	}
	if rep.Text != "just text" {
		t.Errorf("reply text = %q", rep.Text)
	}
	if got := rep.TranscriptLine(); got != "[Bot]: just text" {
		t.Errorf("transcript line = %q, want fallback speaker tag", got)
	}
}

func TestExtractDegradedModeWithoutPromptEcho(t *testing.T) {
	// Raw output that does not start with the prompt is used unmodified.
	prompt := "[Alice]: hi\n"
	raw := "[Carol]: something new\n[Dave]: later turn"

	rep, ok := Extract(raw, prompt, "Bot")
	if !ok {
		t.Fatal("expected usable output")
	}
	if rep.Speaker != "Carol" || rep.Text != "something new" {
		t.Errorf("got speaker %q text %q", rep.Speaker, rep.Text)
	}
}

func TestExtractRemovesAtSigns(t *testing.T) {
	rep, ok := Extract("[Alice]: ping @bob and @carol", "", "Bot")
	if !ok {
		t.Fatal("expected usable output")
	}
	if rep.Text != "ping bob and carol" {
		t.Errorf("reply text = %q", rep.Text)
	}
}

func TestExtractEmptyAfterPromptStrip(t *testing.T) {
	prompt := "[Alice]: hi\n"
	if _, ok := Extract(prompt+"   \n ", prompt, "Bot"); ok {
		t.Error("expected no usable output")
	}
}

func TestExtractEmptyAfterAtRemoval(t *testing.T) {
	if _, ok := Extract("[Alice]: @@@", "", "Bot"); ok {
		t.Error("expected no usable output when only mentions remain")
	}
}

func TestExtractEmptyRaw(t *testing.T) {
	if _, ok := Extract("", "", "Bot"); ok {
		t.Error("expected no usable output for empty raw text")
	}
}

func TestExtractMultilineFirstBlockKept(t *testing.T) {
	raw := "[Alice]: first line\nstill the same turn\n[Bob]: next turn"

	rep, ok := Extract(raw, "", "Bot")
	if !ok {
		t.Fatal("expected usable output")
	}
	if rep.Speaker != "Alice" {
		t.Errorf("speaker = %q", rep.Speaker)
	}
	if !strings.Contains(rep.Text, "still the same turn") {
		t.Errorf("untagged continuation line was dropped: %q", rep.Text)
	}
	if strings.Contains(rep.Text, "next turn") {
		t.Errorf("next speaker turn leaked: %q", rep.Text)
	}
}
