package pipeline

import "testing"

func TestFilterHallucination_Idempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"Thank you for watching",
		"what's the weather in tokyo",
		"",
		"谢谢观看",
		"subscribe and like this video please",
	}

	for _, in := range inputs {
		once := FilterHallucination(in)
		twice := FilterHallucination(once)
		if once != twice {
			t.Fatalf("FilterHallucination not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestFilterHallucination_MatchesKnownFillers(t *testing.T) {
	t.Parallel()

	cases := []string{"Thank you for watching", "bye", "字幕由", "like and subscribe"}
	for _, in := range cases {
		if got := FilterHallucination(in); got != "" {
			t.Errorf("FilterHallucination(%q) = %q, want empty", in, got)
		}
	}
}

func TestFilterHallucination_PassesRealSpeech(t *testing.T) {
	t.Parallel()

	text := "remind me to call mom at five"
	if got := FilterHallucination(text); got != text {
		t.Errorf("FilterHallucination(%q) = %q, want unchanged", text, got)
	}
}
