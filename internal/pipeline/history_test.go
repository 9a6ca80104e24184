package pipeline

import "testing"

func TestHistory_CapsAtMaxTurns(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	for i := range maxHistoryTurns + 10 {
		h.Append("device-1", Turn{User: "turn", Assistant: "reply"})
		_ = i
	}

	turns := h.Get("device-1")
	if len(turns) != maxHistoryTurns {
		t.Fatalf("len(turns) = %d, want %d", len(turns), maxHistoryTurns)
	}
}

func TestHistory_SeparatePerDevice(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append("device-a", Turn{User: "hi", Assistant: "hello"})

	if len(h.Get("device-b")) != 0 {
		t.Fatal("device-b should have no history")
	}
	if len(h.Get("device-a")) != 1 {
		t.Fatal("device-a should have one turn")
	}
}

func TestHistory_Reset(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	h.Append("device-1", Turn{User: "hi", Assistant: "hello"})
	h.Reset("device-1")

	if len(h.Get("device-1")) != 0 {
		t.Fatal("Reset should clear the device's history")
	}
}
