package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSONPlainObject(t *testing.T) {
	b, ok := ExtractJSON(`{"score": 80, "urgency": "hours"}`)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["score"].(float64) != 80 {
		t.Fatalf("unexpected score %v", m["score"])
	}
}

func TestExtractJSONFencedBlock(t *testing.T) {
	raw := "Here is the analysis:\n```json\n{\"score\": 65}\n```\nLet me know if you need more."
	b, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if string(b) != `{"score": 65}` {
		t.Fatalf("unexpected extraction %q", b)
	}
}

func TestExtractJSONFenceWithoutLanguage(t *testing.T) {
	raw := "```\n{\"approved\": true}\n```"
	b, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if string(b) != `{"approved": true}` {
		t.Fatalf("unexpected extraction %q", b)
	}
}

func TestExtractJSONEmbeddedInProse(t *testing.T) {
	raw := `Thinking about it, the answer is {"score": 40, "nested": {"a": 1}} which seems right.`
	b, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if string(b) != `{"score": 40, "nested": {"a": 1}}` {
		t.Fatalf("unexpected extraction %q", b)
	}
}

func TestExtractJSONSkipsInvalidCandidates(t *testing.T) {
	raw := `{broken} then later {"score": 10}`
	b, ok := ExtractJSON(raw)
	if !ok {
		t.Fatalf("expected extraction to succeed")
	}
	if string(b) != `{"score": 10}` {
		t.Fatalf("unexpected extraction %q", b)
	}
}

func TestExtractJSONNoObject(t *testing.T) {
	if _, ok := ExtractJSON("no structured output at all"); ok {
		t.Fatalf("expected extraction to fail")
	}
	if _, ok := ExtractJSON(""); ok {
		t.Fatalf("expected extraction to fail on empty input")
	}
	if _, ok := ExtractJSON("unbalanced { forever"); ok {
		t.Fatalf("expected extraction to fail on unbalanced braces")
	}
}
