package domain

import (
	"encoding/json"
	"testing"
)

func TestDecodeMomentKinds(t *testing.T) {
	cases := []struct {
		raw  string
		kind MomentKind
		text string
	}{
		{`{"kind":"quote","concept":"recursion","timestamp":10,"text":"to understand recursion..."}`, MomentQuote, "to understand recursion..."},
		{`{"kind":"analogy","concept":"stack","timestamp":20,"familiar":"plates","text":"like a stack of plates"}`, MomentAnalogy, "like a stack of plates"},
		{`{"kind":"misconception","concept":"gc","timestamp":30,"claim":"gc is free","correction":"gc costs cpu"}`, MomentMisconception, "gc is free -> gc costs cpu"},
		{`{"kind":"application","concept":"hashing","timestamp":40,"scenario":"dedup","text":"dedup files by hash"}`, MomentApplication, "dedup files by hash"},
		{`{"kind":"aha_moment","concept":"closure","timestamp":50,"insight":"closures capture variables"}`, MomentAhaMoment, "closures capture variables"},
		{`{"kind":"question","concept":"p_np","timestamp":60,"question":"does P equal NP?"}`, MomentQuestion, "does P equal NP?"},
	}

	for _, tc := range cases {
		m, err := DecodeMoment(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("decode %s: %v", tc.kind, err)
		}
		if m.Kind() != tc.kind {
			t.Errorf("got kind %s, want %s", m.Kind(), tc.kind)
		}
		if got := MomentText(m); got != tc.text {
			t.Errorf("kind %s: got text %q, want %q", tc.kind, got, tc.text)
		}
	}
}

func TestDecodeMomentUnknownKind(t *testing.T) {
	_, err := DecodeMoment(json.RawMessage(`{"kind":"interpretive_dance","concept":"x","timestamp":1}`))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestDecodeMomentCarriesBase(t *testing.T) {
	m, err := DecodeMoment(json.RawMessage(`{"kind":"quote","concept":"entropy","timestamp":12.5,"text":"q"}`))
	if err != nil {
		t.Fatal(err)
	}
	base := m.Base()
	if base.Concept != "entropy" || base.Timestamp != 12.5 {
		t.Errorf("unexpected base: %+v", base)
	}
}
