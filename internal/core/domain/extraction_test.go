package domain

import (
	"encoding/json"
	"testing"
)

func TestConfidenceOrderAndParse(t *testing.T) {
	if !(ConfidenceLow < ConfidenceMedium && ConfidenceMedium < ConfidenceHigh) {
		t.Fatalf("confidence order broken")
	}
	for raw, want := range map[string]Confidence{
		"HIGH":    ConfidenceHigh,
		" medium": ConfidenceMedium,
		"low":     ConfidenceLow,
		"maybe":   ConfidenceLow,
		"":        ConfidenceLow,
	} {
		if got := ParseConfidence(raw); got != want {
			t.Fatalf("ParseConfidence(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestConfidenceJSON(t *testing.T) {
	raw, err := json.Marshal(ExtractionResult{Title: "Dune", Confidence: ConfidenceMedium})
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var back ExtractionResult
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if back.Confidence != ConfidenceMedium {
		t.Fatalf("Confidence = %v, want medium", back.Confidence)
	}
	var bad ExtractionResult
	if err := json.Unmarshal([]byte(`{"confidence":"certain"}`), &bad); err == nil {
		t.Fatalf("expected error for unknown confidence")
	}
}
