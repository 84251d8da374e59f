package analysis

import (
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"code fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding prose", `Here you go: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`},
		{"escaped quote", `{"a":"say \"hi\""}`, `{"a":"say \"hi\""}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a":1`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.in); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDetectionResponseRejectsBadRisk(t *testing.T) {
	_, err := parseDetectionResponse(`{"signals":[{"headline":"h","risk_level":"critical"}]}`)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestParseMomentumResponseAcceptsValidUpdate(t *testing.T) {
	resp, err := parseMomentumResponse(`{"updates":[{"signal_id":"s1","new_status":"Stabilizing","new_momentum":"low","new_risk_level":"monitor","reason":"r"}],"unchanged":[]}`)
	if err != nil {
		t.Fatalf("parseMomentumResponse: %v", err)
	}
	if len(resp.Updates) != 1 || resp.Updates[0].SignalID != "s1" {
		t.Errorf("unexpected parse: %+v", resp)
	}
}
