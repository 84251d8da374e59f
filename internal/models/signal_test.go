package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateHeadline(t *testing.T) {
	tests := []struct {
		name      string
		headline  string
		wantRunes int
	}{
		{name: "short ascii untouched", headline: "grid outage narrative", wantRunes: 21},
		{name: "long ascii cut to bound", headline: strings.Repeat("h", MaxHeadlineLength+50), wantRunes: MaxHeadlineLength},
		{name: "multibyte under bound untouched", headline: strings.Repeat("世", 90), wantRunes: 90},
		{name: "multibyte over bound cut to bound", headline: strings.Repeat("界", MaxHeadlineLength+30), wantRunes: MaxHeadlineLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateHeadline(tt.headline)
			if n := utf8.RuneCountInString(got); n != tt.wantRunes {
				t.Errorf("rune count = %d, want %d", n, tt.wantRunes)
			}
			if !utf8.ValidString(got) {
				t.Error("truncated headline is not valid UTF-8")
			}
			if !strings.HasPrefix(tt.headline, got) {
				t.Error("truncation must be a prefix of the original")
			}
		})
	}
}
