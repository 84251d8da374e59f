package extraction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>World Watch</title>
    <item>
      <title>Grid operators warn of capacity shortfall</title>
      <description>Regional grid operators issued a joint statement warning that reserve capacity margins will fall below safe thresholds this winter unless demand response programs expand significantly across the region.</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    </item>
    <item>
      <title>New battery plant breaks ground</title>
      <description>Construction began on a large-scale battery manufacturing facility expected to employ several thousand workers and supply storage capacity for regional utilities within three years.</description>
      <pubDate>Tue, 03 Jan 2006 10:00:00 -0700</pubDate>
    </item>
    <item>
      <title>Regulators open rate case review</title>
      <description>State regulators opened a formal review of proposed electricity rate increases, citing consumer advocate objections and utility filings projecting substantial infrastructure investment needs over the coming decade.</description>
      <pubDate>Wed, 04 Jan 2006 09:30:00 -0700</pubDate>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Atom</title>
  <entry>
    <title>First entry</title>
    <link href="https://example.com/1"/>
    <content type="html">Body of the first entry with enough words to matter for this test case.</content>
    <published>2026-01-02T15:04:05Z</published>
    <id>tag:example.com,2026:1</id>
  </entry>
</feed>`

func TestFeedExtractor_RSS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFixture))
	}))
	defer srv.Close()

	ext := NewFeedExtractor(5 * time.Second)
	result, err := ext.Extract(context.Background(), Target{URL: srv.URL, Platform: models.PlatformSyndication})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if result.Method != models.ExtractionMethodFeed {
		t.Errorf("method = %q, want feed", result.Method)
	}
	if result.ItemsFound != 3 {
		t.Errorf("items found = %d, want 3", result.ItemsFound)
	}
	if !strings.Contains(result.Content, "battery") {
		t.Error("merged content missing article text")
	}
	// Newest first.
	if strings.Index(result.Content, "rate case") > strings.Index(result.Content, "capacity shortfall") {
		t.Error("items not sorted newest first")
	}
	if CountWords(result.Content) < 80 {
		t.Errorf("merged feed content should clear the minimum threshold, got %d words", CountWords(result.Content))
	}
}

func TestFeedExtractor_Atom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(atomFixture))
	}))
	defer srv.Close()

	ext := NewFeedExtractor(5 * time.Second)
	result, err := ext.Extract(context.Background(), Target{URL: srv.URL, Platform: models.PlatformSyndication})
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if result.ItemsFound != 1 {
		t.Errorf("items found = %d, want 1", result.ItemsFound)
	}
	if !strings.Contains(result.Content, "First entry") {
		t.Error("content missing entry title")
	}
}

func TestFeedExtractor_MalformedEntities(t *testing.T) {
	// Bare ampersand and stray '<' in the description must be sanitized,
	// not fail the whole feed.
	malformed := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Broken</title>
<item><title>Q&A session scheduled</title><description>Prices < expected & rising fast according to three analysts surveyed this week.</description><pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate></item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(malformed))
	}))
	defer srv.Close()

	ext := NewFeedExtractor(5 * time.Second)
	result, err := ext.Extract(context.Background(), Target{URL: srv.URL, Platform: models.PlatformSyndication})
	if err != nil {
		t.Fatalf("sanitized extract failed: %v", err)
	}
	if !strings.Contains(result.Content, "Q&A") {
		t.Errorf("unescaped entity lost: %q", result.Content)
	}
}

func TestFeedExtractor_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ext := NewFeedExtractor(5 * time.Second)
	if _, err := ext.Extract(context.Background(), Target{URL: srv.URL, Platform: models.PlatformSyndication}); err == nil {
		t.Fatal("expected error on 503")
	}
}

func TestSanitizeFeedXML(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a & b", "a &amp; b"},
		{"a &amp; b", "a &amp; b"},
		{"a &#169; b", "a &#169; b"},
		{"x < 5", "x &lt; 5"},
		{"<item>ok</item>", "<item>ok</item>"},
		{"<!-- comment -->", "<!-- comment -->"},
		{"<?xml version=\"1.0\"?>", "<?xml version=\"1.0\"?>"},
	}
	for _, tt := range tests {
		if got := SanitizeFeedXML(tt.in); got != tt.want {
			t.Errorf("SanitizeFeedXML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseFeedDate(t *testing.T) {
	if parseFeedDate("Mon, 02 Jan 2006 15:04:05 -0700").IsZero() {
		t.Error("RFC1123Z date should parse")
	}
	if parseFeedDate("2026-01-02T15:04:05Z").IsZero() {
		t.Error("RFC3339 date should parse")
	}
	if !parseFeedDate("garbage").IsZero() {
		t.Error("unparsable date should be zero")
	}
}
