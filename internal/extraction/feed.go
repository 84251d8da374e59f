package extraction

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/driftwatch/driftwatch/internal/models"
)

// FeedExtractor is the syndication fast path: direct feed fetch and XML
// parse, no browser. Handles both RSS 2.0 and Atom, and sanitizes the common
// classes of malformed feed XML before giving up.
type FeedExtractor struct {
	client   *http.Client
	stripper *bluemonday.Policy
	maxItems int
}

// NewFeedExtractor creates the feed tier with the given HTTP timeout.
func NewFeedExtractor(timeout time.Duration) *FeedExtractor {
	return &FeedExtractor{
		client:   &http.Client{Timeout: timeout},
		stripper: bluemonday.StrictPolicy(),
		maxItems: 20,
	}
}

// Name identifies the tier.
func (e *FeedExtractor) Name() string { return "feed" }

// Supports restricts this tier to syndication sources.
func (e *FeedExtractor) Supports(p models.Platform) bool {
	return p == models.PlatformSyndication
}

// rssDoc is the RSS 2.0 feed structure.
type rssDoc struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Title string    `xml:"title"`
		Items []feedItem `xml:"item"`
	} `xml:"channel"`
}

type feedItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// atomDoc is the Atom feed structure.
type atomDoc struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title string `xml:"title"`
	Link  struct {
		Href string `xml:"href,attr"`
	} `xml:"link"`
	Content struct {
		Value string `xml:",chardata"`
	} `xml:"content"`
	Summary   string `xml:"summary"`
	Published string `xml:"published"`
	Updated   string `xml:"updated"`
	ID        string `xml:"id"`
}

// Extract fetches and parses the feed, merging entries newest-first into a
// single content block.
func (e *FeedExtractor) Extract(ctx context.Context, target Target) (*Result, error) {
	body, err := e.fetch(ctx, target.URL)
	if err != nil {
		return nil, err
	}

	items, feedTitle, err := e.parse(body)
	if err != nil {
		// Malformed entities are common in the wild; sanitize and retry
		// once before treating the feed as broken.
		items, feedTitle, err = e.parse([]byte(SanitizeFeedXML(string(body))))
		if err != nil {
			return nil, fmt.Errorf("feed parse failed: %w", err)
		}
	}

	if len(items) == 0 {
		return nil, ErrNoContent
	}

	sort.SliceStable(items, func(i, j int) bool {
		return parseFeedDate(items[i].PubDate).After(parseFeedDate(items[j].PubDate))
	})
	if len(items) > e.maxItems {
		items = items[:e.maxItems]
	}

	var b strings.Builder
	for _, item := range items {
		title := e.clean(item.Title)
		desc := e.clean(item.Description)
		if title == "" && desc == "" {
			continue
		}
		if title != "" {
			b.WriteString(title)
			b.WriteString("\n")
		}
		if desc != "" {
			b.WriteString(desc)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	content := strings.TrimSpace(b.String())
	if content == "" {
		return nil, ErrNoContent
	}

	return &Result{
		Content:    content,
		Title:      e.clean(feedTitle),
		Method:     models.ExtractionMethodFeed,
		ItemsFound: len(items),
	}, nil
}

// parse tries RSS 2.0 first, then Atom.
func (e *FeedExtractor) parse(body []byte) ([]feedItem, string, error) {
	var rss rssDoc
	rssErr := xml.Unmarshal(body, &rss)
	if rssErr == nil && len(rss.Channel.Items) > 0 {
		return rss.Channel.Items, rss.Channel.Title, nil
	}

	var atom atomDoc
	atomErr := xml.Unmarshal(body, &atom)
	if atomErr == nil && len(atom.Entries) > 0 {
		items := make([]feedItem, 0, len(atom.Entries))
		for _, entry := range atom.Entries {
			desc := entry.Content.Value
			if desc == "" {
				desc = entry.Summary
			}
			published := entry.Published
			if published == "" {
				published = entry.Updated
			}
			items = append(items, feedItem{
				Title:       entry.Title,
				Link:        entry.Link.Href,
				Description: desc,
				PubDate:     published,
				GUID:        entry.ID,
			})
		}
		return items, atom.Title, nil
	}

	if rssErr == nil && atomErr == nil {
		return nil, "", fmt.Errorf("feed parsed but contains no items")
	}
	return nil, "", fmt.Errorf("not parseable as RSS (%v) or Atom (%v)", rssErr, atomErr)
}

func (e *FeedExtractor) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// clean strips markup and collapses whitespace in feed text.
func (e *FeedExtractor) clean(s string) string {
	s = e.stripper.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// entityRe matches a well-formed entity body immediately after an ampersand.
var entityRe = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9]{1,7}|#[0-9]{1,5}|#x[0-9a-fA-F]{1,4});`)

// SanitizeFeedXML escapes the malformed entities that most often break real
// feeds: bare ampersands and stray less-than signs inside text content.
func SanitizeFeedXML(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '&':
			if entityRe.MatchString(s[i+1:]) {
				b.WriteByte(c)
			} else {
				b.WriteString("&amp;")
			}
		case '<':
			// A '<' followed by a letter, '/', '!' or '?' can legitimately
			// open a tag, comment, CDATA block, or processing instruction.
			if i+1 < len(s) && (isASCIILetter(s[i+1]) || s[i+1] == '/' || s[i+1] == '!' || s[i+1] == '?') {
				b.WriteByte(c)
			} else {
				b.WriteString("&lt;")
			}
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// parseFeedDate attempts the common RSS and Atom date formats.
func parseFeedDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon, 02 Jan 2006 15:04:05 -0700",
		"Mon, 02 Jan 2006 15:04:05 MST",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t
		}
	}

	// Some feeds omit the timezone entirely; assume UTC.
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", dateStr, time.UTC); err == nil {
		return t
	}

	return time.Time{}
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
