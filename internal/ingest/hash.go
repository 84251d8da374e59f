package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeContent standardizes content before hashing so that formatting
// noise (whitespace runs, leading/trailing space) does not defeat
// deduplication. Casing is preserved: a genuine edit should produce a new
// ingestion.
func NormalizeContent(content string) string {
	normalized := whitespaceRe.ReplaceAllString(content, " ")
	return strings.TrimSpace(normalized)
}

// HashContent returns the hex-encoded SHA-256 fingerprint of the normalized
// content. Identity is per source: the same hash under two different sources
// is two distinct ingestions.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(NormalizeContent(content)))
	return hex.EncodeToString(sum[:])
}
