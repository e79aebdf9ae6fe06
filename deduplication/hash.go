package deduplication

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"newscast/types"
)

// summaryPrefixLen bounds how much of the summary feeds the content hash, so
// trailing boilerplate differences between feeds do not defeat matching.
const summaryPrefixLen = 200

// Fingerprint derives the two identity hashes used for duplicate detection:
// a content hash over lowercased title, source and truncated summary, and a
// hash of the normalized URL. An article without a URL gets only the content
// hash; two URL-less articles must never collide on a shared empty-URL hash.
// An article carrying neither a title nor a URL cannot be fingerprinted and
// is rejected.
func Fingerprint(article *types.Article) (contentHash, urlHash string, err error) {
	if article == nil {
		return "", "", fmt.Errorf("nil article")
	}
	if strings.TrimSpace(article.Title) == "" && strings.TrimSpace(article.URL) == "" {
		return "", "", fmt.Errorf("article %s has no title and no URL", article.ID)
	}

	summary := strings.ToLower(strings.TrimSpace(article.Summary))
	if len(summary) > summaryPrefixLen {
		summary = summary[:summaryPrefixLen]
	}
	content := normalizeTitle(article.Title) + "|" + strings.ToLower(article.SourceName) + "|" + summary
	contentHash = hashString(content)
	if normalized := normalizeURL(article.URL); normalized != "" {
		urlHash = hashString(normalized)
	}
	return contentHash, urlHash, nil
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

// normalizeURL strips the parts of a URL that vary between syndicated copies
// of the same article: fragments, tracking params, host casing and a trailing
// slash.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimRight(u.String(), "/")
}
