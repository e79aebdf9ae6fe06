package rssfeeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newscast/types"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Storm damages coastal rail line</title></head>
<body>
<article>
<h1>Storm damages coastal rail line</h1>
<p>Engineers inspected the coastal rail line on Tuesday after overnight storms
washed out sections of track bed near the harbour. Services between the two
cities remain suspended while crews assess the damage.</p>
<p>The operator said repairs are expected to take at least a week, with buses
replacing trains on the affected stretch. Freight traffic is being rerouted
inland in the meantime.</p>
<p>Local officials called for additional funding to protect the exposed line,
which has flooded three times in the past decade.</p>
</article>
</body>
</html>`

func TestExtractAllContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	articles := []types.Article{
		{ID: "a1", Title: "Storm damages coastal rail line", URL: server.URL + "/story"},
		{ID: "a2", Title: "No URL here"},
	}
	ExtractAllContent(articles)

	if !strings.Contains(articles[0].Content, "washed out sections of track bed") {
		t.Errorf("full content not extracted: %q", articles[0].Content)
	}
	// Extraction failure leaves the article usable with its feed fields.
	if articles[1].Content != "" {
		t.Errorf("URL-less article should keep empty content, got %q", articles[1].Content)
	}
}

func TestFetchExtractsFullContent(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	feed := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Wire</title>
  <item>
    <title>Storm damages coastal rail line</title>
    <link>%s/story</link>
    <description>Track washed out after storms.</description>
  </item>
</channel>
</rss>`, server.URL)

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(feed))
	})
	mux.HandleFunc("/story", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articleHTML))
	})

	fetcher := &MultiFetcher{Presets: []string{server.URL + "/feed"}}
	articles, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("got %d articles, want 1", len(articles))
	}
	if !strings.Contains(articles[0].Content, "repairs are expected to take at least a week") {
		t.Errorf("fetched article missing extracted content: %q", articles[0].Content)
	}
}
