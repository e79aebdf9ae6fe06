package rssfeeds

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mmcdole/gofeed"

	"newscast/config"
	"newscast/types"
)

// DefaultMaxPerFeed bounds how many items one feed contributes to a batch.
const DefaultMaxPerFeed = 30

// FetchFeed retrieves and parses one RSS/Atom feed, returning article
// metadata tagged with the feed's category.
func FetchFeed(ctx context.Context, cfg FeedConfig, maxCount int) ([]types.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, config.FetchTimeout)
	defer cancel()

	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(cfg.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", cfg.Name, err)
	}

	count := min(len(feed.Items), maxCount)
	articles := make([]types.Article, 0, count)

	for i := 0; i < count; i++ {
		item := feed.Items[i]
		if item.Link == "" && item.Title == "" {
			continue
		}

		var publishedAt *time.Time
		if item.PublishedParsed != nil {
			publishedAt = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = item.UpdatedParsed
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		tags := make([]string, len(item.Categories))
		copy(tags, item.Categories)

		articles = append(articles, types.Article{
			ID:          types.GenerateID(cfg.Name, item.Link),
			SourceName:  cfg.Name,
			Title:       item.Title,
			URL:         item.Link,
			Summary:     summary,
			PublishedAt: publishedAt,
			Category:    cfg.Category,
			Tags:        tags,
			CreatedAt:   time.Now().UTC(),
		})
	}

	return articles, nil
}

// MultiFetcher fetches a set of preset feeds as one batch; it satisfies the
// ingestion pipeline's Fetcher.
type MultiFetcher struct {
	Presets    []string
	MaxPerFeed int
}

// Fetch pulls every configured feed. A failing feed is logged and skipped.
func (m *MultiFetcher) Fetch(ctx context.Context) ([]types.Article, error) {
	presets := m.Presets
	if len(presets) == 0 {
		presets = DefaultPresets
	}
	maxPerFeed := m.MaxPerFeed
	if maxPerFeed <= 0 {
		maxPerFeed = DefaultMaxPerFeed
	}

	var batch []types.Article
	failed := 0
	for _, preset := range presets {
		cfg := ResolvePreset(preset)
		articles, err := FetchFeed(ctx, cfg, maxPerFeed)
		if err != nil {
			log.Printf("❌ %v", err)
			failed++
			continue
		}
		log.Printf("📥 %s: %d articles", cfg.Name, len(articles))
		batch = append(batch, articles...)
	}

	if failed == len(presets) {
		return nil, fmt.Errorf("all %d feeds failed", failed)
	}

	if len(batch) > 0 {
		log.Printf("Extracting full content using %d workers...", config.ExtractWorkerCount)
		ExtractAllContent(batch)
	}
	return batch, nil
}
