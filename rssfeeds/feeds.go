package rssfeeds

import "sort"

// FeedConfig describes one source feed and the category its articles land in.
type FeedConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// FeedPresets maps friendly keys to source feeds. The category is assigned to
// every article the feed yields.
var FeedPresets = map[string]FeedConfig{
	"bbc-world": {
		Name:     "BBC World",
		URL:      "https://feeds.bbci.co.uk/news/world/rss.xml",
		Category: "World News",
	},
	"bbc-politics": {
		Name:     "BBC Politics",
		URL:      "https://feeds.bbci.co.uk/news/politics/rss.xml",
		Category: "Politics & Government",
	},
	"bbc-business": {
		Name:     "BBC Business",
		URL:      "https://feeds.bbci.co.uk/news/business/rss.xml",
		Category: "Business",
	},
	"hn": {
		Name:     "Hacker News",
		URL:      "https://hnrss.org/newest",
		Category: "Technology",
	},
	"tr": {
		Name:     "Technology Review",
		URL:      "https://www.technologyreview.com/feed/",
		Category: "Technology",
	},
	"nature": {
		Name:     "Nature News",
		URL:      "https://www.nature.com/nature.rss",
		Category: "Science & Environment",
	},
	"bbc-sport": {
		Name:     "BBC Sport",
		URL:      "https://feeds.bbci.co.uk/sport/rss.xml",
		Category: "Sports",
	},
	"bbc-health": {
		Name:     "BBC Health",
		URL:      "https://feeds.bbci.co.uk/news/health/rss.xml",
		Category: "Health",
	},
}

// DefaultPresets is the preset set a discovery run uses when none are named.
var DefaultPresets = []string{
	"bbc-world", "bbc-politics", "bbc-business", "hn", "nature", "bbc-sport", "bbc-health",
}

// PresetCategories returns the distinct categories the presets cover, sorted.
func PresetCategories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, cfg := range FeedPresets {
		if seen[cfg.Category] {
			continue
		}
		seen[cfg.Category] = true
		categories = append(categories, cfg.Category)
	}
	sort.Strings(categories)
	return categories
}

// ResolvePreset returns the config for a preset key, or treats the input as a
// raw feed URL in the default category.
func ResolvePreset(input string) FeedConfig {
	if cfg, ok := FeedPresets[input]; ok {
		return cfg
	}
	return FeedConfig{Name: input, URL: input, Category: "World News"}
}
