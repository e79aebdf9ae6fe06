package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Article is a single news item flowing through the pipeline. Embedding is
// nil until the embedding stage has run; PublishedAt is nil when the source
// feed carried no usable timestamp.
type Article struct {
	ID          string     `json:"id"`
	SourceName  string     `json:"source_name"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Summary     string     `json:"summary"`
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Category    string     `json:"category"`
	Subcategory string     `json:"subcategory,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Embedding   []float64  `json:"embedding,omitempty"`
	ClusterID   string     `json:"cluster_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// GenerateID produces a stable article identifier from the source and URL.
func GenerateID(sourceName, url string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s", sourceName, url)))
	return hex.EncodeToString(h[:])[:16]
}

// WordCount is a cheap whitespace token count over the richest text we have.
func (a *Article) WordCount() int {
	text := a.Content
	if text == "" {
		text = a.Summary
	}
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}

// StoryCluster groups articles that cover the same underlying event. The
// centroid is the arithmetic mean of member embeddings and acts as the
// cluster representative for similarity search.
type StoryCluster struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Summary       string    `json:"summary"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Centroid      []float64 `json:"centroid,omitempty"`
	ArticleCount  int       `json:"article_count"`
	Importance    int       `json:"importance"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// AgeAt returns the cluster age relative to now, measured from the last
// update so that fresh coverage keeps a story young.
func (c *StoryCluster) AgeAt(now time.Time) time.Duration {
	return now.Sub(c.LastUpdatedAt)
}

// UserPreferences drives selection planning for one listener.
type UserPreferences struct {
	UserID            string         `json:"user_id"`
	Topics            []string       `json:"topics"`
	TopicWeights      map[string]int `json:"topic_weights,omitempty"`
	EpisodeMinutes    int            `json:"episode_minutes"`
	MaxStories        int            `json:"max_stories,omitempty"`
	MinImportance     int            `json:"min_importance,omitempty"`
	ExcludeClusterIDs []string       `json:"exclude_cluster_ids,omitempty"`
}
