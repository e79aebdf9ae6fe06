package selection

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"newscast/common"
	"newscast/config"
	"newscast/types"
)

// PlanStore is the read surface the planner needs from storage.
type PlanStore interface {
	ClustersByTopic(topic string, firstSeenSince time.Time) ([]types.StoryCluster, error)
	HeardClusterIDs(userID string) ([]string, error)
	ArticlesByCluster(clusterID string) ([]types.Article, error)
}

// Planner turns user preferences into a proportional selection plan over the
// current cluster inventory.
type Planner struct {
	store PlanStore
	now   func() time.Time
}

// NewPlanner builds a planner over the store.
func NewPlanner(store PlanStore) *Planner {
	return &Planner{store: store, now: time.Now}
}

type candidate struct {
	cluster types.StoryCluster
	boosted float64
}

// Plan selects clusters for one episode. Topics with no eligible clusters
// are dropped; if every topic comes up empty the request fails with
// common.ErrNoContentAvailable. A store error on one topic never fails the
// whole plan.
func (p *Planner) Plan(prefs types.UserPreferences) (*types.SelectionPlan, error) {
	if len(prefs.Topics) == 0 {
		return nil, fmt.Errorf("no topics requested: %w", common.ErrNoContentAvailable)
	}

	now := p.now().UTC()
	cutoff := now.Add(-config.FreshnessWindow)

	minImportance := prefs.MinImportance
	if minImportance == 0 {
		minImportance = config.DefaultMinImportance
	}

	excluded := make(map[string]bool, len(prefs.ExcludeClusterIDs))
	for _, id := range prefs.ExcludeClusterIDs {
		excluded[id] = true
	}
	if prefs.UserID != "" {
		heard, err := p.store.HeardClusterIDs(prefs.UserID)
		if err != nil {
			log.Printf("failed to load heard clusters for %s: %v", prefs.UserID, err)
		}
		for _, id := range heard {
			excluded[id] = true
		}
	}

	// Gather ranked candidates per topic. A cluster matching two topics goes
	// to the first topic that claims it.
	claimed := make(map[string]bool)
	perTopic := make(map[string][]candidate, len(prefs.Topics))
	for _, topic := range prefs.Topics {
		clusters, err := p.store.ClustersByTopic(topic, cutoff)
		if err != nil {
			log.Printf("topic %q skipped: %v", topic, err)
			continue
		}
		var cands []candidate
		for _, c := range clusters {
			if excluded[c.ID] || claimed[c.ID] || c.Importance < minImportance {
				continue
			}
			claimed[c.ID] = true
			cands = append(cands, candidate{cluster: c, boosted: boostedScore(&c, now)})
		}
		if len(cands) == 0 {
			continue
		}
		sort.Slice(cands, func(i, j int) bool { return rankBefore(cands[i], cands[j]) })
		perTopic[topic] = cands
	}
	if len(perTopic) == 0 {
		return nil, fmt.Errorf("no eligible clusters for any topic: %w", common.ErrNoContentAvailable)
	}

	totalWords := prefs.EpisodeMinutes * config.WordsPerMinute
	if totalWords <= 0 {
		totalWords = 10 * config.WordsPerMinute
	}

	maxStories := prefs.MaxStories
	if maxStories <= 0 {
		maxStories = config.DefaultMaxStories
	}
	if byWords := totalWords / config.MinWordsPerStory; byWords < maxStories && byWords > 0 {
		maxStories = byWords
	}

	selected := p.selectClusters(prefs.Topics, perTopic, maxStories)
	return p.allocate(prefs, selected, perTopic, totalWords, now), nil
}

// selectClusters runs the guaranteed-minimum pass (one cluster per topic
// with candidates) and then fills the remaining slots in global boosted
// score order.
func (p *Planner) selectClusters(topicOrder []string, perTopic map[string][]candidate, maxStories int) map[string][]candidate {
	selected := make(map[string][]candidate, len(perTopic))
	taken := 0

	for _, topic := range topicOrder {
		cands, ok := perTopic[topic]
		if !ok || taken >= maxStories {
			continue
		}
		selected[topic] = []candidate{cands[0]}
		taken++
	}

	type pending struct {
		topic string
		cand  candidate
	}
	var rest []pending
	for topic, cands := range perTopic {
		for _, c := range cands[min(len(selected[topic]), len(cands)):] {
			rest = append(rest, pending{topic: topic, cand: c})
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rankBefore(rest[i].cand, rest[j].cand) })

	for _, pr := range rest {
		if taken >= maxStories {
			break
		}
		selected[pr.topic] = append(selected[pr.topic], pr.cand)
		taken++
	}
	return selected
}

// allocate distributes the word budget proportionally to the number of
// clusters selected per topic and assembles the final plan.
func (p *Planner) allocate(prefs types.UserPreferences, selected map[string][]candidate, perTopic map[string][]candidate, totalWords int, now time.Time) *types.SelectionPlan {
	totalSelected := 0
	for _, cands := range selected {
		totalSelected += len(cands)
	}

	plan := &types.SelectionPlan{
		UserID:      prefs.UserID,
		GeneratedAt: now,
	}

	for _, topic := range prefs.Topics {
		cands, ok := selected[topic]
		if !ok || len(cands) == 0 {
			continue
		}

		share := float64(len(cands)) / float64(totalSelected)
		budget := int(math.Floor(float64(totalWords) * share))
		perCluster := budget / len(cands)

		alloc := types.TopicAllocation{
			Topic:       topic,
			WordBudget:  budget,
			PerCluster:  make(map[string]int, len(cands)),
			ShareOfPlan: share,
		}
		for _, c := range cands {
			alloc.ClusterIDs = append(alloc.ClusterIDs, c.cluster.ID)
			alloc.PerCluster[c.cluster.ID] = perCluster
		}

		// Runner-up clusters kept as fallbacks for downstream content
		// fetching.
		for _, c := range perTopic[topic][len(cands):] {
			if len(alloc.BackupIDs) >= config.BackupsPerTopic {
				break
			}
			alloc.BackupIDs = append(alloc.BackupIDs, c.cluster.ID)
		}
		alloc.Exhausted = len(perTopic[topic]) == len(cands)

		plan.Allocations = append(plan.Allocations, alloc)
		plan.TotalWords += budget
	}
	return plan
}

// ClusterBackups returns the non-canonical member articles of a cluster,
// newest first, as fallbacks when the canonical article's content cannot be
// fetched.
func (p *Planner) ClusterBackups(clusterID string) ([]types.Article, error) {
	articles, err := p.store.ArticlesByCluster(clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster articles: %w", err)
	}
	sort.Slice(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return articles, nil
}

// ToleranceBounds converts a word budget into the acceptable realized range
// carried downstream to content generation.
func ToleranceBounds(wordBudget int) (low, high int) {
	return int(math.Floor(float64(wordBudget) * config.BudgetToleranceLow)),
		int(math.Ceil(float64(wordBudget) * config.BudgetToleranceHigh))
}

// boostedScore applies per-category exponential time decay to importance,
// then the multiplicative coverage boost for corroborated stories.
func boostedScore(c *types.StoryCluster, now time.Time) float64 {
	ageHours := now.Sub(c.FirstSeenAt).Hours()
	if ageHours < 0 {
		ageHours = 0
	}
	effective := float64(c.Importance) * math.Exp(-ageHours*config.DecayRatePerHour(c.Category))

	boost := 1.0
	if c.ArticleCount > 1 {
		boost += config.CoverageBoostFactor * math.Log(float64(c.ArticleCount))
	}
	return effective * boost
}

// rankBefore orders candidates by boosted score, breaking ties by article
// count then by first-seen recency.
func rankBefore(a, b candidate) bool {
	if math.Abs(a.boosted-b.boosted) > config.ScoreEpsilon {
		return a.boosted > b.boosted
	}
	if a.cluster.ArticleCount != b.cluster.ArticleCount {
		return a.cluster.ArticleCount > b.cluster.ArticleCount
	}
	return a.cluster.FirstSeenAt.After(b.cluster.FirstSeenAt)
}
