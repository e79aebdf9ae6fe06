package types

import "time"

// TopicAllocation is the per-topic slice of a selection plan: which clusters
// were chosen for the topic and how many words each may spend.
type TopicAllocation struct {
	Topic       string         `json:"topic"`
	ClusterIDs  []string       `json:"cluster_ids"`
	WordBudget  int            `json:"word_budget"`
	PerCluster  map[string]int `json:"per_cluster_words"`
	BackupIDs   []string       `json:"backup_cluster_ids,omitempty"`
	Exhausted   bool           `json:"exhausted,omitempty"`
	ShareOfPlan float64        `json:"share_of_plan"`
}

// SelectionPlan is the planner output for one episode request. TotalWords is
// the sum of all topic budgets and never exceeds the minutes-derived budget.
type SelectionPlan struct {
	UserID      string            `json:"user_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	TotalWords  int               `json:"total_words"`
	Allocations []TopicAllocation `json:"allocations"`
}

// ClusterIDs flattens every selected cluster across allocations, in topic
// order.
func (p *SelectionPlan) ClusterIDs() []string {
	var ids []string
	for _, alloc := range p.Allocations {
		ids = append(ids, alloc.ClusterIDs...)
	}
	return ids
}

// StoryCount returns the number of selected clusters across all topics.
func (p *SelectionPlan) StoryCount() int {
	n := 0
	for _, alloc := range p.Allocations {
		n += len(alloc.ClusterIDs)
	}
	return n
}

// CategoryStats summarizes cluster inventory for one category, used by the
// availability endpoint and by planner diagnostics.
type CategoryStats struct {
	Category      string `json:"category"`
	ClusterCount  int    `json:"cluster_count"`
	ArticleCount  int    `json:"article_count"`
	FreshClusters int    `json:"fresh_clusters"`
	MaxImportance int    `json:"max_importance"`
}
