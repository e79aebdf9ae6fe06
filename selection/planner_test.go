package selection

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"newscast/common"
	"newscast/config"
	"newscast/types"
)

var planNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fakePlanStore struct {
	byTopic  map[string][]types.StoryCluster
	heard    map[string][]string
	articles map[string][]types.Article
	topicErr map[string]error
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{
		byTopic:  map[string][]types.StoryCluster{},
		heard:    map[string][]string{},
		articles: map[string][]types.Article{},
		topicErr: map[string]error{},
	}
}

func (f *fakePlanStore) ClustersByTopic(topic string, firstSeenSince time.Time) ([]types.StoryCluster, error) {
	if err := f.topicErr[topic]; err != nil {
		return nil, err
	}
	var out []types.StoryCluster
	for _, c := range f.byTopic[topic] {
		if !c.FirstSeenAt.Before(firstSeenSince) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakePlanStore) HeardClusterIDs(userID string) ([]string, error) {
	return f.heard[userID], nil
}

func (f *fakePlanStore) ArticlesByCluster(clusterID string) ([]types.Article, error) {
	return f.articles[clusterID], nil
}

func planCluster(id, category string, importance, articleCount int, age time.Duration) types.StoryCluster {
	return types.StoryCluster{
		ID:            id,
		Title:         "Cluster " + id,
		Summary:       "Summary " + id,
		Category:      category,
		ArticleCount:  articleCount,
		Importance:    importance,
		FirstSeenAt:   planNow.Add(-age),
		LastUpdatedAt: planNow.Add(-age),
	}
}

func testPlanner(store *fakePlanStore) *Planner {
	p := NewPlanner(store)
	p.now = func() time.Time { return planNow }
	return p
}

func TestPlanProportionalBudgets(t *testing.T) {
	store := newFakePlanStore()
	for i := 0; i < 3; i++ {
		store.byTopic["Technology"] = append(store.byTopic["Technology"],
			planCluster(fmt.Sprintf("t%d", i), "Technology", 80-i, 2, time.Hour))
	}
	store.byTopic["Sports"] = []types.StoryCluster{
		planCluster("s0", "Sports", 75, 1, time.Hour),
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Technology", "Sports"},
		EpisodeMinutes: 10,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	totalWords := 10 * config.WordsPerMinute
	if plan.TotalWords > totalWords {
		t.Errorf("TotalWords = %d, exceeds budget %d", plan.TotalWords, totalWords)
	}
	if len(plan.Allocations) != 2 {
		t.Fatalf("allocations = %d, want 2", len(plan.Allocations))
	}

	var tech, sports types.TopicAllocation
	for _, a := range plan.Allocations {
		switch a.Topic {
		case "Technology":
			tech = a
		case "Sports":
			sports = a
		}
	}
	if len(tech.ClusterIDs) != 3 || len(sports.ClusterIDs) != 1 {
		t.Fatalf("selection = %d tech, %d sports; want 3, 1", len(tech.ClusterIDs), len(sports.ClusterIDs))
	}

	// 3 of 4 selected clusters are tech: budget shares track the counts.
	if tech.WordBudget != 900 || sports.WordBudget != 300 {
		t.Errorf("budgets = %d, %d; want 900, 300", tech.WordBudget, sports.WordBudget)
	}
	for _, words := range tech.PerCluster {
		if words != 300 {
			t.Errorf("per-cluster words = %d, want 300", words)
		}
	}
}

func TestPlanNoContentAvailable(t *testing.T) {
	store := newFakePlanStore()
	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Technology", "Sports"},
		EpisodeMinutes: 5,
	}
	_, err := testPlanner(store).Plan(prefs)
	if !errors.Is(err, common.ErrNoContentAvailable) {
		t.Fatalf("expected ErrNoContentAvailable, got %v", err)
	}
}

func TestPlanEmptyTopicDroppedNotPadded(t *testing.T) {
	store := newFakePlanStore()
	store.byTopic["Health"] = []types.StoryCluster{
		planCluster("h0", "Health", 70, 1, time.Hour),
	}
	store.topicErr["Business"] = errors.New("query timeout")

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Health", "Business", "Sports"},
		EpisodeMinutes: 5,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("one bad topic should not fail the plan: %v", err)
	}
	if len(plan.Allocations) != 1 || plan.Allocations[0].Topic != "Health" {
		t.Fatalf("allocations = %+v, want Health only", plan.Allocations)
	}
}

func TestPlanExclusions(t *testing.T) {
	store := newFakePlanStore()
	store.byTopic["Technology"] = []types.StoryCluster{
		planCluster("keep", "Technology", 80, 1, time.Hour),
		planCluster("heard", "Technology", 90, 1, time.Hour),
		planCluster("excluded", "Technology", 95, 1, time.Hour),
	}
	store.heard["u1"] = []string{"heard"}

	prefs := types.UserPreferences{
		UserID:            "u1",
		Topics:            []string{"Technology"},
		EpisodeMinutes:    5,
		ExcludeClusterIDs: []string{"excluded"},
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	ids := plan.ClusterIDs()
	if len(ids) != 1 || ids[0] != "keep" {
		t.Fatalf("selected = %v, want [keep]", ids)
	}
}

func TestPlanImportanceFloorAndFreshness(t *testing.T) {
	store := newFakePlanStore()
	store.byTopic["Sports"] = []types.StoryCluster{
		planCluster("weak", "Sports", 30, 1, time.Hour),
		planCluster("stale", "Sports", 90, 3, 6*24*time.Hour),
		planCluster("good", "Sports", 60, 1, time.Hour),
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Sports"},
		EpisodeMinutes: 5,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	ids := plan.ClusterIDs()
	if len(ids) != 1 || ids[0] != "good" {
		t.Fatalf("selected = %v, want [good]", ids)
	}
}

func TestCoverageBoostOutranksSingleSource(t *testing.T) {
	store := newFakePlanStore()
	store.byTopic["World News"] = []types.StoryCluster{
		planCluster("single", "World News", 70, 1, 2*time.Hour),
		planCluster("corroborated", "World News", 70, 6, 2*time.Hour),
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"World News"},
		EpisodeMinutes: 5,
		MaxStories:     1,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	ids := plan.ClusterIDs()
	if len(ids) != 1 || ids[0] != "corroborated" {
		t.Fatalf("selected = %v, want [corroborated]", ids)
	}
}

func TestCategoryDecayRates(t *testing.T) {
	// Same importance and age: the slow-decay science cluster must outrank
	// the fast-decay world-news cluster.
	store := newFakePlanStore()
	store.byTopic["Mixed"] = []types.StoryCluster{
		planCluster("wire", "World News", 80, 1, 48*time.Hour),
		planCluster("science", "Science & Environment", 80, 1, 48*time.Hour),
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Mixed"},
		EpisodeMinutes: 5,
		MaxStories:     1,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	ids := plan.ClusterIDs()
	if len(ids) != 1 || ids[0] != "science" {
		t.Fatalf("selected = %v, want [science]", ids)
	}
}

func TestGuaranteedMinimumPerTopic(t *testing.T) {
	// Technology dominates on score, but Sports still gets its one slot.
	store := newFakePlanStore()
	for i := 0; i < 10; i++ {
		store.byTopic["Technology"] = append(store.byTopic["Technology"],
			planCluster(fmt.Sprintf("t%d", i), "Technology", 95, 5, time.Hour))
	}
	store.byTopic["Sports"] = []types.StoryCluster{
		planCluster("s0", "Sports", 41, 1, 30*time.Hour),
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Technology", "Sports"},
		EpisodeMinutes: 5,
		MaxStories:     4,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	found := false
	for _, a := range plan.Allocations {
		if a.Topic == "Sports" && len(a.ClusterIDs) == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("Sports lost its guaranteed slot: %+v", plan.Allocations)
	}
	if plan.StoryCount() != 4 {
		t.Errorf("StoryCount = %d, want 4", plan.StoryCount())
	}
}

func TestBackupsRecorded(t *testing.T) {
	store := newFakePlanStore()
	for i := 0; i < 5; i++ {
		store.byTopic["Business"] = append(store.byTopic["Business"],
			planCluster(fmt.Sprintf("b%d", i), "Business", 80-i, 1, time.Hour))
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Business"},
		EpisodeMinutes: 5,
		MaxStories:     2,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	alloc := plan.Allocations[0]
	if len(alloc.BackupIDs) != config.BackupsPerTopic {
		t.Fatalf("backups = %v, want %d runner-ups", alloc.BackupIDs, config.BackupsPerTopic)
	}
	if alloc.Exhausted {
		t.Errorf("topic with runner-ups marked exhausted")
	}
}

func TestToleranceBounds(t *testing.T) {
	low, high := ToleranceBounds(300)
	if low != 255 || high != 315 {
		t.Errorf("ToleranceBounds(300) = %d, %d; want 255, 315", low, high)
	}
}

func TestClusterBackupsNewestFirst(t *testing.T) {
	store := newFakePlanStore()
	store.articles["c1"] = []types.Article{
		{ID: "old", CreatedAt: planNow.Add(-3 * time.Hour)},
		{ID: "new", CreatedAt: planNow.Add(-time.Hour)},
	}
	got, err := testPlanner(store).ClusterBackups("c1")
	if err != nil {
		t.Fatalf("ClusterBackups failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" {
		t.Fatalf("order = %+v, want newest first", got)
	}
}

func TestPlanSingleTopicFiveMinutes(t *testing.T) {
	store := newFakePlanStore()
	for i := 0; i < 5; i++ {
		store.byTopic["World News"] = append(store.byTopic["World News"],
			planCluster(fmt.Sprintf("w%d", i), "World News", 90-i, 2, time.Hour))
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"World News"},
		EpisodeMinutes: 5,
	}
	plan, err := testPlanner(store).Plan(prefs)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	if len(plan.Allocations) != 1 {
		t.Fatalf("allocations = %d, want 1", len(plan.Allocations))
	}
	alloc := plan.Allocations[0]
	if len(alloc.ClusterIDs) != 5 {
		t.Fatalf("selected = %d clusters, want all 5", len(alloc.ClusterIDs))
	}
	// 5 minutes at 120 wpm is 600 words across 5 clusters.
	if alloc.WordBudget != 600 {
		t.Errorf("WordBudget = %d, want 600", alloc.WordBudget)
	}
	for id, words := range alloc.PerCluster {
		if words != 120 {
			t.Errorf("per-cluster words for %s = %d, want 120", id, words)
		}
	}
	if plan.TotalWords != 600 {
		t.Errorf("TotalWords = %d, want 600", plan.TotalWords)
	}
}
