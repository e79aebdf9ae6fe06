package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"newscast/clustering"
	"newscast/deduplication"
	"newscast/ingestion"
	"newscast/scoring"
	"newscast/selection"
	"newscast/similarity"
	"newscast/storage"
	"newscast/types"
)

type stubFetcher struct{ articles []types.Article }

func (s *stubFetcher) Fetch(context.Context) ([]types.Article, error) {
	return s.articles, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *storage.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := storage.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	scorer := scoring.NewScorer(nil)
	index := similarity.NewIndex()
	assigner := clustering.NewAssigner(store, index, scorer, nil, clustering.Config{})
	dedup := deduplication.NewDeduplicator(store, nil)
	state := ingestion.NewStateManager(nil)
	pipeline := ingestion.NewPipeline(&stubFetcher{}, nil, dedup, nil, assigner, scorer, store, state)

	deps := Deps{
		Pipeline: pipeline,
		State:    state,
		Planner:  selection.NewPlanner(store),
		Store:    store,
		Dedup:    dedup,
	}
	return NewRouter(deps), store
}

func seedCluster(t *testing.T, store *storage.Store, id, category string, importance int) {
	t.Helper()
	now := time.Now().UTC()
	err := store.CreateCluster(&types.StoryCluster{
		ID:            id,
		Title:         "Cluster " + id,
		Summary:       "Summary " + id,
		Category:      category,
		Centroid:      []float64{1, 0},
		ArticleCount:  2,
		Importance:    importance,
		FirstSeenAt:   now.Add(-2 * time.Hour),
		LastUpdatedAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("seed cluster failed: %v", err)
	}
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200", w.Code)
	}
}

func TestStatusStartsIdle(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var status ingestion.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.State != types.StateIdle {
		t.Errorf("state = %s, want idle", status.State)
	}
}

func TestPlanEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	// No content yet.
	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Technology"},
		EpisodeMinutes: 5,
	}
	if w := doJSON(t, router, http.MethodPost, "/api/plan", prefs); w.Code != http.StatusNotFound {
		t.Fatalf("empty inventory plan = %d, want 404", w.Code)
	}

	seedCluster(t, store, "c1", "Technology", 70)
	w := doJSON(t, router, http.MethodPost, "/api/plan", prefs)
	if w.Code != http.StatusOK {
		t.Fatalf("plan = %d, want 200: %s", w.Code, w.Body.String())
	}
	var plan types.SelectionPlan
	if err := json.Unmarshal(w.Body.Bytes(), &plan); err != nil {
		t.Fatalf("failed to decode plan: %v", err)
	}
	if plan.StoryCount() != 1 || plan.TotalWords == 0 {
		t.Errorf("plan = %+v", plan)
	}

	// Malformed body.
	req := httptest.NewRequest(http.MethodPost, "/api/plan", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body = %d, want 400", rec.Code)
	}
}

func TestEpisodeRecordingExcludesFromNextPlan(t *testing.T) {
	router, store := newTestRouter(t)
	seedCluster(t, store, "c1", "Sports", 70)

	record := RecordEpisodeRequest{
		UserID:     "u1",
		ClusterIDs: []string{"c1"},
	}
	if w := doJSON(t, router, http.MethodPost, "/api/episodes", record); w.Code != http.StatusOK {
		t.Fatalf("record episode = %d, want 200", w.Code)
	}

	prefs := types.UserPreferences{
		UserID:         "u1",
		Topics:         []string{"Sports"},
		EpisodeMinutes: 5,
	}
	if w := doJSON(t, router, http.MethodPost, "/api/plan", prefs); w.Code != http.StatusNotFound {
		t.Fatalf("heard cluster should be excluded: %d", w.Code)
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	seedCluster(t, store, "c1", "Business", 60)
	seedCluster(t, store, "c2", "Business", 80)

	w := doJSON(t, router, http.MethodGet, "/api/categories", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("categories = %d, want 200", w.Code)
	}
	var resp struct {
		Categories []types.CategoryStats `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Categories) != 1 {
		t.Fatalf("categories = %+v, want one entry", resp.Categories)
	}
	got := resp.Categories[0]
	if got.Category != "Business" || got.ClusterCount != 2 || got.MaxImportance != 80 {
		t.Errorf("stats = %+v", got)
	}
}

func TestDiscoverAccepted(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/discover", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("discover = %d, want 202", w.Code)
	}
}

func TestDedupCheckEndpoint(t *testing.T) {
	router, store := newTestRouter(t)

	article := &types.Article{
		ID:         "a1",
		SourceName: "Wire",
		Title:      "Court ruling on data law",
		URL:        "https://example.com/ruling",
		Summary:    "The court ruled on the data law.",
		Category:   "Politics & Government",
		ClusterID:  "c9",
		CreatedAt:  time.Now().UTC(),
	}
	contentHash, urlHash, err := deduplication.Fingerprint(article)
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if err := store.InsertArticle(article, contentHash, urlHash); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	check := DedupCheckRequest{
		SourceName: "Wire",
		Title:      "Court ruling on data law",
		URL:        "https://example.com/ruling",
		Summary:    "The court ruled on the data law.",
	}
	w := doJSON(t, router, http.MethodPost, "/api/dedup/check", check)
	if w.Code != http.StatusOK {
		t.Fatalf("dedup check = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Duplicate         bool   `json:"duplicate"`
		ExistingArticleID string `json:"existing_article_id"`
		ClusterID         string `json:"cluster_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Duplicate || resp.ExistingArticleID != "a1" || resp.ClusterID != "c9" {
		t.Errorf("response = %+v, want duplicate pointing at a1/c9", resp)
	}

	// A new article is not flagged.
	check.Title = "Completely different story"
	check.URL = "https://example.com/other"
	check.Summary = "Another summary."
	w = doJSON(t, router, http.MethodPost, "/api/dedup/check", check)
	if w.Code != http.StatusOK {
		t.Fatalf("dedup check = %d, want 200", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Duplicate {
		t.Error("fresh article flagged as duplicate")
	}

	// Unfingerprintable input is a client error.
	w = doJSON(t, router, http.MethodPost, "/api/dedup/check", DedupCheckRequest{Summary: "body only"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("unidentifiable article = %d, want 400", w.Code)
	}
}

func TestClustersByCategoryEndpoint(t *testing.T) {
	router, store := newTestRouter(t)
	seedCluster(t, store, "c1", "Science & Environment", 60)
	seedCluster(t, store, "c2", "Science & Environment", 85)
	seedCluster(t, store, "c3", "Sports", 70)

	w := doJSON(t, router, http.MethodGet, "/api/clusters?category=Science+%26+Environment", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clusters = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Clusters []types.StoryCluster `json:"clusters"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Clusters) != 2 {
		t.Fatalf("clusters = %d, want 2", len(resp.Clusters))
	}
	if resp.Clusters[0].ID != "c2" {
		t.Errorf("order = %s first, want c2 (highest importance)", resp.Clusters[0].ID)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/clusters", nil); w.Code != http.StatusBadRequest {
		t.Errorf("missing category = %d, want 400", w.Code)
	}
}
