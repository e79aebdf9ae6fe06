package clustering

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"newscast/config"
	"newscast/similarity"
	"newscast/types"
)

// ClusterStore is the persistence surface the assigner needs. The storage
// package implements it.
type ClusterStore interface {
	GetCluster(clusterID string) (*types.StoryCluster, error)
	CreateCluster(c *types.StoryCluster) error
	UpdateClusterOnMerge(clusterID string, centroid []float64, updatedAt time.Time) error
	SetClusterImportance(clusterID string, score int) error
	SetClusterCanonical(clusterID, title, summary string) error
	AssignArticle(articleID, clusterID string) error
}

// ImportanceScorer recomputes a cluster's score after membership changes.
type ImportanceScorer interface {
	Score(cluster *types.StoryCluster, now time.Time) int
}

// Config tunes the assigner.
type Config struct {
	// MergeThreshold is the minimum centroid similarity for a merge.
	// Defaults to config.SimilarityThreshold.
	MergeThreshold float64
}

// Assigner routes embedded articles into story clusters: merge into the
// nearest same-category cluster above the threshold, otherwise seed a new
// one. Callers must serialize Assign calls per category; different
// categories may run concurrently.
type Assigner struct {
	store     ClusterStore
	index     *similarity.Index
	scorer    ImportanceScorer
	judge     SameEventJudge
	threshold float64
	now       func() time.Time
}

// Result describes what Assign did with one article.
type Result struct {
	ClusterID  string
	Merged     bool
	Similarity float64
}

// NewAssigner wires an assigner. judge may be nil to disable canonical
// replacement.
func NewAssigner(store ClusterStore, index *similarity.Index, scorer ImportanceScorer, judge SameEventJudge, cfg Config) *Assigner {
	threshold := cfg.MergeThreshold
	if threshold == 0 {
		threshold = config.SimilarityThreshold
	}
	return &Assigner{
		store:     store,
		index:     index,
		scorer:    scorer,
		judge:     judge,
		threshold: threshold,
		now:       time.Now,
	}
}

// Assign places one embedded article. The article's category is a hard
// boundary: an identical story in another category never merges.
func (a *Assigner) Assign(ctx context.Context, article *types.Article) (*Result, error) {
	if len(article.Embedding) == 0 {
		return nil, fmt.Errorf("article %s has no embedding", article.ID)
	}

	match := a.index.Nearest(article.Category, article.Embedding)
	if match != nil && match.Similarity >= a.threshold {
		if err := a.merge(ctx, match.ClusterID, article); err != nil {
			return nil, err
		}
		return &Result{ClusterID: match.ClusterID, Merged: true, Similarity: match.Similarity}, nil
	}

	id, err := a.create(article)
	if err != nil {
		return nil, err
	}
	return &Result{ClusterID: id}, nil
}

func (a *Assigner) merge(ctx context.Context, clusterID string, article *types.Article) error {
	cluster, err := a.store.GetCluster(clusterID)
	if err != nil {
		return fmt.Errorf("failed to load cluster %s: %w", clusterID, err)
	}
	if cluster == nil {
		return fmt.Errorf("cluster %s vanished during assignment", clusterID)
	}

	now := a.now().UTC()
	centroid := mergedCentroid(cluster.Centroid, article.Embedding, cluster.ArticleCount)

	if err := a.store.UpdateClusterOnMerge(clusterID, centroid, now); err != nil {
		return err
	}
	if err := a.store.AssignArticle(article.ID, clusterID); err != nil {
		return err
	}

	cluster.Centroid = centroid
	cluster.ArticleCount++
	cluster.LastUpdatedAt = now

	a.maybeReplaceCanonical(ctx, cluster, article)

	score := a.scorer.Score(cluster, now)
	if err := a.store.SetClusterImportance(clusterID, score); err != nil {
		return err
	}
	cluster.Importance = score

	return a.index.Upsert(similarity.Entry{
		ClusterID:   clusterID,
		Category:    cluster.Category,
		Centroid:    centroid,
		Importance:  score,
		LastUpdated: now,
	})
}

// maybeReplaceCanonical swaps the cluster's representative title and summary
// for the new article's when the judge confirms the same event and the new
// article is more complete. Judge failure keeps the existing canonical.
func (a *Assigner) maybeReplaceCanonical(ctx context.Context, cluster *types.StoryCluster, article *types.Article) {
	if a.judge == nil {
		return
	}
	if len(article.Summary) <= len(cluster.Summary) {
		return
	}
	same, err := a.judge.SameEvent(ctx, cluster, article)
	if err != nil {
		log.Printf("same-event judge failed for cluster %s: %v", cluster.ID, err)
		return
	}
	if !same {
		return
	}
	if err := a.store.SetClusterCanonical(cluster.ID, article.Title, article.Summary); err != nil {
		log.Printf("failed to replace canonical for cluster %s: %v", cluster.ID, err)
		return
	}
	cluster.Title = article.Title
	cluster.Summary = article.Summary
}

func (a *Assigner) create(article *types.Article) (string, error) {
	now := a.now().UTC()
	cluster := &types.StoryCluster{
		ID:            uuid.NewString(),
		Title:         article.Title,
		Summary:       article.Summary,
		Category:      article.Category,
		Subcategory:   article.Subcategory,
		Centroid:      append([]float64(nil), article.Embedding...),
		ArticleCount:  1,
		FirstSeenAt:   now,
		LastUpdatedAt: now,
	}
	cluster.Importance = a.scorer.Score(cluster, now)

	if err := a.store.CreateCluster(cluster); err != nil {
		return "", err
	}
	if err := a.store.AssignArticle(article.ID, cluster.ID); err != nil {
		return "", err
	}
	err := a.index.Upsert(similarity.Entry{
		ClusterID:   cluster.ID,
		Category:    cluster.Category,
		Centroid:    cluster.Centroid,
		Importance:  cluster.Importance,
		LastUpdated: now,
	})
	return cluster.ID, err
}

// mergedCentroid folds one embedding into a running mean of count vectors.
func mergedCentroid(centroid, embedding []float64, count int) []float64 {
	out := make([]float64, len(centroid))
	n := float64(count)
	for i := range centroid {
		v := 0.0
		if i < len(embedding) {
			v = embedding[i]
		}
		out[i] = (centroid[i]*n + v) / (n + 1)
	}
	return out
}
