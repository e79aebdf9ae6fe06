package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"newscast/clustering"
	"newscast/common"
	"newscast/config"
	"newscast/deduplication"
	"newscast/scoring"
	"newscast/types"
)

// Fetcher delivers the raw article batch for one discovery run.
type Fetcher interface {
	Fetch(ctx context.Context) ([]types.Article, error)
}

// Archiver stores raw batches and serves them back for replay. common.Archive
// implements it.
type Archiver interface {
	StoreBatch(ctx context.Context, runID string, articles []types.Article) error
	LoadBatch(ctx context.Context, key string) ([]types.Article, error)
	BatchExists(ctx context.Context, key string) (bool, error)
}

// PipelineStore is the persistence surface of the pipeline itself; the
// assigner brings its own.
type PipelineStore interface {
	InsertArticle(a *types.Article, contentHash, urlHash string) error
	SetArticleEmbedding(articleID string, embedding []float64) error
	UnclusteredArticles(category string) ([]types.Article, error)
	UnembeddedArticles(category string) ([]types.Article, error)
	AllClusters() ([]types.StoryCluster, error)
	SetClusterImportance(clusterID string, score int) error
}

// ArticleAssigner routes one embedded article into a cluster.
type ArticleAssigner interface {
	Assign(ctx context.Context, article *types.Article) (*clustering.Result, error)
}

// Pipeline runs a full discovery pass: fetch, archive, dedup, embed,
// cluster, score.
type Pipeline struct {
	fetcher  Fetcher
	archive  Archiver
	dedup    *deduplication.Deduplicator
	embedder deduplication.EmbeddingsProvider
	assigner ArticleAssigner
	scorer   *scoring.Scorer
	store    PipelineStore
	state    *StateManager
}

// NewPipeline wires a pipeline. archive and embedder may be nil; without an
// embedder every article is stored unclustered for a later pass.
func NewPipeline(fetcher Fetcher, archive Archiver, dedup *deduplication.Deduplicator,
	embedder deduplication.EmbeddingsProvider, assigner ArticleAssigner,
	scorer *scoring.Scorer, store PipelineStore, state *StateManager) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		archive:  archive,
		dedup:    dedup,
		embedder: embedder,
		assigner: assigner,
		scorer:   scorer,
		store:    store,
		state:    state,
	}
}

// Run executes one discovery pass. Only one run may be in flight at a time.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	if !p.state.BeginRun(runID) {
		return fmt.Errorf("discovery run already in progress")
	}

	if err := p.run(ctx, runID); err != nil {
		p.state.SetError(err)
		return err
	}
	p.state.SetState(types.StateReady, "discovery run complete")
	return nil
}

func (p *Pipeline) run(ctx context.Context, runID string) error {
	articles, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Fetched = len(articles) })
	p.state.AddLog(fmt.Sprintf("fetched %d articles", len(articles)))

	if p.archive != nil {
		if err := p.archive.StoreBatch(ctx, runID, articles); err != nil {
			log.Printf("batch archive failed: %v", err)
		}
	}

	return p.process(ctx, articles)
}

// ReplayBatch reprocesses an archived batch through dedup, embedding and
// assignment without fetching. key is the archive object key.
func (p *Pipeline) ReplayBatch(ctx context.Context, key string) error {
	if p.archive == nil {
		return fmt.Errorf("no batch archive configured")
	}
	exists, err := p.archive.BatchExists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check batch %s: %w", key, err)
	}
	if !exists {
		return fmt.Errorf("batch %s not archived", key)
	}
	articles, err := p.archive.LoadBatch(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", key, err)
	}

	runID := uuid.NewString()
	if !p.state.BeginRun(runID) {
		return fmt.Errorf("discovery run already in progress")
	}
	p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Fetched = len(articles) })
	p.state.AddLog(fmt.Sprintf("replaying %d articles from batch %s", len(articles), key))

	if err := p.process(ctx, articles); err != nil {
		p.state.SetError(err)
		return err
	}
	p.state.SetState(types.StateReady, "batch replay complete")
	return nil
}

// process runs the post-fetch stages shared by discovery runs and replays.
func (p *Pipeline) process(ctx context.Context, articles []types.Article) error {
	p.state.SetState(types.StateDeduplicating, "deduplicating batch")
	fresh := p.deduplicate(ctx, articles)
	p.state.AddLog(fmt.Sprintf("%d new articles after deduplication", len(fresh)))

	p.state.SetState(types.StateEmbedding, "computing embeddings")
	// The batch was persisted without embeddings during dedup, so pulling
	// every pending article picks up both this run and anything a failed
	// provider stranded on an earlier one.
	pending, err := p.store.UnembeddedArticles("")
	if err != nil {
		log.Printf("failed to load pending articles, embedding current batch only: %v", err)
		pending = fresh
	} else if stranded := len(pending) - len(fresh); stranded > 0 {
		p.state.AddLog(fmt.Sprintf("retrying %d articles from earlier runs", stranded))
	}
	embedded := p.embed(ctx, pending)

	p.state.SetState(types.StateClustering, "assigning clusters")
	p.assign(ctx, embedded)

	p.state.SetState(types.StateScoring, "rescoring clusters")
	if err := p.rescore(); err != nil {
		return err
	}
	return nil
}

// deduplicate checks and persists each article, returning the new ones.
// Per-article failures are counted, never fatal.
func (p *Pipeline) deduplicate(ctx context.Context, articles []types.Article) []types.Article {
	var fresh []types.Article
	for i := range articles {
		a := &articles[i]
		fp, err := p.dedup.Check(ctx, a)
		if errors.Is(err, common.ErrDuplicateArticle) {
			p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Duplicates++ })
			continue
		}
		if err != nil {
			log.Printf("dedup check failed for %s: %v", a.ID, err)
			p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Failed++ })
			continue
		}
		if err := p.store.InsertArticle(a, fp.ContentHash, fp.URLHash); err != nil {
			if errors.Is(err, common.ErrDuplicateArticle) {
				p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Duplicates++ })
			} else {
				log.Printf("insert failed for %s: %v", a.ID, err)
				p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Failed++ })
			}
			continue
		}
		p.dedup.Record(ctx, fp)
		fresh = append(fresh, *a)
	}
	return fresh
}

// embed computes embeddings over a bounded worker pool of batched provider
// calls. Articles whose batch fails stay unclustered and are retried on the
// next run.
func (p *Pipeline) embed(ctx context.Context, articles []types.Article) []types.Article {
	if p.embedder == nil || len(articles) == 0 {
		if len(articles) > 0 {
			p.state.AddLog("no embeddings provider, articles left unclustered")
		}
		return nil
	}

	type batch struct {
		start int
		items []types.Article
	}
	batches := make(chan batch)
	var mu sync.Mutex
	var embedded []types.Article

	var wg sync.WaitGroup
	for w := 0; w < config.EmbedWorkerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				texts := make([]string, len(b.items))
				for i, a := range b.items {
					texts[i] = a.Title + " " + a.Summary
				}
				vectors, err := p.embedder.EmbedTexts(ctx, texts)
				if err != nil {
					log.Printf("batch starting at %d: %v: %v", b.start, common.ErrEmbeddingUnavailable, err)
					p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Failed += len(b.items) })
					continue
				}
				for i := range b.items {
					a := b.items[i]
					a.Embedding = vectors[i]
					if err := p.store.SetArticleEmbedding(a.ID, a.Embedding); err != nil {
						log.Printf("failed to persist embedding for %s: %v", a.ID, err)
						continue
					}
					mu.Lock()
					embedded = append(embedded, a)
					mu.Unlock()
				}
				p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Embedded += len(b.items) })
			}
		}()
	}

	for start := 0; start < len(articles); start += config.EmbedBatchSize {
		end := start + config.EmbedBatchSize
		if end > len(articles) {
			end = len(articles)
		}
		batches <- batch{start: start, items: articles[start:end]}
	}
	close(batches)
	wg.Wait()

	return embedded
}

// assign routes embedded articles to clusters. Assignment is serialized
// within a category and parallel across categories, so two articles about
// the same story can never race into separate clusters.
func (p *Pipeline) assign(ctx context.Context, embedded []types.Article) {
	byCategory := make(map[string][]types.Article)
	seen := make(map[string]bool, len(embedded))
	for _, a := range embedded {
		byCategory[a.Category] = append(byCategory[a.Category], a)
		seen[a.ID] = true
	}

	// Fold in articles embedded on earlier runs that never got a cluster.
	for category := range byCategory {
		retries, err := p.store.UnclusteredArticles(category)
		if err != nil {
			log.Printf("failed to load unclustered articles for %s: %v", category, err)
			continue
		}
		for _, a := range retries {
			if !seen[a.ID] {
				byCategory[category] = append(byCategory[category], a)
				seen[a.ID] = true
			}
		}
	}

	var wg sync.WaitGroup
	for category, items := range byCategory {
		wg.Add(1)
		go func(category string, items []types.Article) {
			defer wg.Done()
			for i := range items {
				res, err := p.assigner.Assign(ctx, &items[i])
				if err != nil {
					log.Printf("assignment failed for %s: %v", items[i].ID, err)
					p.state.UpdateStats(func(s *types.DiscoveryStats) { s.Failed++ })
					continue
				}
				p.state.UpdateStats(func(s *types.DiscoveryStats) {
					if res.Merged {
						s.Merged++
					} else {
						s.NewClusters++
					}
				})
			}
		}(category, items)
	}
	wg.Wait()
}

// RetryUnclustered re-runs embedding and assignment for articles that missed
// their embedding on earlier runs, without a full discovery pass.
func (p *Pipeline) RetryUnclustered(ctx context.Context, categories []string) (int, error) {
	if p.embedder == nil {
		return 0, fmt.Errorf("no embeddings provider: %w", common.ErrEmbeddingUnavailable)
	}
	recovered := 0
	for _, category := range categories {
		pending, err := p.store.UnembeddedArticles(category)
		if err != nil {
			return recovered, fmt.Errorf("failed to load unembedded articles: %w", err)
		}
		waiting, err := p.store.UnclusteredArticles(category)
		if err != nil {
			return recovered, fmt.Errorf("failed to load unclustered articles: %w", err)
		}
		pending = append(pending, waiting...)

		for i := range pending {
			a := &pending[i]
			if len(a.Embedding) == 0 {
				vectors, err := p.embedder.EmbedTexts(ctx, []string{a.Title + " " + a.Summary})
				if err != nil {
					log.Printf("retry embed failed for %s: %v", a.ID, err)
					continue
				}
				a.Embedding = vectors[0]
				if err := p.store.SetArticleEmbedding(a.ID, a.Embedding); err != nil {
					log.Printf("failed to persist embedding for %s: %v", a.ID, err)
					continue
				}
			}
			if _, err := p.assigner.Assign(ctx, a); err != nil {
				log.Printf("retry assignment failed for %s: %v", a.ID, err)
				continue
			}
			recovered++
		}
	}
	return recovered, nil
}

// rescore recomputes importance for every cluster after the batch settles.
func (p *Pipeline) rescore() error {
	clusters, err := p.store.AllClusters()
	if err != nil {
		return fmt.Errorf("failed to load clusters for rescoring: %w", err)
	}
	updated, err := p.scorer.Rescore(clusters, time.Now().UTC(), p.store.SetClusterImportance)
	if err != nil {
		return fmt.Errorf("rescore failed: %w", err)
	}
	p.state.AddLog(fmt.Sprintf("rescored %d clusters", updated))
	return nil
}
