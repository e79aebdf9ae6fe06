package main

import (
	"context"
	"log"
	"net/http"

	"newscast/api"
	"newscast/clustering"
	"newscast/common"
	"newscast/config"
	"newscast/deduplication"
	"newscast/events"
	"newscast/ingestion"
	"newscast/rssfeeds"
	"newscast/scoring"
	"newscast/selection"
	"newscast/similarity"
	"newscast/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Failed to open database %s: %v", cfg.DatabasePath, err)
	}
	defer store.Close()
	log.Printf("✅ Database ready at %s", cfg.DatabasePath)

	index, err := rebuildIndex(store)
	if err != nil {
		log.Fatalf("❌ Failed to rebuild similarity index: %v", err)
	}

	dedup := initDeduplicator(cfg, store)
	embedder := deduplication.NewEmbeddingsProvider(cfg.CohereAPIKey, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	log.Printf("✅ Embeddings provider: %s", embedder.ModelName())

	scorer := scoring.NewScorer(nil)

	var judge clustering.SameEventJudge = clustering.LexicalJudge{}
	if cfg.CohereAPIKey != "" {
		judge = clustering.NewCohereJudge(cfg.CohereAPIKey, "")
	}

	assigner := clustering.NewAssigner(store, index, scorer, judge, clustering.Config{
		MergeThreshold: config.SimilarityThreshold,
	})

	state := ingestion.NewStateManager(initPublisher(cfg))

	var archiver ingestion.Archiver
	if archive := initArchive(cfg); archive != nil {
		archiver = archive
	}

	fetcher := &rssfeeds.MultiFetcher{MaxPerFeed: cfg.FeedMaxPerFeed}
	pipeline := ingestion.NewPipeline(fetcher, archiver, dedup, embedder, assigner, scorer, store, state)

	// Pick up articles a crashed or degraded earlier run left unembedded or
	// unassigned.
	if recovered, err := pipeline.RetryUnclustered(context.Background(), rssfeeds.PresetCategories()); err != nil {
		log.Printf("⚠️ Startup recovery skipped: %v", err)
	} else if recovered > 0 {
		log.Printf("✅ Recovered %d articles left over from earlier runs", recovered)
	}

	planner := selection.NewPlanner(store)

	r := api.NewRouter(api.Deps{
		Pipeline: pipeline,
		State:    state,
		Planner:  planner,
		Store:    store,
		Dedup:    dedup,
	})

	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s", addr)
	log.Println("API endpoints available:")
	log.Println("  GET  /healthz")
	log.Println("  POST /api/discover")
	log.Println("  POST /api/batches/replay")
	log.Println("  GET  /api/status")
	log.Println("  POST /api/dedup/check")
	log.Println("  POST /api/plan")
	log.Println("  GET  /api/categories")
	log.Println("  GET  /api/clusters")
	log.Println("  GET  /api/clusters/:id/backups")
	log.Println("  POST /api/episodes")

	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// rebuildIndex loads every persisted centroid so nearest-cluster lookups
// survive restarts.
func rebuildIndex(store *storage.Store) (*similarity.Index, error) {
	index := similarity.NewIndex()
	clusters, err := store.AllClusters()
	if err != nil {
		return nil, err
	}
	loaded := 0
	for _, c := range clusters {
		if len(c.Centroid) == 0 {
			continue
		}
		if err := index.Upsert(similarity.Entry{
			ClusterID:   c.ID,
			Category:    c.Category,
			Centroid:    c.Centroid,
			Importance:  c.Importance,
			LastUpdated: c.LastUpdatedAt,
		}); err != nil {
			log.Printf("⚠️ Skipping cluster %s in index rebuild: %v", c.ID, err)
			continue
		}
		loaded++
	}
	log.Printf("✅ Similarity index rebuilt with %d clusters", loaded)
	return index, nil
}

func initDeduplicator(cfg *config.Config, store *storage.Store) *deduplication.Deduplicator {
	var bloom deduplication.BloomFilter
	if cfg.RedisAddr != "" {
		rb, err := deduplication.NewRedisBloom(deduplication.BloomConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			log.Printf("⚠️ Redis bloom filter unavailable, using store only: %v", err)
		} else {
			log.Println("✅ Redis bloom filter connected")
			bloom = rb
		}
	}
	return deduplication.NewDeduplicator(store, bloom)
}

func initPublisher(cfg *config.Config) events.Publisher {
	if cfg.KafkaBrokers == "" {
		return events.LogPublisher{}
	}
	pub, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Printf("⚠️ Kafka unavailable, publishing events to log: %v", err)
		return events.LogPublisher{}
	}
	log.Printf("✅ Kafka producer connected to %s (topic %s)", cfg.KafkaBrokers, cfg.KafkaTopic)
	return pub
}

func initArchive(cfg *config.Config) *common.Archive {
	if cfg.S3Bucket == "" {
		return nil
	}
	archive, err := common.NewArchive(context.Background(), cfg.S3Bucket, cfg.S3Region)
	if err != nil {
		log.Printf("⚠️ S3 archive unavailable: %v", err)
		return nil
	}
	log.Printf("✅ S3 archive enabled (bucket %s)", cfg.S3Bucket)
	return archive
}
