package similarity

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"newscast/config"
)

// Entry is one cluster centroid registered with the index, plus the metadata
// used to break near-ties between equally similar candidates.
type Entry struct {
	ClusterID   string
	Category    string
	Centroid    []float64
	Importance  int
	LastUpdated time.Time
}

// Match is a query result: the best cluster and its cosine similarity.
type Match struct {
	ClusterID  string
	Similarity float64
}

// Index is an in-memory cosine similarity index partitioned by category.
// Queries never cross category boundaries. Safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	byCategory map[string]map[string]*Entry
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byCategory: make(map[string]map[string]*Entry)}
}

// Cosine computes cosine similarity between two vectors. A zero vector or a
// dimensionality mismatch yields similarity 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

// Upsert registers or replaces a cluster centroid.
func (ix *Index) Upsert(e Entry) error {
	if e.ClusterID == "" || e.Category == "" {
		return fmt.Errorf("entry needs cluster ID and category")
	}
	if len(e.Centroid) == 0 {
		return fmt.Errorf("entry %s has empty centroid", e.ClusterID)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	cat := ix.byCategory[e.Category]
	if cat == nil {
		cat = make(map[string]*Entry)
		ix.byCategory[e.Category] = cat
	}
	copied := e
	copied.Centroid = append([]float64(nil), e.Centroid...)
	cat[e.ClusterID] = &copied
	return nil
}

// Remove drops a cluster from the index. Unknown IDs are a no-op.
func (ix *Index) Remove(category, clusterID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if cat := ix.byCategory[category]; cat != nil {
		delete(cat, clusterID)
	}
}

// Size returns the number of indexed clusters in a category.
func (ix *Index) Size(category string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.byCategory[category])
}

// Nearest returns the most similar cluster to the embedding within one
// category, or nil when the category holds no clusters. Candidates whose
// similarity is within ScoreEpsilon of the best are ranked by importance,
// then by last update time.
func (ix *Index) Nearest(category string, embedding []float64) *Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	cat := ix.byCategory[category]
	if len(cat) == 0 {
		return nil
	}

	var best *Entry
	bestSim := math.Inf(-1)
	for _, e := range cat {
		sim := Cosine(embedding, e.Centroid)
		if best == nil || sim > bestSim+config.ScoreEpsilon {
			best, bestSim = e, sim
			continue
		}
		if math.Abs(sim-bestSim) <= config.ScoreEpsilon && preferred(e, best) {
			best = e
			if sim > bestSim {
				bestSim = sim
			}
		}
	}
	return &Match{ClusterID: best.ClusterID, Similarity: bestSim}
}

// preferred reports whether a should win a near-tie against b.
func preferred(a, b *Entry) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	return a.LastUpdated.After(b.LastUpdated)
}

// Query returns up to topK clusters in a category ranked by descending
// cosine similarity. Near-ties rank the more recently updated cluster first.
func (ix *Index) Query(category string, embedding []float64, topK int) []Match {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	cat := ix.byCategory[category]
	if len(cat) == 0 || topK <= 0 {
		return nil
	}

	type scored struct {
		entry *Entry
		sim   float64
	}
	candidates := make([]scored, 0, len(cat))
	for _, e := range cat {
		candidates = append(candidates, scored{entry: e, sim: Cosine(embedding, e.Centroid)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if math.Abs(candidates[i].sim-candidates[j].sim) <= config.ScoreEpsilon {
			return candidates[i].entry.LastUpdated.After(candidates[j].entry.LastUpdated)
		}
		return candidates[i].sim > candidates[j].sim
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	matches := make([]Match, topK)
	for i := 0; i < topK; i++ {
		matches[i] = Match{ClusterID: candidates[i].entry.ClusterID, Similarity: candidates[i].sim}
	}
	return matches
}
