package similarity

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// IVFIndex is an inverted-file variant of the brute-force index: centroids
// are bucketed under a small set of coarse cells and queries only scan the
// nearest cells. Built as a snapshot; rebuild after assignment batches.
type IVFIndex struct {
	cells   []ivfCell
	nprobe  int
	entries int
}

type ivfCell struct {
	center  []float64
	entries []*Entry
}

const (
	defaultNList  = 8
	defaultNProbe = 3
	kmeansRounds  = 10
)

// BuildIVF builds an inverted-file index over one category of the reference
// index. nlist <= 0 and nprobe <= 0 select defaults; nprobe is clamped to
// nlist.
func BuildIVF(ix *Index, category string, nlist, nprobe int) *IVFIndex {
	if nlist <= 0 {
		nlist = defaultNList
	}
	if nprobe <= 0 {
		nprobe = defaultNProbe
	}

	ix.mu.RLock()
	var entries []*Entry
	for _, e := range ix.byCategory[category] {
		entries = append(entries, e)
	}
	ix.mu.RUnlock()

	if len(entries) == 0 {
		return &IVFIndex{nprobe: nprobe}
	}
	if nlist > len(entries) {
		nlist = len(entries)
	}
	if nprobe > nlist {
		nprobe = nlist
	}

	centers := coarseCenters(entries, nlist)
	cells := make([]ivfCell, len(centers))
	for i, c := range centers {
		cells[i].center = c
	}
	for _, e := range entries {
		best, bestSim := 0, math.Inf(-1)
		for i, cell := range cells {
			if sim := Cosine(e.Centroid, cell.center); sim > bestSim {
				best, bestSim = i, sim
			}
		}
		cells[best].entries = append(cells[best].entries, e)
	}
	return &IVFIndex{cells: cells, nprobe: nprobe, entries: len(entries)}
}

// Size returns the number of indexed entries.
func (iv *IVFIndex) Size() int { return iv.entries }

// Nearest scans the nprobe closest cells and returns the best match, or nil
// when the index is empty.
func (iv *IVFIndex) Nearest(embedding []float64) *Match {
	if iv.entries == 0 {
		return nil
	}

	order := make([]int, len(iv.cells))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return Cosine(embedding, iv.cells[order[a]].center) > Cosine(embedding, iv.cells[order[b]].center)
	})

	var best *Entry
	bestSim := math.Inf(-1)
	probed := 0
	for _, ci := range order {
		if probed >= iv.nprobe && best != nil {
			break
		}
		probed++
		for _, e := range iv.cells[ci].entries {
			if sim := Cosine(embedding, e.Centroid); sim > bestSim {
				best, bestSim = e, sim
			}
		}
	}
	if best == nil {
		return nil
	}
	return &Match{ClusterID: best.ClusterID, Similarity: bestSim}
}

// coarseCenters runs a few rounds of k-means with k-means++ style seeding
// over the entry centroids.
func coarseCenters(entries []*Entry, k int) [][]float64 {
	dim := len(entries[0].Centroid)
	rng := rand.New(rand.NewSource(1))

	data := mat.NewDense(len(entries), dim, nil)
	for i, e := range entries {
		data.SetRow(i, e.Centroid)
	}

	// Seed: first center random, then farthest-point style picks.
	centers := mat.NewDense(k, dim, nil)
	centers.SetRow(0, entries[rng.Intn(len(entries))].Centroid)
	for c := 1; c < k; c++ {
		worst, worstSim := 0, math.Inf(1)
		for i := range entries {
			bestSim := math.Inf(-1)
			for j := 0; j < c; j++ {
				if sim := Cosine(mat.Row(nil, i, data), mat.Row(nil, j, centers)); sim > bestSim {
					bestSim = sim
				}
			}
			if bestSim < worstSim {
				worst, worstSim = i, bestSim
			}
		}
		centers.SetRow(c, entries[worst].Centroid)
	}

	assignments := make([]int, len(entries))
	for round := 0; round < kmeansRounds; round++ {
		changed := false
		for i := range entries {
			best, bestSim := 0, math.Inf(-1)
			for j := 0; j < k; j++ {
				if sim := Cosine(mat.Row(nil, i, data), mat.Row(nil, j, centers)); sim > bestSim {
					best, bestSim = j, sim
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed && round > 0 {
			break
		}
		for j := 0; j < k; j++ {
			sum := make([]float64, dim)
			count := 0
			for i := range entries {
				if assignments[i] != j {
					continue
				}
				row := mat.Row(nil, i, data)
				for d := range sum {
					sum[d] += row[d]
				}
				count++
			}
			if count == 0 {
				continue
			}
			for d := range sum {
				sum[d] /= float64(count)
			}
			centers.SetRow(j, sum)
		}
	}

	out := make([][]float64, k)
	for j := 0; j < k; j++ {
		out[j] = mat.Row(nil, j, centers)
	}
	return out
}
