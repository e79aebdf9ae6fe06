package similarity

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"
)

func entry(id, category string, centroid []float64) Entry {
	return Entry{
		ClusterID:   id,
		Category:    category,
		Centroid:    centroid,
		Importance:  50,
		LastUpdated: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 0}, []float64{1, 0}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
		{"dim mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0},
	}
	for _, tc := range cases {
		got := Cosine(tc.a, tc.b)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("%s: Cosine = %f, want %f", tc.name, got, tc.want)
		}
	}
}

func TestNearestStaysInCategory(t *testing.T) {
	ix := NewIndex()
	// Identical centroid in another category must never win.
	if err := ix.Upsert(entry("tech-1", "Technology", []float64{1, 0})); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := ix.Upsert(entry("sports-1", "Sports", []float64{0.99, 0.01})); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	m := ix.Nearest("Sports", []float64{1, 0})
	if m == nil || m.ClusterID != "sports-1" {
		t.Fatalf("Nearest crossed categories: %+v", m)
	}

	if got := ix.Nearest("Health", []float64{1, 0}); got != nil {
		t.Errorf("empty category should return nil, got %+v", got)
	}
}

func TestNearestTieBreak(t *testing.T) {
	ix := NewIndex()
	older := entry("older", "Technology", []float64{1, 0})
	older.Importance = 70
	older.LastUpdated = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	newer := entry("newer", "Technology", []float64{1, 0})
	newer.Importance = 70
	newer.LastUpdated = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)

	weaker := entry("weaker", "Technology", []float64{1, 0})
	weaker.Importance = 30
	weaker.LastUpdated = time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for _, e := range []Entry{older, newer, weaker} {
		if err := ix.Upsert(e); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	// Equal similarity: higher importance wins, then recency.
	m := ix.Nearest("Technology", []float64{1, 0})
	if m == nil || m.ClusterID != "newer" {
		t.Fatalf("tie-break picked %+v, want newer", m)
	}
}

func TestQueryOrdering(t *testing.T) {
	ix := NewIndex()
	for i, c := range [][]float64{{1, 0}, {0.9, 0.1}, {0, 1}} {
		if err := ix.Upsert(entry(fmt.Sprintf("c%d", i), "Business", c)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got := ix.Query("Business", []float64{1, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("Query returned %d matches, want 2", len(got))
	}
	if got[0].ClusterID != "c0" || got[1].ClusterID != "c1" {
		t.Errorf("order = %s, %s; want c0, c1", got[0].ClusterID, got[1].ClusterID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("similarities not descending: %v", got)
	}
}

func TestUpsertReplacesAndRemove(t *testing.T) {
	ix := NewIndex()
	if err := ix.Upsert(entry("c1", "Health", []float64{1, 0})); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := ix.Upsert(entry("c1", "Health", []float64{0, 1})); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if ix.Size("Health") != 1 {
		t.Fatalf("Size = %d, want 1", ix.Size("Health"))
	}

	m := ix.Nearest("Health", []float64{0, 1})
	if m == nil || m.Similarity < 0.99 {
		t.Fatalf("centroid not replaced: %+v", m)
	}

	ix.Remove("Health", "c1")
	if ix.Size("Health") != 0 {
		t.Errorf("Size after Remove = %d, want 0", ix.Size("Health"))
	}
}

func randomUnit(rng *rand.Rand, dim int) []float64 {
	v := make([]float64, dim)
	norm := 0.0
	for i := range v {
		v[i] = rng.NormFloat64()
		norm += v[i] * v[i]
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}

func TestIVFMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ix := NewIndex()
	const dim = 16

	var centroids [][]float64
	for i := 0; i < 60; i++ {
		c := randomUnit(rng, dim)
		centroids = append(centroids, c)
		if err := ix.Upsert(entry(fmt.Sprintf("c%d", i), "World News", c)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	// Exhaustive probing: the inverted file must agree with brute force on
	// every query that clears the acceptance threshold.
	iv := BuildIVF(ix, "World News", 6, 6)
	if iv.Size() != 60 {
		t.Fatalf("IVF size = %d, want 60", iv.Size())
	}

	for i := 0; i < 40; i++ {
		// Perturb a known centroid so the query clears 0.85 against it.
		base := centroids[rng.Intn(len(centroids))]
		q := make([]float64, dim)
		for d := range q {
			q[d] = base[d] + 0.05*rng.NormFloat64()
		}

		brute := ix.Nearest("World News", q)
		approx := iv.Nearest(q)
		if brute == nil || approx == nil {
			t.Fatalf("nil match: brute=%+v approx=%+v", brute, approx)
		}
		if brute.Similarity >= 0.85 && approx.ClusterID != brute.ClusterID {
			t.Errorf("query %d: IVF picked %s (%.4f), brute force %s (%.4f)",
				i, approx.ClusterID, approx.Similarity, brute.ClusterID, brute.Similarity)
		}
	}
}

func TestIVFEmptyCategory(t *testing.T) {
	ix := NewIndex()
	iv := BuildIVF(ix, "Sports", 4, 2)
	if m := iv.Nearest([]float64{1, 0}); m != nil {
		t.Errorf("empty IVF returned %+v, want nil", m)
	}
}
