package scoring

import (
	"log"
	"math"
	"strings"
	"time"

	"newscast/config"
	"newscast/types"
)

// MagnitudeSignal estimates how consequential a story reads, in [0,1].
// Implementations must be deterministic for a given text.
type MagnitudeSignal interface {
	Magnitude(title, summary string) float64
}

// Scorer computes cluster importance in [1,100] from corroboration,
// story magnitude and recency.
type Scorer struct {
	signal MagnitudeSignal
	now    func() time.Time
}

// NewScorer builds a scorer. signal may be nil to use the default lexicon.
func NewScorer(signal MagnitudeSignal) *Scorer {
	if signal == nil {
		signal = LexiconSignal{}
	}
	return &Scorer{signal: signal, now: time.Now}
}

// Score computes the importance of a cluster as observed at now. The result
// is always within [MinImportance, MaxImportance].
func (s *Scorer) Score(cluster *types.StoryCluster, now time.Time) int {
	score := float64(config.BaseImportance)
	score += sourceSignal(cluster.ArticleCount)
	score += float64(config.MagnitudeSignalMax) * s.signal.Magnitude(cluster.Title, cluster.Summary)
	score += recencyBoost(cluster.AgeAt(now))

	rounded := int(math.Round(score))
	if rounded < config.MinImportance || rounded > config.MaxImportance {
		log.Printf("clamping out-of-range score %d for cluster %s", rounded, cluster.ID)
	}
	return clamp(rounded)
}

// Rescore recomputes every cluster's importance and writes changed scores
// back through setScore. Idempotent for a fixed now.
func (s *Scorer) Rescore(clusters []types.StoryCluster, now time.Time, setScore func(clusterID string, score int) error) (updated int, err error) {
	for i := range clusters {
		c := &clusters[i]
		score := s.Score(c, now)
		if score == c.Importance {
			continue
		}
		if err := setScore(c.ID, score); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// sourceSignal grows logarithmically with corroborating articles and
// saturates at SourceSaturation sources.
func sourceSignal(articleCount int) float64 {
	if articleCount <= 1 {
		return 0
	}
	ratio := math.Log(float64(articleCount)) / math.Log(float64(config.SourceSaturation))
	if ratio > 1 {
		ratio = 1
	}
	return float64(config.SourceSignalMax) * ratio
}

// recencyBoost halves roughly every RecencyHalfLife of cluster age.
func recencyBoost(age time.Duration) float64 {
	if age < 0 {
		age = 0
	}
	halfLives := age.Hours() / config.RecencyHalfLife.Hours()
	return float64(config.RecencyBoostMax) * math.Exp(-math.Ln2*halfLives)
}

func clamp(score int) int {
	if score < config.MinImportance {
		return config.MinImportance
	}
	if score > config.MaxImportance {
		return config.MaxImportance
	}
	return score
}

// LexiconSignal is the default magnitude estimator: a fixed keyword lexicon
// scanned over the canonical title and summary. Title hits count double.
type LexiconSignal struct{}

var magnitudeLexicon = []string{
	"breaking", "crisis", "war", "invasion", "killed", "dead", "disaster",
	"emergency", "historic", "record", "collapse", "breakthrough", "landmark",
	"election", "resigns", "impeach", "pandemic", "outbreak", "earthquake",
	"billion", "trillion", "sanctions", "default", "bankruptcy", "unprecedented",
}

// Magnitude returns the lexicon hit rate mapped onto [0,1]; three weighted
// hits already saturate the signal.
func (LexiconSignal) Magnitude(title, summary string) float64 {
	title = strings.ToLower(title)
	summary = strings.ToLower(summary)

	hits := 0.0
	for _, word := range magnitudeLexicon {
		if strings.Contains(title, word) {
			hits += 2
		} else if strings.Contains(summary, word) {
			hits++
		}
	}
	const saturation = 3
	if hits >= saturation {
		return 1
	}
	return hits / saturation
}
