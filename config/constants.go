package config

import "time"

// Clustering thresholds
const (
	// SimilarityThreshold is the minimum cosine similarity between an article
	// embedding and a cluster centroid for the article to join the cluster.
	SimilarityThreshold = 0.85

	// EmbeddingDim is the expected dimensionality of provider embeddings.
	EmbeddingDim = 768

	// ScoreEpsilon breaks near-ties between candidate clusters; within this
	// band the more important, then more recently updated, cluster wins.
	ScoreEpsilon = 1e-6
)

// Importance scoring
const (
	// MinImportance and MaxImportance bound every cluster score.
	MinImportance = 1
	MaxImportance = 100

	// BaseImportance is the score of a single-source cluster with no other
	// signal.
	BaseImportance = 40

	// SourceSaturation is the article count at which the multi-source signal
	// stops growing; SourceSignalMax is its ceiling.
	SourceSaturation = 6
	SourceSignalMax  = 30

	// MagnitudeSignalMax caps the keyword magnitude contribution.
	MagnitudeSignalMax = 15

	// RecencyBoostMax caps the recency contribution; the boost halves
	// roughly every RecencyHalfLife.
	RecencyBoostMax = 15
	RecencyHalfLife = 24 * time.Hour
)

// Selection planning
const (
	// FreshnessWindow limits planner candidates to recently updated clusters.
	FreshnessWindow = 5 * 24 * time.Hour

	// CoverageBoostFactor scales the logarithmic multi-source boost applied
	// to decayed importance: effective * (1 + factor*ln(count)).
	CoverageBoostFactor = 0.17

	// WordsPerMinute converts episode minutes into a word budget.
	WordsPerMinute = 120

	// MinWordsPerStory is the smallest budget worth allocating to a story.
	MinWordsPerStory = 100

	// DefaultMinImportance filters low-signal clusters out of plans when the
	// request does not set its own floor.
	DefaultMinImportance = 40

	// DefaultMaxStories bounds a plan when the request leaves it unset.
	DefaultMaxStories = 8

	// BudgetToleranceLow and BudgetToleranceHigh describe the acceptable
	// realized length of a story against its word budget.
	BudgetToleranceLow  = 0.85
	BudgetToleranceHigh = 1.05

	// BackupsPerTopic is how many runner-up clusters are recorded per topic.
	BackupsPerTopic = 2
)

// DecayRatePerHour returns the per-hour exponential decay rate for a
// category. Slow-moving beats decay gently; wires and sports decay fast.
func DecayRatePerHour(category string) float64 {
	if rate, ok := decayRates[category]; ok {
		return rate
	}
	return defaultDecayRate
}

const defaultDecayRate = 0.02

var decayRates = map[string]float64{
	"World News":            0.05,
	"Politics & Government": 0.02,
	"Business":              0.025,
	"Technology":            0.01,
	"Science & Environment": 0.005,
	"Sports":                0.03,
	"Arts & Culture":        0.005,
	"Health":                0.008,
	"Lifestyle":             0.005,
}

// Pipeline tuning
const (
	// EmbedWorkerCount bounds concurrent embedding calls.
	EmbedWorkerCount = 4

	// EmbedBatchSize is how many texts go into one provider request.
	EmbedBatchSize = 32

	// ExtractWorkerCount bounds concurrent full-content extractions.
	ExtractWorkerCount = 5

	// FetchTimeout bounds a single feed fetch.
	FetchTimeout = 30 * time.Second
)
