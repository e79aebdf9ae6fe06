package common

import "errors"

// Sentinel errors shared across pipeline stages. Callers wrap these with
// fmt.Errorf("...: %w", err) and check with errors.Is.
var (
	// ErrDuplicateArticle reports that an incoming article matched an
	// existing uniqueness hash and was dropped before embedding.
	ErrDuplicateArticle = errors.New("duplicate article")

	// ErrEmbeddingUnavailable reports that the embedding provider failed for
	// an article after retries; the article stays unclustered.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrNoContentAvailable reports that a selection request found no
	// eligible clusters for any requested topic.
	ErrNoContentAvailable = errors.New("no content available")

	// ErrInvalidScoreRange reports an importance score outside [1,100]
	// reaching storage.
	ErrInvalidScoreRange = errors.New("importance score out of range")
)
