package deduplication

import (
	"context"
	"errors"
	"fmt"
	"log"

	"newscast/common"
	"newscast/types"
)

// HashStore is the persistent source of truth for fingerprint hashes. The
// storage package implements it.
type HashStore interface {
	HashExists(hash string) (bool, error)
}

// BloomFilter is an optional probabilistic fast path in front of the store.
// A true result may be a false positive and is always confirmed.
type BloomFilter interface {
	Exists(ctx context.Context, hash string) (bool, error)
	Add(ctx context.Context, hash string) error
}

// Fingerprints carries the two identity hashes of one article.
type Fingerprints struct {
	ContentHash string
	URLHash     string
}

// Deduplicator decides whether an incoming article is new before any
// embedding work is spent on it. An article is a duplicate when either of
// its fingerprint hashes has been seen.
type Deduplicator struct {
	store HashStore
	bloom BloomFilter
}

// NewDeduplicator builds a deduplicator. bloom may be nil, in which case
// every check goes straight to the store.
func NewDeduplicator(store HashStore, bloom BloomFilter) *Deduplicator {
	return &Deduplicator{store: store, bloom: bloom}
}

// Check fingerprints the article and reports whether it has been seen
// before. Known articles return common.ErrDuplicateArticle; new ones return
// their fingerprints for the caller to persist.
func (d *Deduplicator) Check(ctx context.Context, article *types.Article) (Fingerprints, error) {
	contentHash, urlHash, err := Fingerprint(article)
	if err != nil {
		return Fingerprints{}, fmt.Errorf("failed to fingerprint article: %w", err)
	}
	fp := Fingerprints{ContentHash: contentHash, URLHash: urlHash}

	for _, hash := range []string{contentHash, urlHash} {
		if hash == "" {
			continue
		}
		seen, err := d.seen(ctx, hash)
		if err != nil {
			return fp, err
		}
		if seen {
			return fp, fmt.Errorf("article %s: %w", article.ID, common.ErrDuplicateArticle)
		}
	}
	return fp, nil
}

// IsDuplicate is a read-only convenience over Check for callers that do not
// intend to persist the article.
func (d *Deduplicator) IsDuplicate(ctx context.Context, article *types.Article) (bool, error) {
	_, err := d.Check(ctx, article)
	if errors.Is(err, common.ErrDuplicateArticle) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

func (d *Deduplicator) seen(ctx context.Context, hash string) (bool, error) {
	if d.bloom != nil {
		maybe, err := d.bloom.Exists(ctx, hash)
		if err != nil {
			// Degrade to the store; the bloom filter is an optimization.
			log.Printf("bloom check failed, falling back to store: %v", err)
		} else if !maybe {
			return false, nil
		}
	}
	exists, err := d.store.HashExists(hash)
	if err != nil {
		return false, fmt.Errorf("failed to check store: %w", err)
	}
	return exists, nil
}

// Record marks both fingerprints as seen in the bloom filter. The store side
// is handled by the article insert itself.
func (d *Deduplicator) Record(ctx context.Context, fp Fingerprints) {
	if d.bloom == nil {
		return
	}
	for _, hash := range []string{fp.ContentHash, fp.URLHash} {
		if hash == "" {
			continue
		}
		if err := d.bloom.Add(ctx, hash); err != nil {
			log.Printf("bloom add failed: %v", err)
		}
	}
}
