package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"newscast/types"
)

// Archive persists raw discovery batches to S3 so a run can be replayed or
// audited after the database has moved on.
type Archive struct {
	client *s3.Client
	bucket string
}

// NewArchive builds an S3-backed archive using the default AWS credential
// chain. Returns nil when no bucket is configured, which disables archiving.
func NewArchive(ctx context.Context, bucket, region string) (*Archive, error) {
	if bucket == "" {
		return nil, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Archive{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

// StoreBatch writes the articles fetched during one discovery run as a single
// JSON object keyed by run ID and day.
func (a *Archive) StoreBatch(ctx context.Context, runID string, articles []types.Article) error {
	if a == nil {
		return nil
	}
	body, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}
	key := fmt.Sprintf("batches/%s/%s.json", time.Now().UTC().Format("2006-01-02"), runID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: ptr("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive batch %s: %w", runID, err)
	}
	log.Printf("📦 Archived %d articles to s3://%s/%s", len(articles), a.bucket, key)
	return nil
}

// LoadBatch fetches a previously archived batch by its object key.
func (a *Archive) LoadBatch(ctx context.Context, key string) ([]types.Article, error) {
	if a == nil {
		return nil, fmt.Errorf("archive not configured")
	}
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch %s: %w", key, err)
	}
	defer out.Body.Close()

	var articles []types.Article
	if err := json.NewDecoder(out.Body).Decode(&articles); err != nil {
		return nil, fmt.Errorf("failed to decode batch %s: %w", key, err)
	}
	return articles, nil
}

// BatchExists checks whether a batch object is already present.
func (a *Archive) BatchExists(ctx context.Context, key string) (bool, error) {
	if a == nil {
		return false, nil
	}
	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &a.bucket,
		Key:    &key,
	})
	if err == nil {
		return true, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "NotFound" || code == "NoSuchKey" {
			return false, nil
		}
	}
	return false, fmt.Errorf("failed to head batch %s: %w", key, err)
}

func ptr(s string) *string { return &s }
