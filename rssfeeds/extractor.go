package rssfeeds

import (
	"fmt"
	"log"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"

	"newscast/config"
	"newscast/types"
)

const extractorTimeout = 30 * time.Second

// ExtractAllContent fetches and extracts full article text for a batch using
// a worker pool. Extraction failures leave the article with its feed summary
// only.
func ExtractAllContent(articles []types.Article) {
	var wg sync.WaitGroup
	articleChan := make(chan *types.Article, len(articles))

	for i := 0; i < config.ExtractWorkerCount; i++ {
		go func(workerID int) {
			for article := range articleChan {
				if err := extractContent(article); err != nil {
					log.Printf("[Worker %d] Failed to extract %s: %v", workerID, article.URL, err)
				}
				wg.Done()
			}
		}(i)
	}

	for i := range articles {
		wg.Add(1)
		articleChan <- &articles[i]
	}

	wg.Wait()
	close(articleChan)
}

func extractContent(article *types.Article) error {
	if article.URL == "" {
		return fmt.Errorf("article URL is empty")
	}

	extracted, err := readability.FromURL(article.URL, extractorTimeout)
	if err != nil {
		return fmt.Errorf("readability extraction failed: %w", err)
	}

	article.Content = extracted.TextContent
	if article.Summary == "" {
		article.Summary = extracted.Excerpt
	}

	log.Printf("✓ Extracted: %s", article.Title)
	return nil
}
