package clustering

import (
	"context"
	"fmt"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"newscast/types"
)

// SameEventJudge decides whether a candidate article covers the same
// specific event as a cluster's canonical story. The verdict only gates
// canonical title/summary replacement, never the merge itself.
type SameEventJudge interface {
	SameEvent(ctx context.Context, cluster *types.StoryCluster, article *types.Article) (bool, error)
}

// CohereJudge asks a Cohere chat model for the verdict.
type CohereJudge struct {
	client *cohereclient.Client
	model  string
}

// NewCohereJudge builds a judge against the given API key. model defaults to
// command-r-plus-08-2024.
func NewCohereJudge(apiKey, model string) *CohereJudge {
	if model == "" {
		model = "command-r-plus-08-2024"
	}
	return &CohereJudge{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}
}

func (j *CohereJudge) SameEvent(ctx context.Context, cluster *types.StoryCluster, article *types.Article) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(`Two news items follow. Answer YES if they report the same specific event, NO otherwise. Answer with a single word.

Item A title: %s
Item A summary: %s

Item B title: %s
Item B summary: %s`,
		cluster.Title, cluster.Summary, article.Title, article.Summary)

	resp, err := j.client.V2.Chat(ctx, &cohere.V2ChatRequest{
		Model: j.model,
		Messages: cohere.ChatMessages{
			&cohere.ChatMessageV2{
				Role: "user",
				User: &cohere.UserMessageV2{Content: &cohere.UserMessageV2Content{
					String: prompt,
				}},
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("cohere chat error: %w", err)
	}
	if resp == nil || resp.Message == nil || len(resp.Message.Content) == 0 {
		return false, fmt.Errorf("cohere chat returned empty response")
	}

	var text string
	for _, item := range resp.Message.Content {
		if item.Text != nil {
			text += item.Text.Text
		}
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "YES"), nil
}

// LexicalJudge is a deterministic offline fallback: token Jaccard similarity
// over titles.
type LexicalJudge struct {
	// Threshold defaults to 0.5 when zero.
	Threshold float64
}

func (j LexicalJudge) SameEvent(_ context.Context, cluster *types.StoryCluster, article *types.Article) (bool, error) {
	threshold := j.Threshold
	if threshold == 0 {
		threshold = 0.5
	}
	return jaccard(cluster.Title, article.Title) >= threshold, nil
}

func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for tok := range setA {
		if setB[tok] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}
