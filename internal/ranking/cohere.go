package ranking

import (
	"context"
	"fmt"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// DefaultCohereModel is used when no rerank model is configured
const DefaultCohereModel = "rerank-english-v3.0"

// CohereReranker delegates scoring to the Cohere rerank endpoint
type CohereReranker struct {
	client *cohereclient.Client
	model  string
}

// NewCohereReranker creates a Cohere-backed reranker
func NewCohereReranker(apiKey, model string) (*CohereReranker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cohere API key is required")
	}
	if model == "" {
		model = DefaultCohereModel
	}
	return &CohereReranker{
		client: cohereclient.NewClient(cohereclient.WithToken(apiKey)),
		model:  model,
	}, nil
}

// Rerank implements Reranker
func (c *CohereReranker) Rerank(ctx context.Context, query string, texts []string, topK int) ([]RerankResult, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	docs := make([]*cohere.RerankRequestDocumentsItem, len(texts))
	for i, t := range texts {
		docs[i] = &cohere.RerankRequestDocumentsItem{String: t}
	}
	if topK <= 0 || topK > len(texts) {
		topK = len(texts)
	}

	resp, err := c.client.Rerank(ctx, &cohere.RerankRequest{
		Query:     query,
		Documents: docs,
		Model:     &c.model,
		TopN:      &topK,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("cohere rerank returned no response")
	}

	results := make([]RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil {
			continue
		}
		results = append(results, RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	return sortResults(results, topK), nil
}
