package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"dispute-agent/internal/dispute"
)

// Backend is the ranked-retrieval contract the workflow consumes. How
// documents are embedded or indexed is the backend's concern.
type Backend interface {
	Query(ctx context.Context, text string, topK int) ([]dispute.RuleDocument, error)
}

// HTTPBackend talks to the vector-search service over its REST API.
type HTTPBackend struct {
	BaseURL string
	HTTP    *http.Client
}

func NewHTTPBackend(baseURL string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Ping checks the vector service heartbeat. Used by the health endpoint.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"/heartbeat", nil)
	if err != nil {
		return err
	}
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("vector store unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vector store heartbeat returned %d", resp.StatusCode)
	}
	return nil
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type queryResponse struct {
	Documents        []string         `json:"documents"`
	Metadatas        []map[string]any `json:"metadatas"`
	SimilarityScores []float64        `json:"similarity_scores"`
}

func (b *HTTPBackend) Query(ctx context.Context, text string, topK int) ([]dispute.RuleDocument, error) {
	body, err := json.Marshal(queryRequest{Query: text, TopK: topK})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector store query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector store returned %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("vector store response decode failed: %w", err)
	}

	docs := make([]dispute.RuleDocument, 0, len(qr.Documents))
	for i, content := range qr.Documents {
		doc := dispute.RuleDocument{Content: content}
		if i < len(qr.Metadatas) {
			doc.Metadata = qr.Metadatas[i]
		}
		if i < len(qr.SimilarityScores) {
			doc.SimilarityScore = qr.SimilarityScores[i]
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
