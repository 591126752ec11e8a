package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"dispute-agent/internal/breaker"
	"dispute-agent/internal/dispute"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
)

const historyYears = 3

// Client fetches customer transaction history from the enrichment API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Breaker *breaker.Breaker
}

func NewClient(baseURL string, b *breaker.Breaker) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Breaker: b,
	}
}

type historyResponse struct {
	Transactions []dispute.Transaction `json:"transactions"`
}

// FetchHistory returns the customer's transactions over the standard 3-year
// lookback. Transient upstream failures are retried with backoff. An open
// circuit breaker skips the fetch and returns the breaker error; callers
// degrade to an absent history rather than treating it as fetched.
func (c *Client) FetchHistory(ctx context.Context, customerID string) ([]dispute.Transaction, error) {
	var result []dispute.Transaction

	call := func() error {
		txs, err := c.fetchWithRetry(ctx, customerID)
		if err != nil {
			return err
		}
		result = txs
		return nil
	}

	var err error
	if c.Breaker != nil {
		err = c.Breaker.Call(call)
	} else {
		err = call()
	}
	if err != nil {
		if breaker.IsOpen(err) {
			log.Warn().Str("customer_id", customerID).Msg("enrichment breaker open, skipping history fetch")
		}
		return nil, err
	}
	return result, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, customerID string) ([]dispute.Transaction, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 8 * time.Second

	return backoff.Retry(ctx, func() ([]dispute.Transaction, error) {
		return c.fetchOnce(ctx, customerID)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
	)
}

func (c *Client) fetchOnce(ctx context.Context, customerID string) ([]dispute.Transaction, error) {
	end := time.Now().UTC()
	start := end.AddDate(-historyYears, 0, 0)

	q := url.Values{}
	q.Set("customer_id", customerID)
	q.Set("start_date", start.Format(time.RFC3339))
	q.Set("end_date", end.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/transactions?"+q.Encode(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("enrichment API server error: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("enrichment API returned %d", resp.StatusCode))
	}

	var payload historyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("enrichment response decode failed: %w", err))
	}
	return payload.Transactions, nil
}
