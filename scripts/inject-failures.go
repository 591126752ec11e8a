//go:build ignore

// Posts a batch of scripted dispute webhooks, valid and invalid, against a
// running server to exercise validation codes and workflow routing.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

var baseURL = "http://localhost:8080"

func payload(overrides map[string]any) map[string]any {
	p := map[string]any{
		"dispute_id":       fmt.Sprintf("dp_%d", time.Now().UnixNano()),
		"customer_id":      "CUST1234",
		"transaction_id":   "txn_120045",
		"amount":           299.99,
		"currency":         "USD",
		"reason_code":      "10.4",
		"description":      "An unrecognized online charge appeared on my card statement from a merchant I never purchased from.",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"customer_email":   "cardholder@example.com",
		"customer_name":    "Jordan Lee",
		"customer_phone":   "+1 415 555 0134",
		"transaction_date": time.Now().UTC().AddDate(0, 0, -12).Format("2006-01-02"),
		"merchant_name":    "Acme Outlet",
		"card_number":      "4242",
	}
	for k, v := range overrides {
		p[k] = v
	}
	return p
}

func main() {
	if u := os.Getenv("API_URL"); u != "" {
		baseURL = u
	}

	scenarios := []struct {
		name      string
		overrides map[string]any
	}{
		{"happy-path", nil},
		{"invalid-customer-id", map[string]any{"customer_id": "cust1234"}},
		{"suspicious-amount", map[string]any{"amount": 999999}},
		{"stale-filing", map[string]any{"transaction_date": time.Now().UTC().AddDate(0, -5, 0).Format("2006-01-02")}},
		{"spam-description", map[string]any{"description": "test test test this is a testing dummy sample dispute"}},
		{"unknown-reason-code", map[string]any{"reason_code": "99.9"}},
		{"disposable-email", map[string]any{"customer_email": "user@tempmail.org"}},
		{"vague-description", map[string]any{"description": "I would like to formally contest an ambiguous ledger adjustment of unspecified provenance."}},
	}

	fmt.Println("=== Dispute Webhook Injection Toolkit ===")
	fmt.Printf("Target: %s\n\n", baseURL)

	for _, s := range scenarios {
		fmt.Printf("--- %s ---\n", s.name)

		start := time.Now()
		body, status, err := post(payload(s.overrides))
		duration := time.Since(start)

		if err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Printf("Status: %d | Duration: %s\n", status, duration)
			var result map[string]any
			if err := json.Unmarshal(body, &result); err == nil {
				if st, ok := result["status"]; ok {
					fmt.Printf("Outcome: %v\n", st)
				}
				if code, ok := result["rejection_code"]; ok {
					fmt.Printf("Rejection code: %v\n", code)
				}
				if node, ok := result["terminal_node"]; ok {
					fmt.Printf("Terminal node: %v\n", node)
				}
				if msg, ok := result["message"]; ok {
					fmt.Printf("Message: %.120s\n", fmt.Sprint(msg))
				}
			}
		}
		fmt.Println()
	}
}

func post(p map[string]any) ([]byte, int, error) {
	raw, _ := json.Marshal(p)
	resp, err := http.Post(baseURL+"/webhooks/dispute", "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	return body, resp.StatusCode, err
}
