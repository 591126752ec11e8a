//go:build ignore

// Seeds the vector-store sidecar with the sample Visa rule corpus.
// Usage: go run scripts/seed-rules.go [VECTOR_STORE_URL]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

type rule struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

var visaRules = []rule{
	{
		ID: "visa_rule_001",
		Content: "Visa Reason Code 10.4 - Other Fraud, Card Absent Environment. " +
			"Cardholder claims they did not authorize or participate in a transaction " +
			"conducted in a card-absent environment (e.g., online, phone, mail order). " +
			"Time limit: 120 days from transaction processing date.",
		Metadata: map[string]any{"category": "fraud", "reason_code": "10.4", "environment": "card_absent"},
	},
	{
		ID: "visa_rule_002",
		Content: "Visa Reason Code 13.1 - Services Not Provided or Merchandise Not Received. " +
			"Cardholder claims they did not receive goods or services as agreed. " +
			"Merchant must provide proof of delivery or service completion. " +
			"Time limit: 120 days from expected delivery date.",
		Metadata: map[string]any{"category": "service_dispute", "reason_code": "13.1"},
	},
	{
		ID: "visa_rule_003",
		Content: "Visa Reason Code 13.3 - Not as Described or Defective Merchandise. " +
			"Cardholder claims merchandise or services were not as described or defective. " +
			"Cardholder must have attempted to return merchandise or resolve with merchant. " +
			"Time limit: 120 days from transaction date.",
		Metadata: map[string]any{"category": "quality_dispute", "reason_code": "13.3"},
	},
	{
		ID: "visa_rule_004",
		Content: "Visa Chargeback Time Limits. Cardholders have 120 days from the transaction " +
			"processing date or expected delivery date to file a dispute. Merchants have " +
			"30 days to respond to a chargeback with supporting documentation. " +
			"Failure to respond within time limits results in automatic liability.",
		Metadata: map[string]any{"category": "time_limits", "type": "procedural"},
	},
	{
		ID: "visa_rule_005",
		Content: "Friendly Fraud Detection. Patterns indicating friendly fraud include: " +
			"multiple chargebacks from same cardholder, disputes filed after merchandise " +
			"delivery confirmation, disputes for digital goods with confirmed access, " +
			"high-value disputes without merchant contact attempts. " +
			"Chargeback rate above 1% indicates potential friendly fraud patterns.",
		Metadata: map[string]any{"category": "fraud_detection", "type": "friendly_fraud"},
	},
	{
		ID: "visa_rule_006",
		Content: "Visa Reason Code 11.1 - Card Recovery Bulletin or Exception File. " +
			"Transaction processed on a card listed in the Card Recovery Bulletin. " +
			"Merchant must check authorization and card validity at time of transaction. " +
			"Time limit: 120 days from transaction processing date.",
		Metadata: map[string]any{"category": "authorization", "reason_code": "11.1"},
	},
	{
		ID: "visa_rule_007",
		Content: "Visa Reason Code 12.1 - Late Presentment. Transaction not presented within " +
			"required time frame. Visa requires transactions to be presented within " +
			"specified time limits based on transaction type and region. " +
			"Merchant liability if presentment is late.",
		Metadata: map[string]any{"category": "processing_error", "reason_code": "12.1"},
	},
	{
		ID: "visa_rule_008",
		Content: "Compelling Evidence for Fraud Disputes. To counter fraud claims, merchants " +
			"must provide: IP address matching cardholder's location, device fingerprint " +
			"matching previous legitimate transactions, delivery address matching billing " +
			"address, cardholder communication history, previous undisputed transactions " +
			"from same account.",
		Metadata: map[string]any{"category": "evidence_requirements", "type": "fraud_defense"},
	},
	{
		ID: "visa_rule_009",
		Content: "Visa Reason Code 13.2 - Cancelled Recurring Transaction. Cardholder claims " +
			"they cancelled a recurring transaction but were still charged. Merchant must " +
			"provide proof that cancellation was not properly requested or that service " +
			"was provided after cancellation request. Time limit: 120 days from transaction date.",
		Metadata: map[string]any{"category": "recurring_billing", "reason_code": "13.2"},
	},
	{
		ID: "visa_rule_010",
		Content: "Visa Dispute Resolution Framework. All disputes must follow the standard " +
			"workflow: cardholder files dispute with issuer, issuer reviews and may file " +
			"chargeback, merchant responds with evidence, issuer makes final decision. " +
			"If merchant disagrees, they may escalate to pre-arbitration. " +
			"Arbitration is final and binding with fees for losing party.",
		Metadata: map[string]any{"category": "procedural", "type": "dispute_workflow"},
	},
	{
		ID: "visa_rule_011",
		Content: "Visa Authorization Requirements. Merchants must obtain authorization for all " +
			"transactions. Authorization confirms card validity and available funds. " +
			"Failure to obtain authorization or processing after authorization decline " +
			"results in merchant liability for disputes. Authorization codes must be " +
			"retained for dispute defense.",
		Metadata: map[string]any{"category": "authorization", "type": "requirements"},
	},
	{
		ID: "visa_rule_012",
		Content: "Visa Reason Code 10.1 - EMV Liability Shift Counterfeit Fraud. Counterfeit " +
			"card transaction at chip-enabled terminal. If merchant's terminal is not " +
			"chip-enabled, merchant is liable. If terminal is chip-enabled and chip was " +
			"read, issuer is liable. Time limit: 120 days from transaction processing date.",
		Metadata: map[string]any{"category": "fraud", "reason_code": "10.1", "type": "counterfeit"},
	},
}

func main() {
	baseURL := "http://localhost:8000"
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	} else if u := os.Getenv("VECTOR_STORE_URL"); u != "" {
		baseURL = u
	}

	ids := make([]string, len(visaRules))
	documents := make([]string, len(visaRules))
	metadatas := make([]map[string]any, len(visaRules))
	for i, r := range visaRules {
		ids[i] = r.ID
		documents[i] = r.Content
		metadatas[i] = r.Metadata
	}

	body, err := json.Marshal(map[string]any{
		"ids":       ids,
		"documents": documents,
		"metadatas": metadatas,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal: %v\n", err)
		os.Exit(1)
	}

	resp, err := http.Post(baseURL+"/seed", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Printf("seeded %d rules: HTTP %d %s\n", len(visaRules), resp.StatusCode, string(out))
}
