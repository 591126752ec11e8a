package routes

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"dispute-agent/internal/dispute"
)

// RejectionCodes maps every rejection code to its operator-facing meaning.
var RejectionCodes = map[string]string{
	"AUTH001":    "Customer authentication failed",
	"AUTH002":    "Invalid customer credentials",
	"AMOUNT001":  "Transaction amount exceeds daily limit",
	"AMOUNT002":  "Amount below minimum dispute threshold",
	"AMOUNT003":  "Suspicious amount pattern detected",
	"TIME001":    "Transaction date is in the future",
	"TIME002":    "Dispute filed too late (beyond 120 days)",
	"TIME003":    "Transaction date is invalid",
	"FRAUD002":   "Suspicious activity pattern detected",
	"DOC001":     "Insufficient documentation provided",
	"CARD001":    "Card number invalid or expired",
	"MERCH001":   "Merchant name does not match records",
	"MERCH002":   "Transaction not found with merchant",
	"REASON001":  "Invalid dispute reason code",
	"CONTACT001": "Invalid email address format",
	"CONTACT002": "Invalid phone number format",
}

// Rejection is a pre-workflow validation failure.
type Rejection struct {
	Code    string
	Message string
}

var (
	customerIDPattern = regexp.MustCompile(`^[A-Z]{4}[0-9]{4}$`)
	namePattern       = regexp.MustCompile(`^[a-zA-Z\s.]+$`)
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	repeatedPattern   = regexp.MustCompile(`(.)\1{10,}`)
	nonDigitPattern   = regexp.MustCompile(`\D`)
	digitsOnlyPattern = regexp.MustCompile(`^[0-9]+$`)
)

var validReasonCodes = map[string]bool{
	"10.1": true, "10.4": true, "11.1": true,
	"12.1": true, "13.1": true, "13.2": true, "13.3": true,
}

var disposableDomains = []string{"tempmail", "throwaway", "guerrillamail", "10minutemail"}

var suspiciousAmounts = map[float64]bool{123456: true, 999999: true, 111111: true}

const (
	maxDisputeAmount  = 10_000_000
	disputeFilingDays = 120
)

// ValidateDispute runs the layered pre-workflow checks a card issuer applies
// before any adjudication spend. A nil return means the payload is accepted.
func ValidateDispute(p dispute.DisputePayload) *Rejection {
	if r := validateCustomer(p); r != nil {
		return r
	}
	if r := validateTransaction(p); r != nil {
		return r
	}
	if r := validateAmount(p); r != nil {
		return r
	}
	if r := validateTiming(p); r != nil {
		return r
	}
	if r := validateDescription(p); r != nil {
		return r
	}
	if r := validateContact(p); r != nil {
		return r
	}
	return nil
}

func validateCustomer(p dispute.DisputePayload) *Rejection {
	if !customerIDPattern.MatchString(p.CustomerID) {
		return &Rejection{"AUTH002",
			"REJECTED: Customer ID must be 4 UPPERCASE letters followed by 4 numbers. Example: CUST1234"}
	}
	if len(p.CustomerName) < 3 {
		return &Rejection{"AUTH001",
			"REJECTED: Invalid customer name. Must be at least 3 characters."}
	}
	if !namePattern.MatchString(p.CustomerName) {
		return &Rejection{"AUTH001",
			"REJECTED: Customer name contains invalid characters. Only letters, spaces, and periods allowed."}
	}
	return nil
}

func validateTransaction(p dispute.DisputePayload) *Rejection {
	if len(p.TransactionID) < 5 {
		return &Rejection{"MERCH002",
			"REJECTED: Invalid Transaction ID. Must be at least 5 characters."}
	}
	if p.CardNumber != "" && (len(p.CardNumber) != 4 || !digitsOnlyPattern.MatchString(p.CardNumber)) {
		return &Rejection{"CARD001",
			"REJECTED: Card number must be exactly 4 digits."}
	}
	if len(p.MerchantName) < 2 {
		return &Rejection{"MERCH001",
			"REJECTED: Invalid merchant name. Must be at least 2 characters."}
	}
	return nil
}

func validateAmount(p dispute.DisputePayload) *Rejection {
	if p.Amount < 1 {
		return &Rejection{"AMOUNT002",
			"REJECTED: Amount too small. Minimum dispute amount is 1."}
	}
	if p.Amount > maxDisputeAmount {
		return &Rejection{"AMOUNT001",
			"REJECTED: Amount exceeds maximum limit. Larger disputes require manual filing."}
	}
	if suspiciousAmounts[p.Amount] {
		return &Rejection{"AMOUNT003",
			"REJECTED: Suspicious amount pattern detected. Please verify the actual transaction amount."}
	}
	return nil
}

func validateTiming(p dispute.DisputePayload) *Rejection {
	if p.TransactionDate == "" {
		return nil
	}

	txDate, err := parseFlexibleDate(p.TransactionDate)
	if err != nil {
		return &Rejection{"TIME003", "REJECTED: Invalid transaction date format."}
	}

	// The filing timestamp, not wall-clock time, anchors the window so
	// replayed webhooks validate the same way every time.
	filed := p.Timestamp
	if filed.IsZero() {
		filed = time.Now().UTC()
	}

	txDay := txDate.Truncate(24 * time.Hour)
	filedDay := filed.Truncate(24 * time.Hour)

	if txDay.After(filedDay) {
		return &Rejection{"TIME001", "REJECTED: Transaction date cannot be in the future."}
	}

	days := int(filedDay.Sub(txDay).Hours() / 24)
	if days > disputeFilingDays {
		return &Rejection{"TIME002", fmt.Sprintf(
			"REJECTED: Dispute filed too late. Must be filed within %d days of transaction. Transaction was %d days ago.",
			disputeFilingDays, days)}
	}
	return nil
}

func validateDescription(p dispute.DisputePayload) *Rejection {
	desc := strings.ToLower(p.Description)

	spamCount := 0
	for _, word := range []string{"test", "testing", "dummy", "fake", "sample"} {
		spamCount += strings.Count(desc, word)
	}
	if spamCount > 2 {
		return &Rejection{"FRAUD002",
			"REJECTED: Suspected test/spam submission. Please provide genuine dispute details."}
	}

	if len(strings.Fields(desc)) < 5 {
		return &Rejection{"DOC001",
			"REJECTED: Insufficient description. Please provide detailed information (minimum 5 words)."}
	}
	if repeatedPattern.MatchString(desc) {
		return &Rejection{"FRAUD002", "REJECTED: Invalid description format detected."}
	}

	if len(p.Description) < 20 {
		return &Rejection{"DOC001",
			"REJECTED: Description too short. Minimum 20 characters required for proper review."}
	}
	if len(p.Description) > 1000 {
		return &Rejection{"DOC001",
			"REJECTED: Description too long. Maximum 1000 characters allowed."}
	}

	if !validReasonCodes[p.ReasonCode] {
		return &Rejection{"REASON001", fmt.Sprintf(
			"REJECTED: Invalid reason code %q. Must be one of: 10.1, 10.4, 11.1, 12.1, 13.1, 13.2, 13.3", p.ReasonCode)}
	}
	return nil
}

func validateContact(p dispute.DisputePayload) *Rejection {
	if p.CustomerEmail == "" {
		return &Rejection{"CONTACT001", "REJECTED: Email address is required."}
	}
	if !emailPattern.MatchString(p.CustomerEmail) {
		return &Rejection{"CONTACT001",
			"REJECTED: Invalid email format. Must be a valid email address (e.g., user@example.com)"}
	}
	lower := strings.ToLower(p.CustomerEmail)
	for _, domain := range disposableDomains {
		if strings.Contains(lower, domain) {
			return &Rejection{"CONTACT001",
				"REJECTED: Temporary email addresses not allowed. Please use permanent email."}
		}
	}

	if p.CustomerPhone != "" {
		digits := nonDigitPattern.ReplaceAllString(p.CustomerPhone, "")
		if len(digits) < 10 || len(digits) > 15 {
			return &Rejection{"CONTACT002",
				"REJECTED: Invalid phone number. Must be 10-15 digits."}
		}
	}
	return nil
}

func parseFlexibleDate(s string) (time.Time, error) {
	if strings.ContainsAny(s, "TZ+") {
		return time.Parse(time.RFC3339, s)
	}
	return time.Parse("2006-01-02", s)
}
