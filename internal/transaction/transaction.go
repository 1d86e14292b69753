// internal/transaction/transaction.go
package transaction

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status defines the processing status of a transaction
type Status string

const (
	// Processing transactions have been recorded but not yet settled
	Processing Status = "PROCESSING"
	// Processed transactions have completed settlement; this state is terminal
	Processed Status = "PROCESSED"
)

// Transaction represents a single transaction notification received
// from an external payment processor. Exactly one record exists per
// TransactionID, and status only ever moves PROCESSING -> PROCESSED.
type Transaction struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
}

// Notification is the inbound webhook payload. Amount is declared as a
// decimal so both JSON strings ("100.00") and bare numbers are accepted
// without going through a float.
type Notification struct {
	TransactionID      string          `json:"transaction_id"`
	SourceAccount      string          `json:"source_account"`
	DestinationAccount string          `json:"destination_account"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
}

// Validate checks that all required notification fields are present and
// that the amount is positive. A missing amount decodes as zero, so zero
// is rejected along with negatives.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.TransactionID) == "" {
		return fmt.Errorf("transaction_id is required")
	}
	if strings.TrimSpace(n.SourceAccount) == "" {
		return fmt.Errorf("source_account is required")
	}
	if strings.TrimSpace(n.DestinationAccount) == "" {
		return fmt.Errorf("destination_account is required")
	}
	if strings.TrimSpace(n.Currency) == "" {
		return fmt.Errorf("currency is required")
	}
	if !n.Amount.IsPositive() {
		return fmt.Errorf("amount must be a positive value")
	}
	return nil
}

// New builds a Transaction from a validated notification. The record
// starts in PROCESSING with the creation timestamp set; ProcessedAt
// stays nil until settlement completes.
func New(n *Notification, now time.Time) (*Transaction, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	return &Transaction{
		TransactionID:      n.TransactionID,
		SourceAccount:      n.SourceAccount,
		DestinationAccount: n.DestinationAccount,
		Amount:             n.Amount.Round(2),
		Currency:           n.Currency,
		Status:             Processing,
		CreatedAt:          now.UTC(),
	}, nil
}

// MarshalJSON renders the amount with two decimal places so stored and
// echoed values keep currency precision.
func (tx Transaction) MarshalJSON() ([]byte, error) {
	type alias Transaction
	return json.Marshal(struct {
		alias
		Amount string `json:"amount"`
	}{
		alias:  alias(tx),
		Amount: tx.Amount.StringFixed(2),
	})
}

// ToJSON serializes the transaction to JSON
func (tx *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(tx)
}

// FromJSON deserializes a transaction from JSON
func FromJSON(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}
	return &tx, nil
}
