package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

type TransactionType string

const (
	TxDeposit         TransactionType = "deposit"
	TxSessionPayment  TransactionType = "session_payment"
	TxSessionRefund   TransactionType = "session_refund"
	TxReaderEarning   TransactionType = "reader_earning"
	TxPlatformFee     TransactionType = "platform_fee"
	TxGiftPurchase    TransactionType = "gift_purchase"
	TxGiftEarning     TransactionType = "gift_earning"
	TxProductPurchase TransactionType = "product_purchase"
	TxProductEarning  TransactionType = "product_earning"
	TxPayout          TransactionType = "payout"
	TxAdjustment      TransactionType = "adjustment"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TxDeposit, TxSessionPayment, TxSessionRefund, TxReaderEarning, TxPlatformFee,
		TxGiftPurchase, TxGiftEarning, TxProductPurchase, TxProductEarning, TxPayout, TxAdjustment:
		return true
	}
	return false
}

// Transaction is one ledger line. Amount is signed from the user's point of
// view. Platform fee lines have no user and no balance.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Reference    string          `json:"reference"`
	UserID       *uuid.UUID      `json:"user_id,omitempty"`
	Type         TransactionType `json:"type"`
	AmountCents  int64           `json:"amount_cents"`
	BalanceAfter *int64          `json:"balance_after_cents,omitempty"`
	Description  string          `json:"description"`
	RelatedID    *uuid.UUID      `json:"related_id,omitempty"`
	ExternalRef  *string         `json:"external_ref,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (t *Transaction) Prepare() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Reference == "" {
		t.Reference = ksuid.New().String()
	}
}

type TransactionFilter struct {
	Type   TransactionType
	UserID *uuid.UUID
	From   *time.Time
	To     *time.Time
	Page
}

type TransactionSummary struct {
	Type       TransactionType `json:"type"`
	Count      int64           `json:"count"`
	TotalCents int64           `json:"total_cents"`
}

// LedgerEntry is a balance movement requested by a service. The repository
// applies it to the user's balance and writes the matching transaction row.
type LedgerEntry struct {
	UserID      uuid.UUID
	Type        TransactionType
	AmountCents int64
	Description string
	RelatedID   *uuid.UUID
	ExternalRef *string
}

type Wallet struct {
	BalanceCents int64         `json:"balance_cents"`
	Recent       []Transaction `json:"recent"`
}
