package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingRecord is written once at checkout and never updated.
type FundingRecord struct {
	ID        string          `db:"id" json:"id"`
	UserID    string          `db:"user_id" json:"user_id"`
	NeedID    string          `db:"need_id" json:"need_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type FundingEntry struct {
	FundingRecord
	NeedTitle string `db:"need_title" json:"need_title"`
	Username  string `db:"username" json:"username"`
}

type CheckoutRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type CheckoutReceipt struct {
	UserID    string           `json:"user_id"`
	Records   []*FundingRecord `json:"records"`
	Total     decimal.Decimal  `json:"total"`
	PaymentID string           `json:"payment_id,omitempty"`
}
