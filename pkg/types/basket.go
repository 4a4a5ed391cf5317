package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type BasketItem struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	NeedID    string    `db:"need_id" json:"need_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BasketEntry is a basket line joined with the need it points at.
type BasketEntry struct {
	BasketItem
	NeedTitle string          `db:"need_title" json:"need_title"`
	UnitCost  decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Remaining int             `db:"remaining" json:"remaining"`
	LineTotal decimal.Decimal `db:"-" json:"line_total"`
}

type Basket struct {
	UserID string          `json:"user_id"`
	Items  []*BasketEntry  `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

type AddBasketItemRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	NeedID   string `json:"need_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type UpdateBasketItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}
