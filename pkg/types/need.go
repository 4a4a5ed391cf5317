package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

type Need struct {
	ID                string          `db:"id" json:"id"`
	ManagerID         string          `db:"manager_id" json:"manager_id"`
	Title             string          `db:"title" json:"title"`
	Description       string          `db:"description" json:"description"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Quantity          int             `db:"quantity" json:"quantity"`
	QuantityFulfilled int             `db:"quantity_fulfilled" json:"quantity_fulfilled"`
	Priority          Priority        `db:"priority" json:"priority"`
	Category          string          `db:"category" json:"category"`
	OrgType           string          `db:"org_type" json:"org_type"`
	Deadline          *time.Time      `db:"deadline" json:"deadline,omitempty"`
	Perishable        bool            `db:"perishable" json:"perishable"`
	BundleTag         *string         `db:"bundle_tag" json:"bundle_tag,omitempty"`
	ServiceRequired   bool            `db:"service_required" json:"service_required"`
	RequestCount      int             `db:"request_count" json:"request_count"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Remaining is the quantity still open for funding, never negative.
func (n *Need) Remaining() int {
	remaining := n.Quantity - n.QuantityFulfilled
	if remaining < 0 {
		return 0
	}
	return remaining
}

// NeedView is a need as served by the API, with derived fields filled in.
type NeedView struct {
	*Need
	Remaining     int  `json:"remaining"`
	UrgencyScore  int  `json:"urgency_score"`
	TimeSensitive bool `json:"time_sensitive"`
}

type NeedSort string

const (
	NeedSortUrgency  NeedSort = "urgency"
	NeedSortDeadline NeedSort = "deadline"
	NeedSortRequests NeedSort = "requests"
	NeedSortPriority NeedSort = "priority"
	NeedSortNewest   NeedSort = "newest"
)

// NeedFilter is decoded from the GET /needs query string.
type NeedFilter struct {
	Priority        Priority `form:"priority"`
	Category        string   `form:"category"`
	OrgType         string   `form:"org_type"`
	Search          string   `form:"search"`
	BundleTag       string   `form:"bundle_tag"`
	Perishable      *bool    `form:"perishable"`
	ServiceRequired *bool    `form:"service_required"`
	DueWithinDays   *int     `form:"due_within_days"`
	ManagerID       string   `form:"manager_id"`
	TimeSensitive   bool     `form:"time_sensitive"`
	Sort            NeedSort `form:"sort"`
	Limit           uint64   `form:"limit"`
}

type CreateNeedRequest struct {
	Title           string          `json:"title" validate:"required,max=200"`
	Description     string          `json:"description" validate:"max=4000"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Quantity        int             `json:"quantity" validate:"required,gt=0"`
	Priority        Priority        `json:"priority" validate:"omitempty,oneof=urgent high normal"`
	Category        string          `json:"category" validate:"required,max=100"`
	OrgType         string          `json:"org_type" validate:"max=100"`
	Deadline        *time.Time      `json:"deadline"`
	Perishable      bool            `json:"perishable"`
	BundleTag       *string         `json:"bundle_tag" validate:"omitempty,max=100"`
	ServiceRequired bool            `json:"service_required"`
}

// UpdateNeedRequest only touches the fields that are present.
type UpdateNeedRequest struct {
	Title           *string          `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string          `json:"description" validate:"omitempty,max=4000"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	Quantity        *int             `json:"quantity" validate:"omitempty,gt=0"`
	Priority        *Priority        `json:"priority" validate:"omitempty,oneof=urgent high normal"`
	Category        *string          `json:"category" validate:"omitempty,min=1,max=100"`
	OrgType         *string          `json:"org_type" validate:"omitempty,max=100"`
	Deadline        *time.Time       `json:"deadline"`
	ClearDeadline   bool             `json:"clear_deadline"`
	Perishable      *bool            `json:"perishable"`
	BundleTag       *string          `json:"bundle_tag" validate:"omitempty,max=100"`
	ServiceRequired *bool            `json:"service_required"`
}
