package types

import "time"

type SignupStatus string

const (
	SignupStatusConfirmed  SignupStatus = "confirmed"
	SignupStatusWaitlisted SignupStatus = "waitlisted"
	SignupStatusCancelled  SignupStatus = "cancelled"
)

type Event struct {
	ID             string     `db:"id" json:"id"`
	NeedID         string     `db:"need_id" json:"need_id"`
	Title          string     `db:"title" json:"title"`
	Description    string     `db:"description" json:"description"`
	Location       string     `db:"location" json:"location"`
	StartsAt       time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt         *time.Time `db:"ends_at" json:"ends_at,omitempty"`
	VolunteerSlots int        `db:"volunteer_slots" json:"volunteer_slots"`
	CreatedBy      string     `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type EventSignup struct {
	EventID   string       `db:"event_id" json:"event_id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Status    SignupStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

type EventDetail struct {
	*Event
	ConfirmedCount int            `json:"confirmed_count"`
	WaitlistCount  int            `json:"waitlist_count"`
	Signups        []*EventSignup `json:"signups"`
}

type CreateEventRequest struct {
	NeedID         string     `json:"need_id" validate:"required"`
	Title          string     `json:"title" validate:"required,max=200"`
	Description    string     `json:"description" validate:"max=4000"`
	Location       string     `json:"location" validate:"max=200"`
	StartsAt       time.Time  `json:"starts_at" validate:"required"`
	EndsAt         *time.Time `json:"ends_at"`
	VolunteerSlots int        `json:"volunteer_slots" validate:"gte=0"`
}

type UpdateEventRequest struct {
	Title          *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description    *string    `json:"description" validate:"omitempty,max=4000"`
	Location       *string    `json:"location" validate:"omitempty,max=200"`
	StartsAt       *time.Time `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at"`
	VolunteerSlots *int       `json:"volunteer_slots" validate:"omitempty,gte=0"`
}

type SignupRequest struct {
	UserID string `json:"user_id" validate:"required"`
}
