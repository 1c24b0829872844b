package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity is one normalized row of a ranked snapshot.
type Entity struct {
	Rank     int                 `json:"rank"`
	Score    decimal.NullDecimal `json:"score"`
	Name     string              `json:"name"`
	Location string              `json:"location,omitempty"`
	Country  string              `json:"country,omitempty"`
	City     string              `json:"city,omitempty"`
	Region   string              `json:"region,omitempty"`
	Period   Period              `json:"period"`
}

// StoredEntity is an Entity as read back from the permanent store.
type StoredEntity struct {
	Entity
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type Policy string

const (
	// PolicyHistory appends one row per (name, period).
	PolicyHistory Policy = "history"
	// PolicyCurrent keeps a single row per name carrying the latest period.
	PolicyCurrent Policy = "current"
)

func (p Policy) Valid() bool {
	return p == PolicyHistory || p == PolicyCurrent
}

type MergeResult struct {
	Attempted int `json:"attempted"`
	Committed int `json:"committed"`
}
