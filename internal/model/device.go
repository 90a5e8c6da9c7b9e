package model

import "time"

// ServiceSummary describes one matched entitlement on an expiring device.
type ServiceSummary struct {
	Service        string `json:"service"`
	Level          string `json:"level"`
	ExpirationDate string `json:"expiration_date"`
	DaysRemaining  int    `json:"days_remaining"`
}

// ExpiringDevice is a firewall with one or more entitlements expiring inside
// the configured day-range window, grouped by serial.
//
// The Earliest* fields and the event date track the matched entitlement with
// the fewest days remaining; on a tie the entitlement processed later in
// input order wins the slot.
//
// nolint:govet // fieldalignment struct is easier to read in the current format
type ExpiringDevice struct {
	Serial      string `json:"serial"`
	Model       string `json:"model"`
	Description string `json:"description"`

	// Services lists the matched entitlements in input order.
	Services []ServiceSummary `json:"services"`

	// EarliestExpiration is the raw end date of the earliest matched entitlement.
	EarliestExpiration string `json:"earliest_expiration"`
	// EarliestDays is the minimum days-remaining among matched entitlements.
	EarliestDays int `json:"earliest_days"`

	// EventDate is the reminder date derived from the earliest expiration,
	// adjusted off weekends.
	EventDate    time.Time `json:"event_date"`
	EventDateStr string    `json:"event_date_str"`
}
