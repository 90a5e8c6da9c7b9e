package model

import (
	"time"

	"github.com/google/uuid"
)

// Technician identifies a member of the fixed roster reminder events are
// fanned out to. The roster order is the configured order.
type Technician struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EventTemplate carries the fixed calendar-event fields applied to every
// reminder created in the planning calendar. The field vocabulary matches
// the Zoho Creator form of the deployment.
//
// nolint:govet // fieldalignment struct is easier to read in the current format
type EventTemplate struct {
	// StartTime and EndTime are time-of-day strings in HH:MM form.
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`

	// Tipologia and Reparto are the category / department labels.
	Tipologia string `json:"tipologia"`
	Reparto   string `json:"reparto"`

	// PlannedHours is the planned duration recorded on the event.
	PlannedHours float64 `json:"ore_pianificate"`

	// InternalActivityID is the Zoho internal-activity record the event
	// links to.
	InternalActivityID int64 `json:"attivita_interna_id"`
}

// SyncResult holds the aggregate outcome counters of one reconciliation run.
// It is produced once per run and not persisted.
type SyncResult struct {
	RunID uuid.UUID `json:"run_id"`

	DevicesFound  int `json:"devices_found"`
	EventsCreated int `json:"events_created"`
	EventsSkipped int `json:"events_skipped"`
	EventsFailed  int `json:"events_failed"`

	CompletedAt time.Time `json:"completed_at"`
}
