// Package calendar provides the planning-calendar collaborator the
// reconciliation engine creates reminder events through.
package calendar

import (
	"context"

	"github.com/support-tools/fortisync/internal/model"
)

// Calendar is the capability set the reconciliation engine requires from the
// booking system.
type Calendar interface {
	// Exists reports whether a reminder event for the (serial, event date,
	// technician) triple is already present. Implementations tolerate
	// transient lookup failures by reporting false, so the engine attempts
	// creation rather than silently skipping.
	Exists(ctx context.Context, serial, eventDate string, technicianID int64) (bool, error)

	// Create books a reminder event for the device on the given date,
	// assigned to the technician, applying the fixed event template fields.
	// It is safe to call again on a future run for the same triple.
	Create(ctx context.Context, device *model.ExpiringDevice, eventDate string, technicianID int64, template model.EventTemplate) error
}
