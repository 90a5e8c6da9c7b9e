package calendar

import (
	"context"
	"fmt"

	"github.com/support-tools/fortisync/internal/model"
)

// Mock implements the Calendar interface for tests.
//
// nolint:govet // fieldalignment struct is easier to read in the current format
type Mock struct {
	// Existing marks (serial, event date, technician) triples the existence
	// check reports as present.
	Existing map[string]bool

	// ExistsErr, when set, is returned by every Exists call.
	ExistsErr error
	// CreateErr, when set, is returned by every Create call.
	CreateErr error

	// CreatedKeys records the pair keys Create was called with, in order.
	CreatedKeys []string
}

func NewMockCalendar() *Mock {
	return &Mock{Existing: map[string]bool{}}
}

// PairKey is the canonical dedup key for a (serial, event date, technician)
// triple.
func PairKey(serial, eventDate string, technicianID int64) string {
	return fmt.Sprintf("%s|%s|%d", serial, eventDate, technicianID)
}

func (m *Mock) Exists(_ context.Context, serial, eventDate string, technicianID int64) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}

	return m.Existing[PairKey(serial, eventDate, technicianID)], nil
}

func (m *Mock) Create(_ context.Context, device *model.ExpiringDevice, eventDate string, technicianID int64, _ model.EventTemplate) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}

	key := PairKey(device.Serial, eventDate, technicianID)
	m.CreatedKeys = append(m.CreatedKeys, key)
	m.Existing[key] = true

	return nil
}
