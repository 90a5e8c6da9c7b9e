// Package reconcile implements the expiration-to-event reconciliation engine:
// it fans expiring devices out over the technician roster and creates the
// missing reminder events, deduplicating per (device, technician) pair.
package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/support-tools/fortisync/internal/calendar"
	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
)

const (
	pkgName = "internal/reconcile"
)

// Reconciler drives one reconciliation run against the calendar collaborator.
// It holds no state across runs; construct one per run.
type Reconciler struct {
	calendar    calendar.Calendar
	technicians []model.Technician
	template    model.EventTemplate
	logger      *logrus.Logger
}

// New returns a Reconciler over the given roster and event template.
func New(cal calendar.Calendar, technicians []model.Technician, template model.EventTemplate, logger *logrus.Logger) *Reconciler {
	return &Reconciler{
		calendar:    cal,
		technicians: technicians,
		template:    template,
		logger:      logger,
	}
}

// Sync walks the devices in filter-result order and, for each technician in
// roster order, creates the reminder event unless one already exists. Create
// failures are counted and do not abort the run; events are never updated or
// deleted. At most one create is attempted per (device, technician) pair.
func (r *Reconciler) Sync(ctx context.Context, devices []*model.ExpiringDevice) model.SyncResult {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Sync")
	defer span.End()

	result := model.SyncResult{
		RunID:        uuid.New(),
		DevicesFound: len(devices),
	}

	for _, device := range devices {
		r.logger.WithFields(logrus.Fields{
			"serial":    device.Serial,
			"services":  len(device.Services),
			"eventDate": device.EventDateStr,
		}).Info("processing expiring device")

		for _, technician := range r.technicians {
			fields := logrus.Fields{
				"serial":     device.Serial,
				"eventDate":  device.EventDateStr,
				"technician": technician.Name,
			}

			exists, err := r.calendar.Exists(ctx, device.Serial, device.EventDateStr, technician.ID)
			if err != nil {
				// treated as not found so the pair is retried by recreation
				r.logger.WithFields(fields).WithError(err).Warn("event existence check failed")

				exists = false
			}

			if exists {
				r.logger.WithFields(fields).Info("event already exists, skipping")
				result.EventsSkipped++
				metrics.EventOutcomeCounter.WithLabelValues("skipped").Inc()

				continue
			}

			if err := r.calendar.Create(ctx, device, device.EventDateStr, technician.ID, r.template); err != nil {
				r.logger.WithFields(fields).WithError(err).Error("event creation failed")
				result.EventsFailed++
				metrics.EventOutcomeCounter.WithLabelValues("failed").Inc()

				continue
			}

			r.logger.WithFields(fields).Info("event created")
			result.EventsCreated++
			metrics.EventOutcomeCounter.WithLabelValues("created").Inc()
		}
	}

	metrics.DevicesFoundCounter.Add(float64(result.DevicesFound))

	result.CompletedAt = time.Now()

	return result
}
