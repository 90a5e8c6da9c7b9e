package expiry

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/support-tools/fortisync/internal/model"
)

const unknownValue = "N/A"

// Filter selects firewall assets with entitlements expiring inside an
// inclusive [MinDays, MaxDays] days-remaining window and groups the matches
// per device serial.
//
// nolint:govet // fieldalignment struct is easier to read in the current format
type Filter struct {
	// MinDays and MaxDays are the inclusive bounds on days-remaining.
	MinDays int
	MaxDays int

	logger *logrus.Logger

	// now is the reference clock, overridable in tests. "today" is derived
	// from it at local midnight once per FindExpiring invocation.
	now func() time.Time
}

// NewFilter returns a Filter over the given day-range window.
func NewFilter(minDays, maxDays int, logger *logrus.Logger) *Filter {
	return &Filter{
		MinDays: minDays,
		MaxDays: maxDays,
		logger:  logger,
		now:     time.Now,
	}
}

// IsFirewall reports whether a product model names a FortiGate firewall
// eligible for expiry reminders.
func IsFirewall(productModel string) bool {
	return strings.Contains(productModel, "FortiGate") ||
		strings.HasPrefix(productModel, "FGT") ||
		strings.HasPrefix(productModel, "FG-")
}

// FindExpiring scans the given assets and returns one ExpiringDevice per
// firewall serial with at least one entitlement whose days-remaining falls
// inside the window. Devices are returned in first-match encounter order.
//
// Entitlements with a missing or unparsable end date are skipped without
// affecting the rest of the asset. When a later matched entitlement has
// days-remaining less than or equal to the stored earliest, it takes over
// the earliest-expiration slot (last write wins on a tie).
func (f *Filter) FindExpiring(assets []model.Asset) []*model.ExpiringDevice {
	today := midnight(f.now())

	var devices []*model.ExpiringDevice

	bySerial := map[string]*model.ExpiringDevice{}

	for _, asset := range assets {
		if !IsFirewall(asset.ProductModel) {
			continue
		}

		serial := orUnknown(asset.SerialNumber)

		for _, entitlement := range asset.Entitlements {
			end, err := ParseEndDate(entitlement.EndDate)
			if err != nil {
				f.logger.WithFields(logrus.Fields{
					"serial":  serial,
					"endDate": entitlement.EndDate,
				}).Debug("skipping entitlement: " + err.Error())

				continue
			}

			daysRemaining := daysBetween(today, end)
			if daysRemaining < f.MinDays || daysRemaining > f.MaxDays {
				continue
			}

			device, exists := bySerial[serial]
			if !exists {
				eventDate, eventDateStr := ReminderDate(end)

				device = &model.ExpiringDevice{
					Serial:             serial,
					Model:              orUnknown(asset.ProductModel),
					Description:        descriptionOrSerial(asset.Description, serial),
					EarliestExpiration: entitlement.EndDate,
					EarliestDays:       daysRemaining,
					EventDate:          eventDate,
					EventDateStr:       eventDateStr,
				}

				bySerial[serial] = device
				devices = append(devices, device)
			}

			datePart, _, _ := strings.Cut(entitlement.EndDate, "T")
			device.Services = append(device.Services, model.ServiceSummary{
				Service:        orUnknown(entitlement.TypeDesc),
				Level:          orUnknown(entitlement.LevelDesc),
				ExpirationDate: datePart,
				DaysRemaining:  daysRemaining,
			})

			if daysRemaining <= device.EarliestDays {
				device.EarliestExpiration = entitlement.EndDate
				device.EarliestDays = daysRemaining
				device.EventDate, device.EventDateStr = ReminderDate(end)
			}
		}
	}

	return devices
}

func orUnknown(value string) string {
	if value == "" {
		return unknownValue
	}

	return value
}

func descriptionOrSerial(description, serial string) string {
	if description == "" {
		return serial
	}

	return description
}
