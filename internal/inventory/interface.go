// Package inventory provides the asset-source collaborators FortiCare device
// data is read from.
package inventory

import (
	"context"

	"github.com/support-tools/fortisync/internal/model"
)

// Source produces the raw asset records a reconciliation run filters.
// An empty slice is a valid result; the absence of live vendor data must not
// fail a run.
type Source interface {
	Assets(ctx context.Context) ([]model.Asset, error)
}
