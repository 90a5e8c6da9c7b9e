package inventory

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/support-tools/fortisync/internal/metrics"
	"github.com/support-tools/fortisync/internal/model"
)

// Refreshing is a Source that refreshes the local snapshot from the FortiCare
// API before reading it, falling back to the existing snapshot when the
// refresh fails. With the API integration disabled it reads the snapshot only.
type Refreshing struct {
	api      *FortiCare
	snapshot *Snapshot
	logger   *logrus.Logger
}

// NewRefreshingSource wires a FortiCare client and a snapshot file into one
// Source.
func NewRefreshingSource(api *FortiCare, snapshot *Snapshot, logger *logrus.Logger) *Refreshing {
	return &Refreshing{api: api, snapshot: snapshot, logger: logger}
}

func (r *Refreshing) Assets(ctx context.Context) ([]model.Asset, error) {
	if !r.api.Enabled() {
		r.logger.WithField("source", model.AssetSourceSnapshot).Info("forticare API not configured, using snapshot file")
		return r.snapshot.Assets(ctx)
	}

	assets, raw, err := r.api.Download(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("source", model.AssetSourceSnapshot).Warn("asset refresh failed, using existing snapshot")
		metrics.SnapshotRefreshCount.WithLabelValues("failed").Inc()

		return r.snapshot.Assets(ctx)
	}

	if err := r.snapshot.Replace(raw); err != nil {
		r.logger.WithError(err).Warn("could not persist refreshed snapshot")
	} else {
		metrics.SnapshotRefreshCount.WithLabelValues("success").Inc()
	}

	r.logger.WithField("source", model.AssetSourceFortiCare).Info("asset snapshot refreshed")

	return assets, nil
}
