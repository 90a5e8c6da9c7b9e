package inventory

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/support-tools/fortisync/internal/model"
)

var (
	// ErrSnapshot is returned when the local snapshot file holds an
	// unexpected data structure.
	ErrSnapshot = errors.New("error in asset snapshot file")
)

// Snapshot reads assets from a local JSON file, either a bare asset array or
// the FortiCare response shape {"assets": [...]}. A missing file yields an
// empty asset list.
type Snapshot struct {
	Path   string
	logger *logrus.Logger
}

// NewSnapshotSource returns a Snapshot source over the given file path.
func NewSnapshotSource(path string, logger *logrus.Logger) *Snapshot {
	return &Snapshot{Path: path, logger: logger}
}

func (s *Snapshot) Assets(_ context.Context) ([]model.Asset, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.WithField("path", s.Path).Warn("asset snapshot file not found")
			return []model.Asset{}, nil
		}

		return nil, errors.Wrap(ErrSnapshot, err.Error())
	}

	return decodeAssets(data)
}

// Replace atomically swaps the snapshot contents for payload, keeping a
// .backup of the previous file and restoring it when the write fails.
func (s *Snapshot) Replace(payload []byte) error {
	backupPath := s.Path + ".backup"

	if _, err := os.Stat(s.Path); err == nil {
		if err := os.Rename(s.Path, backupPath); err != nil {
			s.logger.WithError(err).Warn("could not create snapshot backup")
		}
	}

	if err := os.WriteFile(s.Path, payload, 0644); err != nil {
		// restore the previous snapshot
		if _, statErr := os.Stat(backupPath); statErr == nil {
			if restoreErr := os.Rename(backupPath, s.Path); restoreErr == nil {
				s.logger.Info("restored snapshot backup after failed write")
			}
		}

		return errors.Wrap(ErrSnapshot, err.Error())
	}

	return nil
}

// decodeAssets accepts both the wrapped and the bare asset encodings.
func decodeAssets(data []byte) ([]model.Asset, error) {
	var wrapped struct {
		Assets []model.Asset `json:"assets"`
	}

	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Assets != nil {
		return wrapped.Assets, nil
	}

	var assets []model.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, errors.Wrap(ErrSnapshot, "unexpected data structure")
	}

	return assets, nil
}
