package inventory

import (
	"context"

	"github.com/support-tools/fortisync/internal/model"
)

// Mock implements the Source interface for tests.
type Mock struct {
	AssetList []model.Asset
	Err       error
}

func NewMockSource(assets []model.Asset) *Mock {
	return &Mock{AssetList: assets}
}

func (m *Mock) Assets(_ context.Context) ([]model.Asset, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	return m.AssetList, nil
}
