package inventory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	return logger
}

func Test_Snapshot_Assets(t *testing.T) {
	cases := []struct {
		name        string
		contents    string
		wantSerials []string
		wantErr     bool
	}{
		{
			"wrapped forticare response shape",
			`{"assets": [{"serialNumber": "FGT60F0000000001", "productModel": "FortiGate-60F"}]}`,
			[]string{"FGT60F0000000001"},
			false,
		},
		{
			"bare asset array",
			`[{"serialNumber": "FGT100F000000001"}, {"serialNumber": "FGT100F000000002"}]`,
			[]string{"FGT100F000000001", "FGT100F000000002"},
			false,
		},
		{
			"empty wrapped list",
			`{"assets": []}`,
			[]string{},
			false,
		},
		{
			"unexpected structure",
			`{"devices": "nope"}`,
			nil,
			true,
		},
		{
			"not json at all",
			`hello`,
			nil,
			true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "snapshot.json")
			require.NoError(t, os.WriteFile(path, []byte(tc.contents), 0o600))

			s := NewSnapshotSource(path, testLogger())

			assets, err := s.Assets(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrSnapshot)

				return
			}

			require.NoError(t, err)
			require.Len(t, assets, len(tc.wantSerials))

			for i, serial := range tc.wantSerials {
				assert.Equal(t, serial, assets[i].SerialNumber)
			}
		})
	}
}

func Test_Snapshot_MissingFile(t *testing.T) {
	s := NewSnapshotSource(filepath.Join(t.TempDir(), "absent.json"), testLogger())

	assets, err := s.Assets(context.Background())
	require.NoError(t, err)
	assert.Empty(t, assets)
}

func Test_Snapshot_Replace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"assets": []}`), 0o600))

	s := NewSnapshotSource(path, testLogger())

	payload := []byte(`{"assets": [{"serialNumber": "FGT60F0000000001"}]}`)
	require.NoError(t, s.Replace(payload))

	// new contents in place
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	// previous contents preserved as backup
	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	assert.Equal(t, `{"assets": []}`, string(backup))
}

func Test_Snapshot_Replace_NoExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")

	s := NewSnapshotSource(path, testLogger())
	require.NoError(t, s.Replace([]byte(`{"assets": []}`)))

	_, err := os.Stat(path + ".backup")
	assert.True(t, os.IsNotExist(err))
}
