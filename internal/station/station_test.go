package station

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSourceFiltersInactive(t *testing.T) {
	src := StaticSource{
		{Code: "A", Status: StatusActive},
		{Code: "B", Status: StatusMaintenance},
		{Code: "C", Status: StatusInactive},
	}

	got, err := src.ListActiveStations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Code)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	doc := `
stations:
  - id: urn:ngsi-ld:Station:HN-HD
    code: HN-HD
    location: {lat: 20.97, lon: 105.77}
    city: Hà Nội
    district: Hà Đông
  - id: urn:ngsi-ld:Station:HN-CG
    code: HN-CG
    status: maintenance
    location: {lat: 21.03, lon: 105.79}
    city: Hà Nội
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	got, err := NewFileSource(path).ListActiveStations(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "HN-HD", got[0].Code)
	assert.Equal(t, StatusActive, got[0].Status)
	assert.Equal(t, 20.97, got[0].Location.Lat)
	assert.Equal(t, "Hà Đông", got[0].District)
}

func TestFileSourceRejectsMissingCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stations.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stations:\n  - id: x\n"), 0o600))

	_, err := NewFileSource(path).ListActiveStations(context.Background())
	assert.Error(t, err)
}
