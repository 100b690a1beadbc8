package station

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileSource reads stations from a YAML document on every call so edits
// are picked up by the next ingestion cycle.
//
//	stations:
//	  - id: urn:ngsi-ld:Station:HN-HD
//	    code: HN-HD
//	    status: active
//	    location: {lat: 20.97, lon: 105.77}
//	    city: Hà Nội
//	    district: Hà Đông
type FileSource struct {
	path string
}

// NewFileSource returns a source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type stationFile struct {
	Stations []Station `yaml:"stations"`
}

// ListActiveStations loads the file and returns its active stations.
func (f *FileSource) ListActiveStations(context.Context) ([]Station, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("stations: read file: %w", err)
	}

	var doc stationFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("stations: decode yaml: %w", err)
	}

	for i, st := range doc.Stations {
		if st.Code == "" {
			return nil, fmt.Errorf("stations: entry %d has no code", i)
		}
		if st.Status == "" {
			doc.Stations[i].Status = StatusActive
		}
	}
	return filterActive(doc.Stations), nil
}
