package measure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

// ExportExtension is appended to every export filename.
const ExportExtension = ".geojson"

// ExportContentType is the media type of exported files.
const ExportContentType = "application/geo+json"

// MsgNothingToExport is shown when the registry is empty.
const MsgNothingToExport = "No measurements to export"

// ErrNothingToExport is returned by Export on an empty registry.
var ErrNothingToExport = errors.New("no measurements to export")

// Download is a serialized export ready to be handed to the user.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
	Features    int
}

// Saver delivers a download to the user.
type Saver interface {
	Save(d Download) error
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Alert(msg string)
}

// Export serializes every registered feature to GeoJSON in EPSG:4326 and
// passes it to the saver. With nothing registered the user is alerted and
// nothing is saved.
func (v *Viewer) Export(filename string) (*Download, error) {
	if v.registry.Len() == 0 {
		v.notifier.Alert(MsgNothingToExport)
		return nil, ErrNothingToExport
	}

	data, err := v.registry.MarshalGeoJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding measurements: %w", err)
	}

	d := Download{
		Filename:    ExportFilename(filename, v.projectName),
		ContentType: ExportContentType,
		Data:        data,
		Features:    v.registry.Len(),
	}
	if err := v.saver.Save(d); err != nil {
		return nil, fmt.Errorf("saving %s: %w", d.Filename, err)
	}
	v.log.Info().Str("file", d.Filename).Int("features", d.Features).Msg("measurements exported")
	return &d, nil
}

// FeatureCollection converts the registry to GeoJSON features in EPSG:4326.
func (r *Registry) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range r.Features() {
		g := project.Geometry(orb.Clone(f.Geometry), project.Mercator.ToWGS84)
		gf := geojson.NewFeature(g)
		gf.ID = f.ID
		for k, val := range f.Properties {
			gf.Properties[k] = val
		}
		fc.Append(gf)
	}
	return fc
}

// MarshalGeoJSON encodes the registry as a GeoJSON FeatureCollection.
func (r *Registry) MarshalGeoJSON() ([]byte, error) {
	return r.FeatureCollection().MarshalJSON()
}

// ExportFilename builds the download name from user input, falling back to
// the project name.
func ExportFilename(input, projectName string) string {
	name := strings.TrimSpace(input)
	if name == "" {
		name = projectName
	}
	if name == "" {
		name = "measurements"
	}
	if !strings.HasSuffix(strings.ToLower(name), ExportExtension) {
		name += ExportExtension
	}
	return name
}
