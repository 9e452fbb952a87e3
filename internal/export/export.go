// Package export renders decided records for human review: a wide CSV with
// every stored field, and a GeoJSON FeatureCollection of final coordinates
// for map tooling.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geocode-cli/internal/model"
)

var csvHeader = []string{
	"id", "name", "address_raw", "address_query", "settlement", "municipality",
	"lat_src", "lon_src",
	"nom_lat", "nom_lon", "nom_kind", "nom_confidence", "nom_display", "nom_query",
	"g_lat", "g_lon", "g_kind", "g_confidence", "g_display",
	"dist_src_nom_m", "dist_src_g_m", "dist_nom_g_m",
	"best_provider", "best_lat", "best_lon", "status", "notes",
}

// WriteCSV writes one review row per record.
func WriteCSV(w io.Writer, recs []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}

	for _, rec := range recs {
		row := []string{
			strconv.FormatInt(rec.ID, 10),
			rec.Name, rec.RawAddress, rec.Query, rec.Locality, rec.Municipality,
		}
		row = append(row, coordCols(rec.Source)...)
		row = append(row, resultCols(rec.Primary)...)
		row = append(row, secondaryCols(rec.Secondary)...)
		row = append(row,
			distCol(rec.Distances.SourcePrimaryM),
			distCol(rec.Distances.SourceSecondaryM),
			distCol(rec.Distances.PrimarySecondaryM),
		)
		row = append(row, decisionCols(rec.Decision)...)

		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", rec.ID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func coordCols(c *model.Coordinate) []string {
	if c == nil {
		return []string{"", ""}
	}
	return []string{floatCol(c.Lat), floatCol(c.Lon)}
}

func resultCols(r *model.ProviderResult) []string {
	if r == nil || !r.Success {
		return []string{"", "", "", "", "", ""}
	}
	return append(coordCols(r.Coord),
		string(r.Kind), strconv.Itoa(r.Confidence), r.DisplayName, r.Query)
}

func secondaryCols(r *model.ProviderResult) []string {
	if r == nil || !r.Success {
		return []string{"", "", "", "", ""}
	}
	return append(coordCols(r.Coord),
		string(r.Kind), strconv.Itoa(r.Confidence), r.DisplayName)
}

func decisionCols(d *model.Decision) []string {
	if d == nil {
		return []string{"", "", "", "", ""}
	}
	cols := []string{string(d.Provider)}
	cols = append(cols, coordCols(d.Coord)...)
	return append(cols, string(d.Status), d.Notes)
}

func distCol(d *float64) string {
	if d == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", *d)
}

func floatCol(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// WriteGeoJSON writes a FeatureCollection of final coordinates. Records
// without a decided coordinate are omitted.
func WriteGeoJSON(w io.Writer, recs []model.Record) error {
	fc := &geojson.FeatureCollection{}
	for _, rec := range recs {
		if rec.Decision == nil || rec.Decision.Coord == nil {
			continue
		}
		c := rec.Decision.Coord
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.FormatInt(rec.ID, 10),
			Geometry: geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}).SetSRID(4326),
			Properties: map[string]interface{}{
				"name":         rec.Name,
				"settlement":   rec.Locality,
				"municipality": rec.Municipality,
				"provider":     string(rec.Decision.Provider),
				"status":       string(rec.Decision.Status),
				"notes":        rec.Decision.Notes,
			},
		})
	}

	enc := json.NewEncoder(w)
	return eris.Wrap(enc.Encode(fc), "export: encode geojson")
}
