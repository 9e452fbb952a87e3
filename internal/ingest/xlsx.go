// Package ingest loads the source address registry from XLSX into the
// store. Rows are cleaned (decimal-comma coordinates, whitespace) and each
// record gets a normalized geocoding query built from its street, settlement
// and municipality.
package ingest

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/model"
	"github.com/sells-group/geocode-cli/internal/store"
	"github.com/sells-group/geocode-cli/internal/translit"
)

// Registry column headers, as they appear in the source file.
const (
	colName         = "Име"
	colAddress      = "Адрес"
	colSettlement   = "Населено място"
	colMunicipality = "Община"
	colLongitude    = "Longitude"
	colLatitude     = "Latitude"
)

// streetMarkers introduce the street part of a raw address; everything
// before the first marker is administrative noise.
var streetMarkers = []string{"ул.", "бул.", "пл.", "кв.", "жк."}

var postalCode = regexp.MustCompile(`,?\s*п\.к\.\s*\d+`)

// Importer ingests registry rows into the store.
type Importer struct {
	store   store.Store
	country string
}

// NewImporter builds an Importer. country defaults to "България".
func NewImporter(st store.Store, country string) *Importer {
	if country == "" {
		country = "България"
	}
	return &Importer{store: st, country: country}
}

// Stats summarizes one import run.
type Stats struct {
	Imported int
	Skipped  int
}

// ImportXLSX reads the first sheet of the registry file and upserts one
// record per row. Re-importing the same file updates source fields only.
func (im *Importer) ImportXLSX(ctx context.Context, path string) (*Stats, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: file has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: sheet is empty")
	}

	cols, err := mapHeader(sheet.Rows[0])
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return stats, eris.Wrap(ctx.Err(), "ingest: cancelled")
		}

		rec := recordFromRow(row, cols, im.country)
		if rec.Name == "" && rec.RawAddress == "" {
			stats.Skipped++
			continue
		}

		if _, err := im.store.UpsertRecord(ctx, rec); err != nil {
			return stats, eris.Wrapf(err, "ingest: upsert %q", rec.Name)
		}
		stats.Imported++
	}

	zap.L().Info("registry imported",
		zap.String("file", path),
		zap.Int("imported", stats.Imported),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func mapHeader(header *xlsx.Row) (map[string]int, error) {
	cols := make(map[string]int, len(header.Cells))
	for i, cell := range header.Cells {
		cols[strings.TrimSpace(cell.String())] = i
	}
	for _, required := range []string{colName, colAddress, colSettlement, colMunicipality} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("ingest: missing column %q", required)
		}
	}
	return cols, nil
}

func recordFromRow(row *xlsx.Row, cols map[string]int, country string) model.AddressRecord {
	cell := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[i].String())
	}

	rec := model.AddressRecord{
		Name:         cell(colName),
		RawAddress:   cell(colAddress),
		Locality:     cell(colSettlement),
		Municipality: cell(colMunicipality),
	}
	rec.Query = BuildQuery(rec.RawAddress, rec.Locality, rec.Municipality, country)

	lat := ParseCoordinate(cell(colLatitude))
	lon := ParseCoordinate(cell(colLongitude))
	if lat != nil && lon != nil {
		rec.Source = &model.Coordinate{Lat: *lat, Lon: *lon}
	}
	return rec
}

// ParseCoordinate parses a coordinate cell, accepting decimal commas
// ("25,0516609"). Unparseable or empty values yield nil.
func ParseCoordinate(s string) *float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// BuildQuery assembles the normalized geocoding query:
// "<street>, <settlement>, <municipality>, <country>". The street part
// starts at the first street marker in the raw address, with postal codes
// stripped; the settlement loses its ГРАД/СЕЛО prefix; the municipality is
// included only when it differs from the settlement.
func BuildQuery(address, settlement, municipality, country string) string {
	var parts []string

	if street := streetPart(address); street != "" {
		parts = append(parts, street)
	}

	cleanSettlement := strings.TrimSpace(stripPrefix(settlement))
	if cleanSettlement != "" {
		parts = append(parts, cleanSettlement)
	}

	municipality = strings.TrimSpace(municipality)
	if municipality != "" && !strings.EqualFold(translit.Normalize(municipality), translit.Normalize(cleanSettlement)) {
		parts = append(parts, municipality)
	}

	parts = append(parts, country)
	return strings.Join(parts, ", ")
}

func streetPart(address string) string {
	lower := strings.ToLower(address)
	for _, marker := range streetMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		street := address[idx:]
		street = postalCode.ReplaceAllString(street, "")
		return strings.Join(strings.Fields(street), " ")
	}
	return ""
}

func stripPrefix(settlement string) string {
	s := strings.TrimSpace(settlement)
	for _, p := range []string{"СЕЛО ", "ГРАД ", "С. ", "ГР. "} {
		if strings.HasPrefix(strings.ToUpper(s), p) {
			return s[len(p):]
		}
	}
	return s
}
