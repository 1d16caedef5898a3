package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/mesh-intelligence/catchlog/pkg/types"
)

// columns is the header row shared by the CSV and XLSX exports.
var columns = []string{
	"ID",
	"Species",
	"Weight (kg)",
	"Latitude",
	"Longitude",
	"Location Name",
	"Date Time",
	"Bait",
	"Weather",
	"Notes",
}

// SheetName is the worksheet holding the XLSX export.
const SheetName = "Catches"

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func optString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func optWeather(v *types.Weather) string {
	if v == nil {
		return ""
	}
	return string(*v)
}

// writeCSV writes the header and one row per catch. Fields holding commas,
// quotes or line breaks are quoted with inner quotes doubled.
func writeCSV(w io.Writer, catches []types.Catch) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, c := range catches {
		row := []string{
			strconv.FormatInt(c.ID, 10),
			c.Species,
			formatFloat(c.Weight),
			optFloat(c.Latitude),
			optFloat(c.Longitude),
			optString(c.LocationName),
			c.DateTime,
			optString(c.Bait),
			optWeather(c.Weather),
			optString(c.Notes),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// scopedCatch is the reduced record shape of the JSON export.
type scopedCatch struct {
	ID       int64          `json:"id"`
	Species  string         `json:"species"`
	Weight   float64        `json:"weight"`
	Location scopedLocation `json:"location"`
	DateTime string         `json:"dateTime"`
	Bait     *string        `json:"bait"`
	Weather  *types.Weather `json:"weather"`
	Notes    *string        `json:"notes"`
}

type scopedLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      *string  `json:"name"`
}

func writeJSON(w io.Writer, catches []types.Catch) error {
	out := make([]scopedCatch, 0, len(catches))
	for _, c := range catches {
		out = append(out, scopedCatch{
			ID:      c.ID,
			Species: c.Species,
			Weight:  c.Weight,
			Location: scopedLocation{
				Latitude:  c.Latitude,
				Longitude: c.Longitude,
				Name:      c.LocationName,
			},
			DateTime: c.DateTime,
			Bait:     c.Bait,
			Weather:  c.Weather,
			Notes:    c.Notes,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeXLSX writes a workbook with one sheet: a bold header row, then one
// row per catch with numbers stored as numbers and absent values blank.
func writeXLSX(w io.Writer, catches []types.Catch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	for i, header := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return err
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, headerStyle); err != nil {
		return err
	}

	for i, c := range catches {
		row := []any{
			c.ID,
			c.Species,
			c.Weight,
			nullableCell(c.Latitude),
			nullableCell(c.Longitude),
			nullableCell(c.LocationName),
			c.DateTime,
			nullableCell(c.Bait),
			optWeather(c.Weather),
			nullableCell(c.Notes),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	return f.Write(w)
}

func nullableCell[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
