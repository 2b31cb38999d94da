package emission

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

type tableFile struct {
	Name    string   `yaml:"name"`
	Factors []Factor `yaml:"factors"`
}

// LoadTable reads an emission table from a YAML or XLSX file.
//
// YAML files hold a name and a list of factors. Spreadsheets are read from
// the first sheet: a header row naming mode and kg_per_km, optionally
// cost_per_km and speed_kmh, followed by one row per mode.
func LoadTable(path string) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".xlsx", ".xlsm":
		return loadSheet(path)
	default:
		return nil, fmt.Errorf("unsupported emission table format: %s", ext)
	}
}

func loadYAML(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tf.Name == "" {
		tf.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return NewTable(tf.Name, tf.Factors)
}

func loadSheet(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: expected a header row and at least one mode", path)
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	modeCol, okMode := cols["mode"]
	kgCol, okKg := cols["kg_per_km"]
	if !okMode || !okKg {
		return nil, fmt.Errorf("%s: header must contain mode and kg_per_km", path)
	}

	var factors []Factor
	for i, row := range rows[1:] {
		mode := cell(row, modeCol)
		if mode == "" {
			continue
		}
		kg, err := strconv.ParseFloat(cell(row, kgCol), 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: kg_per_km: %w", path, i+2, err)
		}
		fac := Factor{Mode: mode, KgPerKm: kg}
		if c, ok := cols["cost_per_km"]; ok {
			if fac.CostPerKm, err = optional(cell(row, c)); err != nil {
				return nil, fmt.Errorf("%s row %d: cost_per_km: %w", path, i+2, err)
			}
		}
		if c, ok := cols["speed_kmh"]; ok {
			if fac.SpeedKmh, err = optional(cell(row, c)); err != nil {
				return nil, fmt.Errorf("%s row %d: speed_kmh: %w", path, i+2, err)
			}
		}
		factors = append(factors, fac)
	}
	log.Debug().Str("path", path).Int("modes", len(factors)).Msg("Loaded emission table from sheet")
	return NewTable(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), factors)
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// optional parses a cell that may be left blank.
func optional(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
