package registry

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

var (
	voltagePattern = regexp.MustCompile(`(\d+)\s*kV`)
	numberPattern  = regexp.MustCompile(`\d+`)
)

// Loader builds a Registry from the operator's static data files: a
// towers CSV and one or more line schedule workbooks. A malformed row is
// skipped with a warning, never aborting the rest of the load.
type Loader struct {
	log zerolog.Logger
}

func NewLoader(log zerolog.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads all configured sources. Missing files are tolerated so the
// service can run with whichever schedules are deployed alongside it.
func (l *Loader) Load(towersCSV string, schedulePaths []string) (*Registry, error) {
	towers, err := l.loadTowers(towersCSV)
	if err != nil {
		l.log.Warn().Err(err).Str("path", towersCSV).Msg("could not load towers file")
	}

	lines := make(map[string]LineMetadata)
	var order []string
	for _, path := range schedulePaths {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				l.log.Warn().Err(err).Str("path", path).Msg("could not open line schedule")
			}
			continue
		}
		n, err := l.loadSchedule(f, lines, &order)
		f.Close()
		if err != nil {
			l.log.Warn().Err(err).Str("path", path).Msg("could not parse line schedule")
			continue
		}
		l.log.Info().Str("path", path).Int("lines", n).Msg("loaded line schedule")
	}

	l.log.Info().
		Int("towers", len(towers)).
		Int("lines", len(lines)).
		Msg("asset registry loaded")

	return New(towers, lines, order), nil
}

func (l *Loader) loadTowers(path string) ([]Tower, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return l.parseTowers(f)
}

func (l *Loader) parseTowers(r io.Reader) ([]Tower, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read towers csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	cols := indexColumns(records[0])
	idIdx, okID := pickColumn(cols, "tower_id", "id")
	nameIdx, okName := pickColumn(cols, "tower_name", "name")
	campIdx, _ := pickColumn(cols, "camp_name", "camp")
	latIdx, okLat := pickColumn(cols, "latitude", "lat")
	lonIdx, okLon := pickColumn(cols, "longitude", "lon", "lng")
	if !okID || !okName || !okLat || !okLon {
		return nil, fmt.Errorf("towers csv missing required columns")
	}

	towers := make([]Tower, 0, len(records)-1)
	for i, row := range records[1:] {
		tower, err := parseTowerRow(row, idIdx, nameIdx, campIdx, latIdx, lonIdx)
		if err != nil {
			l.log.Warn().Err(err).Int("row", i+2).Msg("skipping malformed tower row")
			continue
		}
		towers = append(towers, tower)
	}
	return towers, nil
}

func parseTowerRow(row []string, idIdx, nameIdx, campIdx, latIdx, lonIdx int) (Tower, error) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	id, err := strconv.Atoi(get(idIdx))
	if err != nil {
		return Tower{}, fmt.Errorf("bad tower id %q", get(idIdx))
	}
	name := get(nameIdx)
	if name == "" {
		return Tower{}, fmt.Errorf("empty tower name")
	}
	lat, err := strconv.ParseFloat(get(latIdx), 64)
	if err != nil {
		return Tower{}, fmt.Errorf("bad latitude %q", get(latIdx))
	}
	lon, err := strconv.ParseFloat(get(lonIdx), 64)
	if err != nil {
		return Tower{}, fmt.Errorf("bad longitude %q", get(lonIdx))
	}

	camp := get(campIdx)
	if camp == "" {
		camp = "Unknown Camp"
	}

	return Tower{ID: id, Name: name, CampName: camp, Latitude: lat, Longitude: lon}, nil
}

// loadSchedule reads every sheet of a line schedule workbook, picking
// columns by header heuristics since the operator's spreadsheets vary.
func (l *Loader) loadSchedule(r io.Reader, lines map[string]LineMetadata, order *[]string) (int, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return 0, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	loaded := 0
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil || len(rows) < 2 {
			continue
		}

		cols := indexColumns(rows[0])
		lineIdx, okLine := pickColumnContains(cols, "line name", "line")
		voltIdx, okVolt := pickColumnContains(cols, "volt")
		capIdx, _ := pickColumnContains(cols, "amp", "capacity")
		yearIdx, _ := pickColumnContains(cols, "commission", "year")
		if !okLine || !okVolt {
			continue
		}

		for _, row := range rows[1:] {
			name, meta, ok := parseScheduleRow(row, lineIdx, voltIdx, capIdx, yearIdx)
			if !ok {
				continue
			}
			if _, exists := lines[name]; !exists {
				*order = append(*order, name)
			}
			lines[name] = meta
			loaded++
		}
	}
	return loaded, nil
}

func parseScheduleRow(row []string, lineIdx, voltIdx, capIdx, yearIdx int) (string, LineMetadata, bool) {
	get := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	name := get(lineIdx)
	if name == "" {
		return "", LineMetadata{}, false
	}
	// Subtotal rows carry "Total ..." in one of the data cells.
	for _, idx := range []int{lineIdx, voltIdx, capIdx, yearIdx} {
		if strings.HasPrefix(strings.ToLower(get(idx)), "total") {
			return "", LineMetadata{}, false
		}
	}

	voltage, ok := coerceVoltage(get(voltIdx))
	if !ok {
		return "", LineMetadata{}, false
	}

	return name, LineMetadata{
		VoltageKV:         voltage,
		CapacityAmps:      coerceInt(get(capIdx), 1000),
		CommissioningYear: coerceInt(get(yearIdx), 2000),
	}, true
}

// coerceVoltage accepts either a "220 kV" style cell or a bare number.
func coerceVoltage(raw string) (int, bool) {
	if m := voltagePattern.FindStringSubmatch(raw); m != nil {
		v, err := strconv.Atoi(m[1])
		return v, err == nil
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v), true
	}
	return 0, false
}

// coerceInt parses a numeric cell, falling back to the first digit run
// inside free text, then to the given default.
func coerceInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return int(v)
	}
	if m := numberPattern.FindString(raw); m != "" {
		if v, err := strconv.Atoi(m); err == nil {
			return v
		}
	}
	return def
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		if _, exists := cols[key]; !exists {
			cols[key] = i
		}
	}
	return cols
}

func pickColumn(cols map[string]int, names ...string) (int, bool) {
	for _, name := range names {
		if idx, ok := cols[name]; ok {
			return idx, true
		}
	}
	return -1, false
}

func pickColumnContains(cols map[string]int, fragments ...string) (int, bool) {
	for _, frag := range fragments {
		for key, idx := range cols {
			if strings.Contains(key, frag) {
				return idx, true
			}
		}
	}
	return -1, false
}
