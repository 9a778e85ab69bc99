package registry

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

func testLoader() *Loader {
	return NewLoader(zerolog.Nop())
}

func TestParseTowersSkipsMalformedRows(t *testing.T) {
	csvData := strings.Join([]string{
		"tower_id,tower_name,camp_name,latitude,longitude",
		"1,Loc. 1,Trombay,19.01,72.90",
		"bad,Loc. 2,Kalyan,19.02,72.91",
		"3,Loc. 3,Panvel,not-a-number,72.92",
		"4,Loc. 4,,19.04,72.93",
	}, "\n")

	towers, err := testLoader().parseTowers(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseTowers: %v", err)
	}
	if len(towers) != 2 {
		t.Fatalf("got %d towers, want 2", len(towers))
	}
	if towers[0].ID != 1 || towers[1].ID != 4 {
		t.Errorf("unexpected surviving rows: %+v", towers)
	}
	if towers[1].CampName != "Unknown Camp" {
		t.Errorf("empty camp should default, got %q", towers[1].CampName)
	}
}

func TestParseTowersMissingColumns(t *testing.T) {
	csvData := "foo,bar\n1,2\n"
	if _, err := testLoader().parseTowers(strings.NewReader(csvData)); err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func scheduleWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestLoadScheduleFlexibleHeaders(t *testing.T) {
	buf := scheduleWorkbook(t, [][]interface{}{
		{"Line Name", "Voltage Level", "Capacity (Amps)", "Commissioning Year"},
		{"Trombay-Salsette", "220 kV", 1200, 1995},
		{"Kalwa-Padgha", 110, "approx 800 A", 2010},
		{"", 110, 900, 2000},               // no line name: skipped
		{"Total 220kV", "220 kV", "", ""},  // subtotal row: skipped
		{"Bhira Feeder", "unknown", 500, 1}, // no parsable voltage: skipped
	})

	lines := make(map[string]LineMetadata)
	var order []string
	n, err := testLoader().loadSchedule(buf, lines, &order)
	if err != nil {
		t.Fatalf("loadSchedule: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d lines, want 2", n)
	}

	trombay, ok := lines["Trombay-Salsette"]
	if !ok {
		t.Fatal("missing Trombay-Salsette")
	}
	if trombay.VoltageKV != 220 || trombay.CapacityAmps != 1200 || trombay.CommissioningYear != 1995 {
		t.Errorf("unexpected metadata: %+v", trombay)
	}

	kalwa := lines["Kalwa-Padgha"]
	if kalwa.VoltageKV != 110 {
		t.Errorf("bare numeric voltage not coerced: %+v", kalwa)
	}
	if kalwa.CapacityAmps != 800 {
		t.Errorf("capacity should be pulled from free text, got %d", kalwa.CapacityAmps)
	}

	if len(order) != 2 || order[0] != "Trombay-Salsette" {
		t.Errorf("insertion order not preserved: %v", order)
	}
}

func TestCoerceHelpers(t *testing.T) {
	voltTests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"220 kV", 220, true},
		{"110kV", 110, true},
		{"400", 400, true},
		{"66.0", 66, true},
		{"n/a", 0, false},
		{"", 0, false},
	}
	for _, tt := range voltTests {
		got, ok := coerceVoltage(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("coerceVoltage(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}

	intTests := []struct {
		in   string
		def  int
		want int
	}{
		{"1200", 1000, 1200},
		{"1200.0", 1000, 1200},
		{"about 950 amps", 1000, 950},
		{"", 1000, 1000},
		{"none", 2000, 2000},
	}
	for _, tt := range intTests {
		if got := coerceInt(tt.in, tt.def); got != tt.want {
			t.Errorf("coerceInt(%q, %d) = %d, want %d", tt.in, tt.def, got, tt.want)
		}
	}
}
