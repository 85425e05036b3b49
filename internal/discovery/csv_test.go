package discovery

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

func TestEntryToCSVRow(t *testing.T) {
	e := models.MonitoringEntry{
		ItemID:       "snmp_00_40_8c_11_22_33",
		ItemName:     "Security Camera (192.168.1.50)",
		Status:       models.DeviceStatusOnline,
		ResponseTime: 14,
		CreatedAt:    time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
		AdditionalMetrics: map[string]any{
			"device_type":      "IP Camera",
			"ip_address":       "192.168.1.50",
			"mac_address":      "00:40:8C:11:22:33",
			"manufacturer":     "Axis Communications AB",
			"services":         []any{"HTTP", "RTSP"},
			"discovery_method": "SNMP",
			"first_seen":       "2025-01-15T10:29:00Z",
		},
	}

	row := entryToCSVRow(e)
	if len(row) != len(csvHeaders()) {
		t.Fatalf("expected %d columns, got %d", len(csvHeaders()), len(row))
	}
	want := map[int]string{
		0:  "snmp_00_40_8c_11_22_33",
		2:  "IP Camera",
		3:  "192.168.1.50",
		7:  "14",
		8:  "HTTP;RTSP",
		9:  "SNMP",
		11: "2025-01-15T10:30:00Z",
	}
	for i, w := range want {
		if row[i] != w {
			t.Errorf("%s: got %q, want %q", csvHeaders()[i], row[i], w)
		}
	}
}

func TestEntryToCSVRow_MissingMetrics(t *testing.T) {
	row := entryToCSVRow(models.MonitoringEntry{ItemID: "device_10_0_0_1"})
	if len(row) != len(csvHeaders()) {
		t.Fatalf("expected %d columns, got %d", len(csvHeaders()), len(row))
	}
	if row[2] != "" || row[8] != "" {
		t.Errorf("missing metrics should render empty, got %q and %q", row[2], row[8])
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	entries := []models.MonitoringEntry{
		{ItemID: "a", ItemName: "Printer, upstairs"},
		{ItemID: "b", ItemName: "NAS"},
	}
	if err := writeCSV(&buf, entries); err != nil {
		t.Fatalf("writeCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want header + 2", len(records))
	}
	if records[1][1] != "Printer, upstairs" {
		t.Errorf("quoted field: got %q", records[1][1])
	}
}
