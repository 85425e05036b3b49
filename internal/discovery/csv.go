package discovery

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/networknest/networknest/pkg/models"
)

// csvHeaders returns the CSV column headers of the device export.
func csvHeaders() []string {
	return []string{
		"item_id", "item_name", "device_type", "ip_address", "mac_address",
		"manufacturer", "status", "response_time", "services",
		"discovery_method", "first_seen", "recorded_at",
	}
}

// entryToCSVRow converts a stored device row to a CSV row (matching csvHeaders order).
func entryToCSVRow(e models.MonitoringEntry) []string {
	m := e.AdditionalMetrics
	return []string{
		e.ItemID,
		e.ItemName,
		metricString(m, "device_type"),
		metricString(m, "ip_address"),
		metricString(m, "mac_address"),
		metricString(m, "manufacturer"),
		string(e.Status),
		strconv.Itoa(e.ResponseTime),
		metricList(m, "services"),
		metricString(m, "discovery_method"),
		metricString(m, "first_seen"),
		e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeCSV writes the header and one row per entry.
func writeCSV(w io.Writer, entries []models.MonitoringEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders()); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write(entryToCSVRow(e)); err != nil {
			return fmt.Errorf("write %s: %w", e.ItemID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func metricString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// metricList joins a JSON array metric with ";".
func metricList(m map[string]any, key string) string {
	items, _ := m[key].([]any)
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprint(it))
	}
	return strings.Join(parts, ";")
}
