package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/networknest/networknest/internal/store"
	"github.com/networknest/networknest/pkg/models"
)

// ItemTypeDevice is the item_type of rows written by discovery.
const ItemTypeDevice = "device"

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// PlaceholderIDs are the demo item ids removed by every successful discovery.
var PlaceholderIDs = []string{
	"device_1", "device_2", "device_3", "device_4",
	"device_5", "device_6", "device_7", "device_8",
}

// HistoryRepository reads and writes monitoring_history rows.
type HistoryRepository struct {
	st  *store.Store
	now func() time.Time
}

// NewHistoryRepository creates a HistoryRepository. The schema must exist
// (see EnsureSchema).
func NewHistoryRepository(st *store.Store) *HistoryRepository {
	return &HistoryRepository{st: st, now: time.Now}
}

// WithClock overrides the time source used for created_at.
func (r *HistoryRepository) WithClock(now func() time.Time) *HistoryRepository {
	r.now = now
	return r
}

// ReplaceDevices deletes the caller's placeholder rows and inserts one row
// per discovered device, in a single transaction. Devices sharing an id are
// collapsed; the last one wins. It returns the number of rows inserted.
func (r *HistoryRepository) ReplaceDevices(ctx context.Context, userID string, devices []models.DiscoveredDevice) (int, error) {
	rows := dedupByID(devices)
	createdAt := r.now().UTC().Format(timeLayout)

	err := r.st.Tx(ctx, func(tx *sql.Tx) error {
		del := fmt.Sprintf(`DELETE FROM monitoring_history WHERE user_id = ? AND item_id IN (%s)`,
			placeholders(len(PlaceholderIDs)))
		args := make([]any, 0, len(PlaceholderIDs)+1)
		args = append(args, userID)
		for _, id := range PlaceholderIDs {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx, r.st.Rebind(del), args...); err != nil {
			return fmt.Errorf("delete placeholders: %w", err)
		}

		insert := r.st.Rebind(`
			INSERT INTO monitoring_history
				(id, user_id, item_type, item_id, item_name, status, response_time, additional_metrics, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for _, d := range rows {
			metrics, err := json.Marshal(AdditionalMetrics(d))
			if err != nil {
				return fmt.Errorf("encode metrics for %s: %w", d.ID, err)
			}
			if _, err := tx.ExecContext(ctx, insert,
				uuid.New().String(), userID, ItemTypeDevice, d.ID, d.Name,
				string(d.Status), d.ResponseTime, string(metrics), createdAt,
			); err != nil {
				return fmt.Errorf("insert %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

// AdditionalMetrics flattens a device into the additional_metrics column:
// its descriptive fields plus the discoverer's additional_info.
func AdditionalMetrics(d models.DiscoveredDevice) map[string]any {
	m := make(map[string]any, len(d.AdditionalInfo)+10)
	for k, v := range d.AdditionalInfo {
		m[k] = v
	}
	m["device_type"] = string(d.Type)
	m["manufacturer"] = d.Manufacturer
	m["ip_address"] = d.IP
	m["mac_address"] = d.MAC
	m["uptime_hours"] = d.UptimeHours
	m["open_ports"] = d.OpenPorts
	m["services"] = d.Services
	m["first_seen"] = d.FirstSeen.UTC().Format(time.RFC3339)
	if d.LastDowntime != nil {
		m["last_downtime"] = d.LastDowntime.UTC().Format(time.RFC3339)
	} else {
		m["last_downtime"] = nil
	}
	if len(d.Synthesized) > 0 {
		m["synthesized"] = d.Synthesized
	}
	return m
}

// LatestDevices returns the newest row of every non-placeholder item the
// user has, ordered by item name.
func (r *HistoryRepository) LatestDevices(ctx context.Context, userID string) ([]models.MonitoringEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM monitoring_history h
		WHERE h.user_id = ? AND h.item_type = ? AND h.item_id NOT IN (%s)
		  AND h.created_at = (
			SELECT MAX(m.created_at) FROM monitoring_history m
			WHERE m.user_id = h.user_id AND m.item_id = h.item_id)
		ORDER BY h.item_name, h.item_id`, entryColumns("h."), placeholders(len(PlaceholderIDs)))

	args := make([]any, 0, len(PlaceholderIDs)+2)
	args = append(args, userID, ItemTypeDevice)
	for _, id := range PlaceholderIDs {
		args = append(args, id)
	}

	rows, err := r.st.DB().QueryContext(ctx, r.st.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("latest devices: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// List returns the user's history rows, newest first by default.
func (r *HistoryRepository) List(ctx context.Context, userID string, opts ListOptions) (*ListResult[models.MonitoringEntry], error) {
	opts = normalizeListOptions(opts)

	var total int
	if err := r.st.DB().QueryRowContext(ctx,
		r.st.Rebind(`SELECT COUNT(*) FROM monitoring_history WHERE user_id = ?`), userID,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count history: %w", err)
	}

	//nolint:gosec // orderDirection returns a fixed keyword
	query := fmt.Sprintf(`SELECT %s FROM monitoring_history WHERE user_id = ?
		ORDER BY created_at %s, item_id LIMIT ? OFFSET ?`, entryColumns(""), orderDirection(opts))
	rows, err := r.st.DB().QueryContext(ctx, r.st.Rebind(query), userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return &ListResult[models.MonitoringEntry]{Items: entries, Total: total}, nil
}

func entryColumns(alias string) string {
	cols := []string{"id", "user_id", "item_type", "item_id", "item_name",
		"status", "response_time", "additional_metrics", "created_at"}
	for i, c := range cols {
		cols[i] = alias + c
	}
	return strings.Join(cols, ", ")
}

func scanEntries(rows *sql.Rows) ([]models.MonitoringEntry, error) {
	entries := []models.MonitoringEntry{}
	for rows.Next() {
		var (
			e         models.MonitoringEntry
			status    string
			metrics   string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.ItemType, &e.ItemID, &e.ItemName,
			&status, &e.ResponseTime, &metrics, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Status = models.DeviceStatus(status)
		if err := json.Unmarshal([]byte(metrics), &e.AdditionalMetrics); err != nil {
			return nil, fmt.Errorf("decode metrics for %s: %w", e.ItemID, err)
		}
		if t, err := time.Parse(timeLayout, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// dedupByID keeps the last device for each id, in the order those last
// occurrences appear.
func dedupByID(devices []models.DiscoveredDevice) []models.DiscoveredDevice {
	seen := make(map[string]bool, len(devices))
	out := make([]models.DiscoveredDevice, 0, len(devices))
	for i := len(devices) - 1; i >= 0; i-- {
		if seen[devices[i].ID] {
			continue
		}
		seen[devices[i].ID] = true
		out = append(out, devices[i])
	}
	slices.Reverse(out)
	return out
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
