package monitoring

import (
	"context"
	"database/sql"

	"github.com/networknest/networknest/internal/store"
)

// schemaName is the migration namespace shared by every user of these tables.
const schemaName = "monitoring"

// EnsureSchema applies the monitoring migrations. It is safe to call from
// several plugins; applied versions are skipped.
func EnsureSchema(ctx context.Context, st *store.Store) error {
	return st.Migrate(ctx, schemaName, migrations())
}

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create monitoring_history table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE monitoring_history (
						id                 TEXT PRIMARY KEY,
						user_id            TEXT NOT NULL,
						item_type          TEXT NOT NULL,
						item_id            TEXT NOT NULL,
						item_name          TEXT NOT NULL,
						status             TEXT NOT NULL,
						response_time      INTEGER NOT NULL DEFAULT 0,
						additional_metrics TEXT NOT NULL DEFAULT '{}',
						created_at         TEXT NOT NULL
					)`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_monitoring_history_user_item
					ON monitoring_history(user_id, item_id, created_at)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "create discovery_runs table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE discovery_runs (
						id         TEXT PRIMARY KEY,
						user_id    TEXT NOT NULL,
						method     TEXT NOT NULL,
						target     TEXT NOT NULL DEFAULT '',
						started_at TEXT NOT NULL,
						ended_at   TEXT,
						status     TEXT NOT NULL DEFAULT 'running',
						devices    INTEGER NOT NULL DEFAULT 0,
						error_msg  TEXT NOT NULL DEFAULT ''
					)`)
				if err != nil {
					return err
				}
				_, err = tx.Exec(`CREATE INDEX idx_discovery_runs_user_started
					ON discovery_runs(user_id, started_at)`)
				return err
			},
		},
	}
}
