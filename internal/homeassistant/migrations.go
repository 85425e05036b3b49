package homeassistant

import (
	"database/sql"

	"github.com/networknest/networknest/internal/store"
)

func migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create homeassistant_config table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE TABLE homeassistant_config (
						id               TEXT PRIMARY KEY,
						user_id          TEXT NOT NULL UNIQUE,
						ha_instance_name TEXT NOT NULL,
						ha_instance_url  TEXT NOT NULL DEFAULT '',
						key_prefix       TEXT NOT NULL UNIQUE,
						key_hash         TEXT NOT NULL,
						enabled          INTEGER NOT NULL DEFAULT 1,
						created_at       TEXT NOT NULL,
						updated_at       TEXT NOT NULL
					)`)
				return err
			},
		},
	}
}
