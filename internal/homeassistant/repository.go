package homeassistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/networknest/networknest/internal/store"
)

// ErrNotFound is returned when a user has no integration configured.
var ErrNotFound = errors.New("not found")

// Config is a user's home-automation integration. The API key itself is
// never part of it.
type Config struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	InstanceName string `json:"ha_instance_name"`
	InstanceURL  string `json:"ha_instance_url,omitempty"`
	KeyPrefix    string `json:"key_prefix"`
	Enabled      bool   `json:"enabled"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// Repository stores integration configs, one per user.
type Repository struct {
	st  *store.Store
	now func() time.Time
}

// NewRepository creates a Repository on st.
func NewRepository(st *store.Store) *Repository {
	return &Repository{st: st, now: time.Now}
}

// Save creates the user's config or replaces its name, URL and key. The
// existing id and created_at are kept on replace.
func (r *Repository) Save(ctx context.Context, userID, name, instanceURL string, key IssuedKey) (*Config, error) {
	ts := r.now().UTC().Format(time.RFC3339)
	_, err := r.st.DB().ExecContext(ctx, r.st.Rebind(`
		INSERT INTO homeassistant_config
			(id, user_id, ha_instance_name, ha_instance_url, key_prefix, key_hash, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			ha_instance_name = excluded.ha_instance_name,
			ha_instance_url  = excluded.ha_instance_url,
			key_prefix       = excluded.key_prefix,
			key_hash         = excluded.key_hash,
			enabled          = 1,
			updated_at       = excluded.updated_at`),
		uuid.New().String(), userID, name, instanceURL, key.Prefix, key.Hash, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("save homeassistant config: %w", err)
	}
	return r.GetByUser(ctx, userID)
}

// Update changes the user's name, URL and enabled flag without touching
// the key.
func (r *Repository) Update(ctx context.Context, userID, name, instanceURL string, enabled bool) (*Config, error) {
	res, err := r.st.DB().ExecContext(ctx, r.st.Rebind(`
		UPDATE homeassistant_config
		SET ha_instance_name = ?, ha_instance_url = ?, enabled = ?, updated_at = ?
		WHERE user_id = ?`),
		name, instanceURL, boolToInt(enabled), r.now().UTC().Format(time.RFC3339), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update homeassistant config: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByUser(ctx, userID)
}

// GetByUser returns the user's config.
func (r *Repository) GetByUser(ctx context.Context, userID string) (*Config, error) {
	row := r.st.DB().QueryRowContext(ctx, r.st.Rebind(`
		SELECT id, user_id, ha_instance_name, ha_instance_url, key_prefix, enabled, created_at, updated_at
		FROM homeassistant_config WHERE user_id = ?`), userID)

	var c Config
	var enabled int
	err := row.Scan(&c.ID, &c.UserID, &c.InstanceName, &c.InstanceURL, &c.KeyPrefix, &enabled, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get homeassistant config: %w", err)
	}
	c.Enabled = enabled != 0
	return &c, nil
}

// Authenticate resolves an API key to the owning user. Unknown, disabled
// and mismatched keys all yield ErrInvalidKey.
func (r *Repository) Authenticate(ctx context.Context, key string) (string, error) {
	prefix, err := ParseKeyPrefix(key)
	if err != nil {
		return "", err
	}

	var userID, hash string
	err = r.st.DB().QueryRowContext(ctx, r.st.Rebind(`
		SELECT user_id, key_hash FROM homeassistant_config
		WHERE key_prefix = ? AND enabled = 1`), prefix).Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("lookup api key: %w", err)
	}
	if !VerifyKey(hash, key) {
		return "", ErrInvalidKey
	}
	return userID, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
