package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// KeyBlinkConfig is the settings key holding the persisted blink.Config.
const KeyBlinkConfig = "blink_config"

// SettingsRepository provides key-value access to application settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (r *SettingsRepository) Delete(key string) error {
	result, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// BlinkConfig loads the persisted detector config, or ErrNotFound.
func (r *SettingsRepository) BlinkConfig() (blink.Config, error) {
	raw, err := r.Get(KeyBlinkConfig)
	if err != nil {
		return blink.Config{}, err
	}

	var cfg blink.Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return blink.Config{}, fmt.Errorf("decode %s: %w", KeyBlinkConfig, err)
	}
	return cfg, nil
}

// SaveBlinkConfig validates and persists the detector config.
func (r *SettingsRepository) SaveBlinkConfig(cfg blink.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", KeyBlinkConfig, err)
	}
	return r.Set(KeyBlinkConfig, string(data))
}
