package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	keyDeviceID   = "device_id"
	keyFamilyCode = "family_code"
)

// IdentityStore persists the two durable identifiers every operation needs:
// the device id (generated once, stable for the lifetime of the local
// database) and the family code chosen by the household.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM device_settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *IdentityStore) set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO device_settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// DeviceID returns the persisted device identifier, generating and storing
// one on first use. The id is used only for notification self-suppression,
// never for authorization.
func (s *IdentityStore) DeviceID() (string, error) {
	id, err := s.get(keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := s.set(keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// FamilyCode returns the persisted scope token, or "" if none is set.
func (s *IdentityStore) FamilyCode() (string, error) {
	return s.get(keyFamilyCode)
}

// SetFamilyCode persists the scope token. Blank input is rejected.
func (s *IdentityStore) SetFamilyCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return fmt.Errorf("family code is blank")
	}
	return s.set(keyFamilyCode, code)
}

// SuggestFamilyCode returns a fresh code for a household that has none yet.
func SuggestFamilyCode() string {
	return "fam_" + uuid.NewString()
}
