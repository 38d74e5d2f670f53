package config

import (
	"database/sql"
	"fmt"

	"gopkg.in/yaml.v2"
	_ "modernc.org/sqlite"
)

// Configuration sections stored as individual rows. Each value is the YAML encoding of
// the matching ConfigData field.
const (
	SectionRunoff      = "runoff"
	SectionCalibration = "calibration"
	SectionHypercube   = "hypercube"
	SectionStorage     = "storage"
	SectionMetrics     = "metrics"
	SectionWorkers     = "workers"
)

const defaultConfigName = "default"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS configs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS config_sections (
	config_id INTEGER NOT NULL REFERENCES configs(id),
	section TEXT NOT NULL,
	body TEXT NOT NULL,
	PRIMARY KEY (config_id, section)
);
`

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider, creating the schema if
// the database is new.
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	targets := map[string]interface{}{
		SectionRunoff:      &config.Runoff,
		SectionCalibration: &config.Calibration,
		SectionHypercube:   &config.Hypercube,
		SectionStorage:     &config.Storage,
		SectionMetrics:     &config.Metrics,
		SectionWorkers:     &config.Workers,
	}

	rows, err := s.db.Query(`
		SELECT s.section, s.body
		FROM config_sections s
		JOIN configs c ON c.id = s.config_id
		WHERE c.name = ?`, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query configuration: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var section, body string
		if err := rows.Scan(&section, &body); err != nil {
			return nil, fmt.Errorf("failed to scan configuration section: %w", err)
		}
		target, ok := targets[section]
		if !ok {
			return nil, fmt.Errorf("unknown configuration section %q", section)
		}
		if err := yaml.UnmarshalStrict([]byte(body), target); err != nil {
			return nil, fmt.Errorf("failed to decode %s section: %w", section, err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return config, nil
}

// IsReadOnly returns false since SQLite configuration can be modified
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData. Nil sections are
// removed.
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM config_sections WHERE config_id = ?", configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	sections := []struct {
		name  string
		value interface{}
		set   bool
	}{
		{SectionRunoff, configData.Runoff, configData.Runoff != nil},
		{SectionCalibration, configData.Calibration, configData.Calibration != nil},
		{SectionHypercube, configData.Hypercube, configData.Hypercube != nil},
		{SectionStorage, configData.Storage, true},
		{SectionMetrics, configData.Metrics, true},
		{SectionWorkers, configData.Workers, configData.Workers != 0},
	}
	for _, sec := range sections {
		if !sec.set {
			continue
		}
		if err := s.insertSection(tx, configID, sec.name, sec.value); err != nil {
			return fmt.Errorf("failed to insert %s section: %w", sec.name, err)
		}
	}

	if _, err := tx.Exec("UPDATE configs SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", configID); err != nil {
		return err
	}

	return tx.Commit()
}

// SetSection stores a single section, leaving the others in place.
func (s *SQLiteProvider) SetSection(section string, value interface{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.getOrCreateConfigID(tx)
	if err != nil {
		return err
	}
	if err := s.insertSection(tx, configID, section, value); err != nil {
		return fmt.Errorf("failed to store %s section: %w", section, err)
	}
	return tx.Commit()
}

func (s *SQLiteProvider) insertSection(tx *sql.Tx, configID int64, section string, value interface{}) error {
	body, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT OR REPLACE INTO config_sections (config_id, section, body) VALUES (?, ?, ?)`,
		configID, section, string(body),
	)
	return err
}

func (s *SQLiteProvider) getOrCreateConfigID(tx *sql.Tx) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", defaultConfigName).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	result, err := tx.Exec("INSERT INTO configs (name) VALUES (?)", defaultConfigName)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}
