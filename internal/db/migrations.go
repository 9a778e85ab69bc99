package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,

	// thermal_reports holds one row per analyzed inspection image. Fault
	// level and priority are always present; the nullable columns mirror
	// the pipeline stages that can come up empty.
	`CREATE TABLE IF NOT EXISTS thermal_reports (
		id                 UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		tower_id           INT,
		tower_name         TEXT,
		camp_name          TEXT,
		latitude           DOUBLE PRECISION,
		longitude          DOUBLE PRECISION,
		image_temp         DOUBLE PRECISION,
		ambient_temp       DOUBLE PRECISION,
		delta_t            DOUBLE PRECISION,
		threshold_used     DOUBLE PRECISION,
		fault_level        TEXT NOT NULL,
		priority           TEXT NOT NULL,
		voltage_kv         INT,
		capacity_amps      INT,
		commissioning_year INT,
		distance_km        DOUBLE PRECISION,
		snapshot_url       TEXT,
		detections         JSONB,
		analysis_status    TEXT NOT NULL DEFAULT 'pending',
		timestamp          TIMESTAMPTZ NOT NULL DEFAULT now(),
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_thermal_reports_timestamp ON thermal_reports(timestamp DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_thermal_reports_fault_level ON thermal_reports(fault_level);`,
	`CREATE INDEX IF NOT EXISTS idx_thermal_reports_tower_fault ON thermal_reports(tower_id, fault_level) WHERE tower_id IS NOT NULL;`,

	// users is read by the auth layer; credential issuance lives in a
	// separate service.
	`CREATE TABLE IF NOT EXISTS users (
		id              UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		email           TEXT NOT NULL,
		hashed_password TEXT NOT NULL,
		role            TEXT NOT NULL DEFAULT 'viewer',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users(email);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
