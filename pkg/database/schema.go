package database

import (
	"database/sql"
	"fmt"
)

// SchemaValidator provides database schema validation functionality
// ARCHITECTURAL DISCOVERY: Separate validation component enables testing
// and deployment verification without coupling to migration system
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// Validate runs every check.
func (v *SchemaValidator) Validate() error {
	if err := v.ValidateTablesExist(); err != nil {
		return err
	}
	if err := v.ValidateTableStructure(); err != nil {
		return err
	}
	if err := v.ValidateIndexes(); err != nil {
		return err
	}
	return v.ValidateConstraints()
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"transcripts":       "Session transcript storage",
		"schema_migrations": "Migration tracking",
	}

	for table, description := range requiredTables {
		exists, err := v.exists("table", table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}
	return nil
}

// ValidateTableStructure verifies table column structure matches expectations
// TECHNICAL DISCOVERY: Column validation ensures type compatibility between
// Go structs and database schema
func (v *SchemaValidator) ValidateTableStructure() error {
	transcriptColumns := map[string]string{
		"id":              "TEXT",
		"session_id":      "TEXT",
		"sender_role":     "TEXT",
		"original":        "TEXT",
		"translated":      "TEXT",
		"source_language": "TEXT",
		"target_language": "TEXT",
		"degraded":        "INTEGER",
		"created_at":      "DATETIME",
	}

	if err := v.validateColumns("transcripts", transcriptColumns); err != nil {
		return fmt.Errorf("transcripts table structure invalid: %w", err)
	}
	return nil
}

// ValidateIndexes verifies that all performance indexes exist
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := map[string]string{
		"idx_transcripts_session_time": "Transcript retrieval per session",
	}

	for index, purpose := range requiredIndexes {
		exists, err := v.exists("index", index)
		if err != nil {
			return fmt.Errorf("error checking index %s (%s): %w", index, purpose, err)
		}
		if !exists {
			return fmt.Errorf("required index %s (%s) does not exist", index, purpose)
		}
	}
	return nil
}

// ValidateConstraints verifies that CHECK constraints reject invalid rows. It leaves no
// rows behind.
func (v *SchemaValidator) ValidateConstraints() error {
	probes := []struct {
		name string
		sql  string
	}{
		{
			name: "sender_role",
			sql: `INSERT INTO transcripts (id, session_id, sender_role, original, translated, source_language, target_language, degraded, created_at)
				VALUES ('__probe_role', 's', 'pilot', 'a', 'b', 'es', 'en', 0, CURRENT_TIMESTAMP)`,
		},
		{
			name: "degraded",
			sql: `INSERT INTO transcripts (id, session_id, sender_role, original, translated, source_language, target_language, degraded, created_at)
				VALUES ('__probe_degraded', 's', 'traveler', 'a', 'b', 'es', 'en', 7, CURRENT_TIMESTAMP)`,
		},
	}

	for _, probe := range probes {
		if _, err := v.db.Exec(probe.sql); err == nil {
			_, _ = v.db.Exec("DELETE FROM transcripts WHERE id LIKE '__probe_%'")
			return fmt.Errorf("check constraint not enforced: %s", probe.name)
		}
	}
	return nil
}

// exists checks sqlite_master for an object of the given type
func (v *SchemaValidator) exists(kind, name string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?",
		kind, name,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// validateColumns checks that a table has the expected columns with correct types
func (v *SchemaValidator) validateColumns(tableName string, expectedColumns map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	foundColumns := make(map[string]string)
	for rows.Next() {
		var cid, notNull, pk int
		var name, dataType string
		var defaultValue any

		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		foundColumns[name] = dataType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for expectedCol, expectedType := range expectedColumns {
		foundType, exists := foundColumns[expectedCol]
		if !exists {
			return fmt.Errorf("column %s not found", expectedCol)
		}
		if foundType != expectedType {
			return fmt.Errorf("column %s has type %s, expected %s", expectedCol, foundType, expectedType)
		}
	}
	return nil
}
