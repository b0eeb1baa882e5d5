package store

import (
	"database/sql"
	"fmt"
)

const (
	TableMessages           = "messages"
	TableEntities           = "entities"
	TableDefinitions        = "definitions"
	TableRelatedInfos       = "related_infos"
	TableBaseFacts          = "base_facts"
	TableSummaries          = "summaries"
	TableEmotions           = "emotion_snapshots"
	TableEnvironments       = "environments"
	TableDomains            = "domains"
	TableDomainEnvironments = "domain_environments"
	TableSchedules          = "schedules"
	TableEvents             = "events"
	TableEventLogs          = "event_logs"
	TableExpressionStyles   = "expression_styles"
	TableMetadata           = "metadata"
)

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableMessages + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableEntities + ` (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			normalized_name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableDefinitions + ` (
			entity_uuid TEXT PRIMARY KEY REFERENCES ` + TableEntities + `(uuid),
			content TEXT NOT NULL,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			confidence REAL NOT NULL,
			priority INTEGER NOT NULL,
			is_base_knowledge INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableRelatedInfos + ` (
			uuid TEXT PRIMARY KEY,
			entity_uuid TEXT NOT NULL REFERENCES ` + TableEntities + `(uuid),
			content TEXT NOT NULL,
			normalized_content TEXT NOT NULL,
			type TEXT NOT NULL,
			source TEXT NOT NULL,
			confidence REAL NOT NULL,
			status TEXT NOT NULL,
			mention_count INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (entity_uuid, normalized_content)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableBaseFacts + ` (
			entity_name TEXT NOT NULL,
			normalized_name TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			confidence REAL NOT NULL,
			priority INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableSummaries + ` (
			uuid TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			rounds INTEGER NOT NULL,
			message_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			ended_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableEmotions + ` (
			uuid TEXT PRIMARY KEY,
			relationship_type TEXT NOT NULL,
			emotional_tone TEXT NOT NULL,
			overall_score INTEGER NOT NULL,
			intimacy INTEGER NOT NULL,
			trust INTEGER NOT NULL,
			pleasure INTEGER NOT NULL,
			resonance INTEGER NOT NULL,
			dependence INTEGER NOT NULL,
			analysis_summary TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableEnvironments + ` (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			overall_description TEXT NOT NULL,
			atmosphere TEXT NOT NULL,
			lighting TEXT NOT NULL,
			sounds TEXT NOT NULL,
			smells TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_environments_single_active
			ON ` + TableEnvironments + `(is_active) WHERE is_active = 1`,
		`CREATE TABLE IF NOT EXISTS ` + TableDomains + ` (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL,
			default_environment_uuid TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableDomainEnvironments + ` (
			domain_uuid TEXT NOT NULL REFERENCES ` + TableDomains + `(uuid),
			environment_uuid TEXT NOT NULL REFERENCES ` + TableEnvironments + `(uuid),
			PRIMARY KEY (domain_uuid, environment_uuid)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableSchedules + ` (
			uuid TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			kind TEXT NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			priority TEXT NOT NULL,
			weekday INTEGER NOT NULL DEFAULT -1,
			recurrence_pattern TEXT NOT NULL DEFAULT '',
			generated_reason TEXT NOT NULL DEFAULT '',
			involves_user INTEGER NOT NULL DEFAULT 0,
			collaboration_status TEXT NOT NULL,
			is_queryable INTEGER NOT NULL DEFAULT 1,
			is_active INTEGER NOT NULL DEFAULT 1,
			source TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_schedules_active_start
			ON ` + TableSchedules + `(is_active, start_time)`,
		`CREATE TABLE IF NOT EXISTS ` + TableEvents + ` (
			uuid TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			kind TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableEventLogs + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_uuid TEXT NOT NULL REFERENCES ` + TableEvents + `(uuid),
			ts TIMESTAMP NOT NULL,
			action TEXT NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableExpressionStyles + ` (
			uuid TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			expression TEXT NOT NULL,
			meaning TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ` + TableMetadata + ` (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}
