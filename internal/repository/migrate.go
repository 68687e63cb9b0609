package repository

import "context"

// DDL kept portable across Postgres and sqlite: text keys, text timestamps,
// JSON columns stored as text. The unique indexes on
// (profile_id, content_hash) and (profile_id, provider_tx_id) back the
// dedup inserts.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id                 TEXT PRIMARY KEY,
		profile_id         TEXT NOT NULL,
		filename           TEXT NOT NULL,
		content_hash       TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		uploaded_at        TEXT NOT NULL,
		vendor_name        TEXT,
		total_amount       DOUBLE PRECISION,
		tx_date            TEXT,
		text_excerpt       TEXT,
		suggested_category TEXT,
		expense_article    TEXT,
		deductible         BOOLEAN,
		review_status      TEXT NOT NULL DEFAULT 'pending',
		review_changes     TEXT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_documents_content
		ON documents (profile_id, content_hash) WHERE content_hash <> ''`,
	`CREATE INDEX IF NOT EXISTS ix_documents_profile_status
		ON documents (profile_id, status)`,
	`CREATE INDEX IF NOT EXISTS ix_documents_profile_review
		ON documents (profile_id, review_status, uploaded_at)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id                    TEXT PRIMARY KEY,
		profile_id            TEXT NOT NULL,
		provider_tx_id        TEXT NOT NULL,
		amount                DOUBLE PRECISION NOT NULL,
		tx_date               TEXT NOT NULL,
		description           TEXT NOT NULL,
		category              TEXT,
		reconciliation_status TEXT NOT NULL DEFAULT 'unreconciled',
		ignored_candidate_ids TEXT NOT NULL DEFAULT '[]',
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_provider
		ON transactions (profile_id, provider_tx_id)`,
	`CREATE INDEX IF NOT EXISTS ix_transactions_profile_status
		ON transactions (profile_id, reconciliation_status)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	for _, ddl := range migrations {
		if _, err := s.DB.ExecContext(ctx, ddl); err != nil {
			s.logger.Error("migration failed", "error", err)
			return err
		}
	}
	s.logger.Info("schema up to date")
	return nil
}
