package db

import (
	"database/sql"
	"log"
)

const (
	sqlCreateAccountsIndices = `
		CREATE INDEX IF NOT EXISTS idx_accounts_origin_type ON accounts(origin_type);
		CREATE INDEX IF NOT EXISTS idx_accounts_webfinger_id ON accounts(webfinger_id);
	`

	sqlCreateCommandsIndices = `
		CREATE INDEX IF NOT EXISTS idx_commands_created_at ON commands(created_at);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlCreateAccountsIndices); err != nil {
			log.Printf("Warning: Failed to create accounts indices: %v", err)
		}
		if _, err := tx.Exec(sqlCreateCommandsIndices); err != nil {
			log.Printf("Warning: Failed to create commands indices: %v", err)
		}

		// Columns added after the first release (ignore errors if they exist)
		db.extendExistingTables(tx)
		return nil
	})
}

func (db *DB) extendExistingTables(tx *sql.Tx) {
	tx.Exec("ALTER TABLE accounts ADD COLUMN avatar_url TEXT")
	tx.Exec("ALTER TABLE accounts ADD COLUMN real_name TEXT")
}
